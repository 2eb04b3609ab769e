// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldCycleID   = "cycle_id"
	FieldAlarmID   = "alarm_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Telemetry fields
	FieldChannel   = "channel"
	FieldEquipment = "equipment"
	FieldSeverity  = "severity"
	FieldValue     = "value"
	FieldThreshold = "threshold"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldRisk     = "risk"

	// Path fields
	FieldPath    = "path"
	FieldDataDir = "data_dir"
)
