// SPDX-License-Identifier: MIT

// Package incidentlog archives alarm transitions in SQLite so operators can
// query incident history by time range and severity.
package incidentlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go driver

	"github.com/vesselworks/spiritd/internal/alarm"
)

const schema = `
CREATE TABLE IF NOT EXISTS incidents (
	id         TEXT NOT NULL,
	channel    TEXT NOT NULL,
	severity   TEXT NOT NULL,
	value      REAL NOT NULL,
	threshold  REAL NOT NULL,
	raised_at  INTEGER NOT NULL,
	cleared_at INTEGER,
	PRIMARY KEY (id, severity, raised_at)
);
CREATE INDEX IF NOT EXISTS idx_incidents_raised_at ON incidents(raised_at);
CREATE INDEX IF NOT EXISTS idx_incidents_severity ON incidents(severity);
`

// Log is the SQLite-backed incident archive.
type Log struct {
	db *sql.DB
}

// Open opens (or creates) the archive at dbPath. WAL mode and busy_timeout
// are set through the DSN so they apply to every pooled connection.
func Open(dbPath string) (*Log, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		dbPath, (5 * time.Second).Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("incidentlog: open failed: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("incidentlog: ping failed: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("incidentlog: schema: %w", err)
	}
	return &Log{db: db}, nil
}

func (l *Log) Close() error { return l.db.Close() }

// Record appends one alarm transition. Raised transitions insert a row;
// cleared transitions stamp the clear time on the matching raise.
func (l *Log) Record(ctx context.Context, tr alarm.Transition) error {
	if tr.Raised {
		_, err := l.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO incidents (id, channel, severity, value, threshold, raised_at, cleared_at)
			 VALUES (?, ?, ?, ?, ?, ?, NULL)`,
			tr.Alarm.ID, tr.Alarm.Channel, string(tr.Alarm.Severity),
			tr.Alarm.Value, tr.Alarm.Threshold, tr.Alarm.RaisedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("incidentlog: insert %s: %w", tr.Alarm.Channel, err)
		}
		return nil
	}

	_, err := l.db.ExecContext(ctx,
		`UPDATE incidents SET cleared_at = ? WHERE id = ?`,
		tr.Alarm.ClearedAt.UnixMilli(), tr.Alarm.ID)
	if err != nil {
		return fmt.Errorf("incidentlog: clear %s: %w", tr.Alarm.ID, err)
	}
	return nil
}

// Query filters the archive. A zero since means no lower bound; an empty
// severity matches all. Results are newest-first, capped at limit.
func (l *Log) Query(ctx context.Context, since time.Time, severity alarm.Severity, limit int) ([]alarm.Alarm, error) {
	if limit <= 0 {
		limit = 100
	}

	q := `SELECT id, channel, severity, value, threshold, raised_at, cleared_at
	      FROM incidents WHERE raised_at >= ?`
	args := []any{since.UnixMilli()}
	if severity != "" {
		q += ` AND severity = ?`
		args = append(args, string(severity))
	}
	q += ` ORDER BY raised_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("incidentlog: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []alarm.Alarm
	for rows.Next() {
		var (
			a         alarm.Alarm
			sev       string
			raisedMS  int64
			clearedMS sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &a.Channel, &sev, &a.Value, &a.Threshold, &raisedMS, &clearedMS); err != nil {
			return nil, fmt.Errorf("incidentlog: scan: %w", err)
		}
		a.Severity = alarm.Severity(sev)
		a.RaisedAt = time.UnixMilli(raisedMS).UTC()
		if clearedMS.Valid {
			a.ClearedAt = time.UnixMilli(clearedMS.Int64).UTC()
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
