// SPDX-License-Identifier: MIT

// Package bus provides the in-process event transport between the
// monitoring engine and its consumers (SSE stream, incident log).
package bus

import "context"

// Well-known topics.
const (
	TopicSamples = "telemetry.samples"
	TopicAlarms  = "telemetry.alarms"
	TopicState   = "engine.state"
)

// Message is an opaque event payload.
type Message interface{}

type Subscriber interface {
	// C returns a read-only message channel.
	C() <-chan Message
	// Close unsubscribes.
	Close() error
}

// Bus is the event transport abstraction.
type Bus interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Subscribe(ctx context.Context, topic string) (Subscriber, error)
}
