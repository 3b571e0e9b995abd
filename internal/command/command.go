// Package command defines the command envelope and decision contract for the
// write path.
//
// Commands express caller intent against a single aggregate. Deciders evaluate
// them against replayed state and return a Decision that either emits events
// or carries typed rejections; a rejected command has no side effects.
package command

import "github.com/louisbranch/rivalry.club/internal/event"

// Command carries a caller's intent against one aggregate stream.
type Command struct {
	// AggregateUUID identifies the aggregate the command addresses.
	AggregateUUID string
	// Type identifies the command for dispatch and diagnostics.
	Type Type
	// PayloadJSON holds command-specific input as JSON.
	PayloadJSON []byte
}

// Type identifies the type of a command.
type Type string

// Decision represents the pure outcome of handling a command.
type Decision struct {
	Events     []event.Event
	Rejections []Rejection
}

// Rejection captures a domain-level reason a command was declined.
type Rejection struct {
	Code    string
	Message string
}

// Error implements the error interface so rejections can travel as typed
// failures through the service layer.
func (r Rejection) Error() string {
	return r.Message
}

// Accept returns a decision that emits the provided events.
func Accept(events ...event.Event) Decision {
	return Decision{Events: append([]event.Event(nil), events...)}
}

// Reject returns a decision that carries the provided rejections.
func Reject(rejections ...Rejection) Decision {
	return Decision{Rejections: append([]Rejection(nil), rejections...)}
}

// NewEvent builds an event.Event addressed to the command's aggregate.
func NewEvent(cmd Command, eventType event.Type, payloadJSON []byte) event.Event {
	return event.Event{
		AggregateUUID: cmd.AggregateUUID,
		Type:          eventType,
		PayloadJSON:   payloadJSON,
	}
}
