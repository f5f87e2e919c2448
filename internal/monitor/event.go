package monitor

import (
	"fmt"
	"time"

	"tsipmon/internal/packet"
)

// EventKind classifies what a session produced for one frame or stream fault.
type EventKind string

const (
	KindReport      EventKind = "report"
	KindUnknown     EventKind = "unknown"
	KindDecodeError EventKind = "decode_error"
	KindFraming     EventKind = "framing_error"
	KindIncomplete  EventKind = "incomplete_frame"
)

// Event is what sinks receive. Report is set for KindReport and KindUnknown;
// Error is set for the fault kinds.
type Event struct {
	Kind   EventKind     `json:"kind"`
	Index  uint64        `json:"index"`
	Offset int64         `json:"offset"`
	ID     byte          `json:"id"`
	Name   string        `json:"name"`
	At     time.Time     `json:"at"`
	Report packet.Packet `json:"report,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// Topic is the short name used to route an event: "gps-time" for a report,
// "unknown-0x99" for an unregistered ID and "errors" for every fault.
func (e Event) Topic() string {
	switch e.Kind {
	case KindReport:
		return slug(e.Name)
	case KindUnknown:
		return fmt.Sprintf("unknown-0x%02x", e.ID)
	default:
		return "errors"
	}
}

func slug(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c == ' ' {
			b[i] = '-'
		}
	}
	return string(b)
}

// Sink receives every event of a session, synchronously from the decode loop.
// Implementations must not block for long; a returned error is logged and the
// session goes on.
type Sink interface {
	Name() string
	Publish(Event) error
}
