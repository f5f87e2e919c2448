package udp

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"tsipmon/internal/monitor"
)

var eventEncOptions = cbor.EncOptions{Time: cbor.TimeRFC3339Nano}

// EventSink sends each session event as one CBOR-encoded datagram. Field
// names follow the events' JSON names.
type EventSink struct {
	b   *Broadcaster
	enc cbor.EncMode
}

// DialEventSink opens a broadcaster to dest and wraps it in an EventSink.
func DialEventSink(dest string) (*EventSink, error) {
	b, err := NewBroadcaster(dest)
	if err != nil {
		return nil, err
	}
	return newEventSink(b, eventEncOptions)
}

func NewEventSink(b *Broadcaster) (*EventSink, error) {
	return newEventSink(b, eventEncOptions)
}

// newEventSink takes ownership of b: it is closed if the encoder cannot be
// built.
func newEventSink(b *Broadcaster, opts cbor.EncOptions) (*EventSink, error) {
	enc, err := opts.EncMode()
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("cbor encoder: %w", err)
	}
	return &EventSink{b: b, enc: enc}, nil
}

func (s *EventSink) Name() string { return "udp " + s.b.Dest() }

func (s *EventSink) Publish(ev monitor.Event) error {
	payload, err := s.enc.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %d: %w", ev.Index, err)
	}
	return s.b.Send(payload)
}

func (s *EventSink) Close() error { return s.b.Close() }
