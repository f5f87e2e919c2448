package tsip

import (
	"errors"
	"fmt"
)

// ErrIncompleteFrame marks input that ended between a packet ID and its
// DLE ETX terminator.
var ErrIncompleteFrame = errors.New("tsip: incomplete frame")

// FramingError reports a frame that was dropped at stream level. The decoder
// has already returned to scanning for the next DLE when this is returned.
type FramingError struct {
	Offset int64
	Index  uint64
	ID     byte
	Reason string
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("tsip: framing error at offset %d (frame %d, id 0x%02X): %s", e.Offset, e.Index, e.ID, e.Reason)
}

// IncompleteFrameError is returned when the source runs dry mid-frame.
type IncompleteFrameError struct {
	Offset   int64
	ID       byte
	Buffered int
}

func (e *IncompleteFrameError) Error() string {
	return fmt.Sprintf("tsip: incomplete frame at offset %d (id 0x%02X, %d payload bytes buffered)", e.Offset, e.ID, e.Buffered)
}

func (e *IncompleteFrameError) Unwrap() error { return ErrIncompleteFrame }

// TransportError wraps an I/O failure on the byte source or sink. It ends the
// decoding session.
type TransportError struct {
	Op     string
	Offset int64
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("tsip: %s failed at offset %d: %v", e.Op, e.Offset, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
