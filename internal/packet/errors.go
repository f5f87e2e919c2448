package packet

import (
	"fmt"
)

// DecodeKind classifies a DecodeError.
type DecodeKind int

const (
	InsufficientLength DecodeKind = iota + 1
	InvalidField
)

func (k DecodeKind) String() string {
	switch k {
	case InsufficientLength:
		return "insufficient length"
	case InvalidField:
		return "invalid field"
	default:
		return fmt.Sprintf("DecodeKind(%d)", int(k))
	}
}

// DecodeError reports a registered packet whose payload could not be
// interpreted. It never affects later frames.
type DecodeError struct {
	ID   byte
	Name string
	Kind DecodeKind

	// Want and Got are payload lengths for InsufficientLength.
	Want int
	Got  int

	// Field names the offending field for InvalidField.
	Field string
	Err   error

	// Index and Offset locate the frame in the stream.
	Index  uint64
	Offset int64
}

func (e *DecodeError) Error() string {
	where := fmt.Sprintf("packet 0x%02X (%s) frame %d at offset %d", e.ID, e.Name, e.Index, e.Offset)
	switch e.Kind {
	case InsufficientLength:
		return fmt.Sprintf("%s: insufficient length: want %d bytes, got %d", where, e.Want, e.Got)
	case InvalidField:
		if e.Err != nil {
			return fmt.Sprintf("%s: invalid field %s: %v", where, e.Field, e.Err)
		}
		return fmt.Sprintf("%s: invalid field %s", where, e.Field)
	default:
		return fmt.Sprintf("%s: %s", where, e.Kind)
	}
}

func (e *DecodeError) Unwrap() error { return e.Err }

func shortPayload(want, got int) *DecodeError {
	return &DecodeError{Kind: InsufficientLength, Want: want, Got: got}
}

func invalidField(field string, err error) *DecodeError {
	return &DecodeError{Kind: InvalidField, Field: field, Err: err}
}
