package tsip

import "errors"

const (
	// DLE opens every packet and escapes itself inside payload data.
	DLE = 0x10
	// ETX follows a DLE to terminate a packet.
	ETX = 0x03
)

// ErrReservedID is returned when encoding a packet whose ID is DLE. Such an ID
// would be absorbed by a decoder still waiting for the ID byte.
var ErrReservedID = errors.New("tsip: packet id 0x10 is reserved")

// Frame is one unstuffed TSIP packet.
type Frame struct {
	ID      byte
	Payload []byte

	// Offset is the stream offset of the opening DLE.
	Offset int64
	// Index counts frames emitted by a Decoder, starting at 0.
	Index uint64
}

// Encode builds the wire form of a packet: DLE, ID, the payload with every
// literal DLE doubled, then DLE ETX.
func Encode(id byte, payload []byte) ([]byte, error) {
	return AppendEncode(make([]byte, 0, 4+len(payload)*2), id, payload)
}

// AppendEncode is like Encode but appends to dst.
func AppendEncode(dst []byte, id byte, payload []byte) ([]byte, error) {
	if id == DLE {
		return dst, ErrReservedID
	}
	dst = append(dst, DLE, id)
	for _, b := range payload {
		if b == DLE {
			dst = append(dst, DLE, DLE)
			continue
		}
		dst = append(dst, b)
	}
	return append(dst, DLE, ETX), nil
}
