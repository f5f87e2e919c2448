package packet

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"strings"
	"unicode/utf8"
)

// Callers have already checked the payload length.

func u16(p []byte, off int) uint16 {
	return binary.BigEndian.Uint16(p[off : off+2])
}

func u32(p []byte, off int) uint32 {
	return binary.BigEndian.Uint32(p[off : off+4])
}

func f32(p []byte, off int) Float32 {
	return Float32(math.Float32frombits(u32(p, off)))
}

// Float32 is a single-precision wire value. The bits come straight off the
// wire, so NaN and ±Inf are possible; they encode to JSON as null.
type Float32 float32

func (f Float32) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(float32(f))
}

// Float64 is Float32 widened, with the same JSON rule.
type Float64 float64

func (f Float64) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// ascii decodes a fixed-width text field. Bytes outside 7-bit ASCII become
// U+FFFD; trailing NUL padding and spaces are trimmed.
func ascii(p []byte) string {
	var sb strings.Builder
	sb.Grow(len(p))
	for _, b := range p {
		if b < utf8.RuneSelf {
			sb.WriteByte(b)
			continue
		}
		sb.WriteRune(utf8.RuneError)
	}
	return strings.TrimRight(sb.String(), "\x00 \t\r\n")
}

func bit(b byte, mask byte) bool { return b&mask != 0 }
