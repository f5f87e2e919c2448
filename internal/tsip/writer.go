package tsip

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// Writer sends command packets to the receiver.
//
// Only live transports accept commands. On a capture sink (file or stdin)
// WriteCommand logs a warning and does nothing.
type Writer struct {
	w       io.Writer
	live    bool
	log     zerolog.Logger
	written int64
	sent    uint64
}

func NewWriter(w io.Writer, live bool, logger *zerolog.Logger) *Writer {
	lg := zerolog.Nop()
	if logger != nil {
		lg = *logger
	}
	return &Writer{w: w, live: live && w != nil, log: lg}
}

// WriteCommand encodes and writes one packet.
func (w *Writer) WriteCommand(id byte, payload []byte) error {
	frame, err := Encode(id, payload)
	if err != nil {
		return err
	}
	if !w.live {
		w.log.Warn().
			Str("id", fmt.Sprintf("0x%02X", id)).
			Msg("tsip sink is not a live transport; command dropped")
		return nil
	}
	n, err := w.w.Write(frame)
	w.written += int64(n)
	if err != nil {
		return &TransportError{Op: "write", Offset: w.written, Err: err}
	}
	w.sent++
	w.log.Debug().
		Str("id", fmt.Sprintf("0x%02X", id)).
		Int("len", len(frame)).
		Msg("tsip command sent")
	return nil
}

// Sent returns how many commands reached the transport.
func (w *Writer) Sent() uint64 { return w.sent }
