package tsip

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

const (
	// DefaultMaxPayload bounds one unstuffed payload. The largest report in
	// the protocol is well under this.
	DefaultMaxPayload = 4096

	defaultReadSize = 256
)

// DecoderConfig controls a Decoder.
type DecoderConfig struct {
	// Live marks the source as a transport whose empty reads are timeouts
	// (keep reading) rather than the end of a finite capture.
	Live bool

	// MaxPayload drops frames whose payload grows past this many bytes.
	// Zero means DefaultMaxPayload.
	MaxPayload int

	// ReadSize is the number of bytes requested per source read.
	ReadSize int

	// Logger receives per-frame debug tracing. Nil disables tracing.
	Logger *zerolog.Logger
}

type decoderState int

const (
	stateIdle decoderState = iota
	stateGotID
	stateInPayload
)

// errEmpty is an empty read: a timeout on a live source or EOF on a capture.
var errEmpty = errors.New("tsip: empty read")

// Decoder turns a TSIP byte stream into frames. It is not safe for concurrent
// use; one Decoder owns its source for the duration of a session.
type Decoder struct {
	src io.Reader
	cfg DecoderConfig
	log zerolog.Logger

	buf []byte
	// pending holds bytes already read from src but not yet consumed. Reads
	// that cross a frame boundary leave the next frame's bytes here.
	pending []byte
	// readErr is a source error that arrived together with data. It is
	// returned once pending drains.
	readErr error
	offset  int64
	index   uint64
}

func NewDecoder(src io.Reader, cfg DecoderConfig) *Decoder {
	if cfg.MaxPayload <= 0 {
		cfg.MaxPayload = DefaultMaxPayload
	}
	if cfg.ReadSize <= 0 {
		cfg.ReadSize = defaultReadSize
	}
	lg := zerolog.Nop()
	if cfg.Logger != nil {
		lg = *cfg.Logger
	}
	return &Decoder{
		src: src,
		cfg: cfg,
		log: lg,
		buf: make([]byte, cfg.ReadSize),
	}
}

// Offset returns the stream offset of the next byte the state machine will see.
func (d *Decoder) Offset() int64 { return d.offset }

// Buffered returns how many bytes are queued ahead of the state machine.
func (d *Decoder) Buffered() int { return len(d.pending) }

// Frames returns how many complete frames have been emitted.
func (d *Decoder) Frames() uint64 { return d.index }

// Next returns the next complete frame.
//
// On a finite source it returns io.EOF once the input is exhausted between
// frames. Input that ends inside a frame yields an *IncompleteFrameError; the
// partial frame is discarded. Oversized frames yield a *FramingError. Both are
// recoverable: call Next again. Source failures are returned as
// *TransportError and ctx errors are returned unwrapped.
func (d *Decoder) Next(ctx context.Context) (Frame, error) {
	var (
		st      = stateIdle
		id      byte
		start   int64
		skipped int
		payload []byte
	)

	for {
		b, err := d.readByte(ctx)
		if err != nil {
			if !errors.Is(err, errEmpty) {
				return Frame{}, err
			}
			// An ID byte alone already counts as a started frame, even
			// with no payload bytes behind it.
			if st == stateInPayload {
				return Frame{}, &IncompleteFrameError{Offset: start, ID: id, Buffered: len(payload)}
			}
			if d.cfg.Live {
				continue
			}
			return Frame{}, io.EOF
		}

		switch st {
		case stateIdle:
			if b != DLE {
				skipped++
				continue
			}
			start = d.offset - 1
			st = stateGotID

		case stateGotID:
			// Repeated DLEs before the ID are absorbed.
			if b == DLE {
				continue
			}
			id = b
			payload = make([]byte, 0, 64)
			st = stateInPayload

		case stateInPayload:
			if b == DLE {
				next, err := d.readByte(ctx)
				if err != nil {
					if errors.Is(err, errEmpty) {
						return Frame{}, &IncompleteFrameError{Offset: start, ID: id, Buffered: len(payload)}
					}
					return Frame{}, err
				}
				switch next {
				case ETX:
					f := Frame{ID: id, Payload: payload, Offset: start, Index: d.index}
					d.index++
					d.log.Debug().
						Uint64("frame", f.Index).
						Int64("offset", f.Offset).
						Str("id", fmt.Sprintf("0x%02X", f.ID)).
						Int("len", len(f.Payload)).
						Int("skipped", skipped).
						Msg("tsip frame")
					return f, nil
				case DLE:
					payload = append(payload, DLE)
				default:
					// Unstuffed DLE from the device: keep both bytes as data.
					d.log.Debug().
						Int64("offset", d.offset-2).
						Str("id", fmt.Sprintf("0x%02X", id)).
						Str("byte", fmt.Sprintf("0x%02X", next)).
						Msg("tsip lone DLE in payload")
					payload = append(payload, DLE, next)
				}
			} else {
				payload = append(payload, b)
			}

			if len(payload) > d.cfg.MaxPayload {
				if err := d.drain(ctx); err != nil && !errors.Is(err, errEmpty) {
					return Frame{}, err
				}
				return Frame{}, &FramingError{
					Offset: start,
					Index:  d.index,
					ID:     id,
					Reason: fmt.Sprintf("payload exceeds %d bytes", d.cfg.MaxPayload),
				}
			}
		}
	}
}

// drain discards input up to and including the next DLE ETX so the rest of
// an oversized frame is not rescanned as a new frame.
func (d *Decoder) drain(ctx context.Context) error {
	for {
		b, err := d.readByte(ctx)
		if err != nil {
			return err
		}
		if b != DLE {
			continue
		}
		next, err := d.readByte(ctx)
		if err != nil {
			return err
		}
		if next == ETX {
			return nil
		}
	}
}

func (d *Decoder) readByte(ctx context.Context) (byte, error) {
	if len(d.pending) == 0 {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := d.readErr; err != nil {
			d.readErr = nil
			if errors.Is(err, io.EOF) {
				return 0, errEmpty
			}
			return 0, &TransportError{Op: "read", Offset: d.offset, Err: err}
		}
		n, err := d.src.Read(d.buf)
		switch {
		case n > 0:
			d.pending = d.buf[:n]
			d.readErr = err
		case err == nil || errors.Is(err, io.EOF):
			return 0, errEmpty
		default:
			return 0, &TransportError{Op: "read", Offset: d.offset, Err: err}
		}
	}
	b := d.pending[0]
	d.pending = d.pending[1:]
	d.offset++
	return b, nil
}
