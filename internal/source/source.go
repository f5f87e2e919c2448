// Package source opens the byte stream a receiver session reads from: a
// serial port (live, writable) or a capture file or stdin (finite, read-only).
package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"tsipmon/internal/config"
)

// ErrReadOnly is returned by Write on a source that cannot accept commands.
var ErrReadOnly = errors.New("source: read-only")

// Port is an open byte source. Close is safe to call more than once and from
// another goroutine while a Read is blocked.
type Port struct {
	name string
	live bool
	rc   io.ReadCloser
	w    io.Writer

	closeOnce sync.Once
	closeErr  error
}

// New wraps an already open stream. w may be nil for read-only sources.
func New(name string, rc io.ReadCloser, w io.Writer, live bool) *Port {
	return &Port{name: name, rc: rc, w: w, live: live}
}

// Open opens the source described by cfg. stdin is used for kind "stdin".
func Open(cfg config.SourceConfig, stdin io.Reader) (*Port, error) {
	switch cfg.Kind {
	case config.SourceSerial:
		device := strings.TrimSpace(cfg.Device)
		if device == "auto" {
			device = autoDetectDevice()
			if device == "" {
				return nil, fmt.Errorf("serial auto-detect failed: no /dev/ttyUSB* or /dev/ttyACM* found")
			}
		}
		rwc, err := openSerial(device, cfg.Baud, cfg.RTSCTS, cfg.ReadTimeout)
		if err != nil {
			return nil, fmt.Errorf("open serial device=%s baud=%d: %w", device, cfg.Baud, err)
		}
		return New(device, rwc, rwc, true), nil
	case config.SourceFile:
		f, err := os.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return New(cfg.Path, f, nil, false), nil
	case config.SourceStdin:
		if stdin == nil {
			stdin = os.Stdin
		}
		return New("stdin", io.NopCloser(stdin), nil, false), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

func (p *Port) Read(b []byte) (int, error) { return p.rc.Read(b) }

func (p *Port) Write(b []byte) (int, error) {
	if p.w == nil {
		return 0, ErrReadOnly
	}
	return p.w.Write(b)
}

func (p *Port) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.rc.Close()
	})
	return p.closeErr
}

// Live reports whether an empty read means "no data yet" rather than end of
// stream.
func (p *Port) Live() bool { return p.live }

func (p *Port) Name() string { return p.name }

// CommandSink returns the writer commands go to, or nil if the source is
// read-only.
func (p *Port) CommandSink() io.Writer {
	if p.w == nil {
		return nil
	}
	return p
}

// deciseconds converts a read timeout into the tty driver's 0.1s units.
func deciseconds(d time.Duration) uint8 {
	ds := d / (100 * time.Millisecond)
	if ds < 1 {
		return 1
	}
	if ds > 255 {
		return 255
	}
	return uint8(ds)
}

func autoDetectDevice() string {
	var candidates []string
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyUSB%d", i))
	}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyACM%d", i))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
