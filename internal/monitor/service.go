// Package monitor runs a decode session: it pulls frames from a byte source,
// dispatches them to packet decoders and fans the results out to sinks.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"tsipmon/internal/gpstime"
	"tsipmon/internal/packet"
	"tsipmon/internal/tsip"
)

// Source is the byte stream a session owns. Close must unblock a pending Read.
type Source interface {
	io.ReadCloser
	Live() bool
	Name() string
	// CommandSink returns nil when the source cannot accept commands.
	CommandSink() io.Writer
}

// Command is written to the receiver before decoding starts.
type Command struct {
	ID      byte
	Payload []byte
}

type Config struct {
	Registry *packet.Registry

	MaxPayload  int
	DebugFrames bool

	Commands []Command
	Sinks    []Sink

	Logger zerolog.Logger
	// Now stamps events. Defaults to time.Now.
	Now func() time.Time
}

type Snapshot struct {
	Source        string `json:"source,omitempty"`
	Live          bool   `json:"live"`
	Running       bool   `json:"running"`
	ReferenceWeek int    `json:"reference_week"`
	StartedUTC    string `json:"started_utc,omitempty"`
	LastFrameUTC  string `json:"last_frame_utc,omitempty"`

	BytesRead        int64             `json:"bytes_read"`
	Frames           uint64            `json:"frames"`
	Reports          uint64            `json:"reports"`
	Unknown          uint64            `json:"unknown"`
	DecodeErrors     uint64            `json:"decode_errors"`
	FramingErrors    uint64            `json:"framing_errors"`
	IncompleteFrames uint64            `json:"incomplete_frames"`
	CommandsSent     uint64            `json:"commands_sent"`
	PerPacket        map[string]uint64 `json:"per_packet,omitempty"`

	Time     *gpstime.Absolute    `json:"time,omitempty"`
	Position *packet.PositionLLA  `json:"position,omitempty"`
	Health   *packet.Health       `json:"health,omitempty"`
	Firmware *packet.FirmwareInfo `json:"firmware,omitempty"`

	LastError string `json:"last_error,omitempty"`
}

type Service struct {
	cfg Config
	log zerolog.Logger

	running atomic.Bool
	last    atomic.Value // Snapshot
}

var ErrRunning = errors.New("monitor: session already running")

func New(cfg Config) (*Service, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("monitor: registry is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Service{cfg: cfg, log: cfg.Logger}
	s.last.Store(Snapshot{ReferenceWeek: cfg.Registry.ReferenceWeek()})
	return s, nil
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	v := s.last.Load()
	if v == nil {
		return Snapshot{}
	}
	return v.(Snapshot)
}

// Run decodes src until it is exhausted, ctx is done or the transport fails.
// src is closed on every return path. A finite source that runs out returns
// nil; cancellation returns ctx.Err(); a transport failure returns the
// *tsip.TransportError. Framing and decode errors are logged, counted and
// published, and never end the session.
func (s *Service) Run(ctx context.Context, src Source) error {
	if !s.running.CompareAndSwap(false, true) {
		_ = src.Close()
		return ErrRunning
	}
	defer s.running.Store(false)

	defer src.Close()
	stop := context.AfterFunc(ctx, func() { _ = src.Close() })
	defer stop()

	log := s.log.With().Str("source", src.Name()).Bool("live", src.Live()).Logger()
	st := Snapshot{
		Source:        src.Name(),
		Live:          src.Live(),
		Running:       true,
		ReferenceWeek: s.cfg.Registry.ReferenceWeek(),
		StartedUTC:    s.cfg.Now().UTC().Format(time.RFC3339Nano),
		PerPacket:     map[string]uint64{},
	}
	defer func() {
		st.Running = false
		s.store(st)
	}()
	s.store(st)

	w := tsip.NewWriter(src.CommandSink(), src.Live(), &log)
	for _, c := range s.cfg.Commands {
		if err := w.WriteCommand(c.ID, c.Payload); err != nil {
			st.LastError = err.Error()
			return err
		}
	}
	st.CommandsSent = w.Sent()
	s.store(st)

	var frameLog *zerolog.Logger
	if s.cfg.DebugFrames {
		frameLog = &log
	}
	dec := tsip.NewDecoder(src, tsip.DecoderConfig{
		Live:       src.Live(),
		MaxPayload: s.cfg.MaxPayload,
		Logger:     frameLog,
	})

	log.Info().Int("commands", len(s.cfg.Commands)).Msg("tsip session started")
	for {
		f, err := dec.Next(ctx)
		st.BytesRead = dec.Offset()
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Uint64("frames", st.Frames).Msg("tsip session stopped")
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				log.Info().Uint64("frames", st.Frames).Int64("bytes", st.BytesRead).Msg("tsip input exhausted")
				return nil
			}

			var fe *tsip.FramingError
			var ie *tsip.IncompleteFrameError
			switch {
			case errors.As(err, &fe):
				st.FramingErrors++
				st.LastError = err.Error()
				log.Warn().Err(err).Msg("tsip frame dropped")
				s.publish(&log, Event{Kind: KindFraming, Index: fe.Index, Offset: fe.Offset, ID: fe.ID, Error: err.Error()})
			case errors.As(err, &ie):
				st.IncompleteFrames++
				st.LastError = err.Error()
				log.Warn().Err(err).Msg("tsip input ended inside a frame")
				s.publish(&log, Event{Kind: KindIncomplete, Offset: ie.Offset, ID: ie.ID, Error: err.Error()})
			default:
				st.LastError = err.Error()
				log.Error().Err(err).Msg("tsip transport failed")
				return err
			}
			s.store(st)
			continue
		}

		s.handleFrame(&log, &st, f)
		s.store(st)
	}
}

func (s *Service) handleFrame(log *zerolog.Logger, st *Snapshot, f tsip.Frame) {
	now := s.cfg.Now().UTC()
	st.Frames++
	st.LastFrameUTC = now.Format(time.RFC3339Nano)
	st.PerPacket[fmt.Sprintf("0x%02X", f.ID)]++

	ev := Event{
		Index:  f.Index,
		Offset: f.Offset,
		ID:     f.ID,
		Name:   s.cfg.Registry.Name(f.ID),
		At:     now,
	}

	pkt, err := s.cfg.Registry.Dispatch(f)
	if err != nil {
		st.DecodeErrors++
		st.LastError = err.Error()
		log.Warn().Err(err).Msg("tsip packet rejected")
		ev.Kind = KindDecodeError
		ev.Error = err.Error()
		s.publish(log, ev)
		return
	}

	ev.Report = pkt
	switch p := pkt.(type) {
	case packet.Unknown:
		st.Unknown++
		ev.Kind = KindUnknown
		log.Debug().Str("id", fmt.Sprintf("0x%02X", p.ID)).Int("len", len(p.Payload)).Msg("tsip unknown packet")
	case packet.GPSTime:
		st.Reports++
		ev.Kind = KindReport
		abs := p.Resolved
		st.Time = &abs
		if !abs.OffsetValid {
			log.Warn().Float32("utc_offset", float32(p.UTCOffset)).Msg("tsip utc offset out of range; not applied")
		}
	case packet.PositionLLA:
		st.Reports++
		ev.Kind = KindReport
		st.Position = &p
	case packet.Health:
		st.Reports++
		ev.Kind = KindReport
		st.Health = &p
	case packet.FirmwareInfo:
		st.Reports++
		ev.Kind = KindReport
		st.Firmware = &p
	default:
		st.Reports++
		ev.Kind = KindReport
	}
	s.publish(log, ev)
}

func (s *Service) publish(log *zerolog.Logger, ev Event) {
	if ev.At.IsZero() {
		ev.At = s.cfg.Now().UTC()
	}
	for _, sink := range s.cfg.Sinks {
		if err := sink.Publish(ev); err != nil {
			log.Warn().Err(err).Str("sink", sink.Name()).Str("kind", string(ev.Kind)).Msg("sink publish failed")
		}
	}
}

func (s *Service) store(st Snapshot) {
	st.PerPacket = maps.Clone(st.PerPacket)
	s.last.Store(st)
}
