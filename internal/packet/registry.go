// Package packet decodes TSIP report payloads into typed records.
//
// A Registry maps each report ID to its decoder through a fixed 256-entry
// table. IDs without a decoder come back as Unknown with the payload untouched.
package packet

import (
	"errors"
	"fmt"

	"tsipmon/internal/gpstime"
	"tsipmon/internal/tsip"
)

// Packet is a decoded report. The concrete types in this package are the
// variants; switch on them to consume a report.
type Packet interface {
	PacketID() byte
}

// Unknown is a frame whose ID has no decoder.
type Unknown struct {
	ID      byte   `json:"id"`
	Payload []byte `json:"payload"`
}

func (u Unknown) PacketID() byte { return u.ID }

// FirmwareLayout selects the 0x45 payload interpretation. Receivers and
// documentation revisions disagree on it, so it is configuration.
type FirmwareLayout string

const (
	// FirmwareProduct: major, minor, month, day (u8), year (u16), product ID (u32).
	FirmwareProduct FirmwareLayout = "product"
	// FirmwareDual: navigation then signal processor, each major, minor,
	// month, day, year (u8).
	FirmwareDual FirmwareLayout = "dual"
)

// BiasLayout selects the 0x54 payload interpretation.
type BiasLayout string

const (
	// BiasFloat: bias, bias rate, time of fix as single floats.
	BiasFloat BiasLayout = "float"
	// BiasByte: bias, bias rate, time of fix as single bytes.
	BiasByte BiasLayout = "byte"
)

const (
	AlmanacRecordFull  = 39
	AlmanacRecordShort = 35
)

// Options configures a Registry.
type Options struct {
	// Time resolves the week counter of 0x41 reports. Required.
	Time *gpstime.Normalizer

	Firmware          FirmwareLayout
	Bias              BiasLayout
	AlmanacRecordSize int
}

var ErrNoNormalizer = errors.New("packet: options.Time is required")

type decodeFunc func(p []byte) (Packet, error)

type entry struct {
	name   string
	minLen int
	decode decodeFunc
}

type Registry struct {
	opts  Options
	table [256]*entry
}

func NewRegistry(opts Options) (*Registry, error) {
	if opts.Time == nil {
		return nil, ErrNoNormalizer
	}
	if opts.Firmware == "" {
		opts.Firmware = FirmwareProduct
	}
	if opts.Bias == "" {
		opts.Bias = BiasFloat
	}
	if opts.AlmanacRecordSize == 0 {
		opts.AlmanacRecordSize = AlmanacRecordFull
	}

	r := &Registry{opts: opts}

	var firmwareLen int
	switch opts.Firmware {
	case FirmwareProduct, FirmwareDual:
		firmwareLen = 10
	default:
		return nil, fmt.Errorf("packet: unknown firmware layout %q", opts.Firmware)
	}
	var biasLen int
	switch opts.Bias {
	case BiasFloat:
		biasLen = 12
	case BiasByte:
		biasLen = 3
	default:
		return nil, fmt.Errorf("packet: unknown bias layout %q", opts.Bias)
	}
	if opts.AlmanacRecordSize != AlmanacRecordFull && opts.AlmanacRecordSize != AlmanacRecordShort {
		return nil, fmt.Errorf("packet: almanac record size must be %d or %d, got %d", AlmanacRecordFull, AlmanacRecordShort, opts.AlmanacRecordSize)
	}

	r.register(0x40, "almanac data", opts.AlmanacRecordSize, r.decodeAlmanac)
	r.register(0x41, "gps time", 10, r.decodeGPSTime)
	r.register(0x42, "position xyz", 16, decodePositionXYZ)
	r.register(0x43, "velocity xyz", 12, decodeVelocityXYZ)
	r.register(0x44, "satellite selection", 21, decodeSatelliteSelection)
	r.register(0x45, "firmware info", firmwareLen, r.decodeFirmware)
	r.register(0x46, "health", 1, decodeHealth)
	r.register(0x47, "signal levels", 1, decodeSignalLevels)
	r.register(0x48, "system message", 22, decodeSystemMessage)
	r.register(0x49, "almanac health", 32, decodeAlmanacHealth)
	r.register(0x4A, "position lla", 20, decodePositionLLA)
	r.register(0x4B, "machine status", 3, decodeMachineStatus)
	r.register(0x54, "satellite bias", biasLen, r.decodeBias)
	r.register(0x55, "io options", 4, decodeIOOptions)
	r.register(0x5B, "ephemeris status", 16, decodeEphemerisStatus)
	r.register(0x70, "filter config", 4, decodeFilterConfig)
	r.register(0x82, "sbas status", 1, decodeSBASStatus)
	return r, nil
}

func (r *Registry) register(id byte, name string, minLen int, fn decodeFunc) {
	r.table[id] = &entry{name: name, minLen: minLen, decode: fn}
}

// ReferenceWeek returns the week the registry resolves 0x41 reports against.
func (r *Registry) ReferenceWeek() int { return r.opts.Time.ReferenceWeek() }

// Known returns the registered report IDs in ascending order.
func (r *Registry) Known() []byte {
	var ids []byte
	for id, e := range r.table {
		if e != nil {
			ids = append(ids, byte(id))
		}
	}
	return ids
}

// Name returns the report name for id, or "unknown".
func (r *Registry) Name(id byte) string {
	if e := r.table[id]; e != nil {
		return e.name
	}
	return "unknown"
}

// MinLen returns the minimum payload length for id and whether id is registered.
func (r *Registry) MinLen(id byte) (int, bool) {
	if e := r.table[id]; e != nil {
		return e.minLen, true
	}
	return 0, false
}

// Dispatch decodes a frame. Unregistered IDs yield Unknown and no error.
// Failures are *DecodeError carrying the frame's ID, index and offset.
func (r *Registry) Dispatch(f tsip.Frame) (Packet, error) {
	e := r.table[f.ID]
	if e == nil {
		return Unknown{ID: f.ID, Payload: f.Payload}, nil
	}

	var (
		pkt Packet
		err error
	)
	if len(f.Payload) < e.minLen {
		err = shortPayload(e.minLen, len(f.Payload))
	} else {
		pkt, err = e.decode(f.Payload)
	}
	if err != nil {
		var de *DecodeError
		if !errors.As(err, &de) {
			de = invalidField("payload", err)
		}
		de.ID = f.ID
		de.Name = e.name
		de.Index = f.Index
		de.Offset = f.Offset
		return nil, de
	}
	return pkt, nil
}

// Decode is Dispatch for a bare ID and payload.
func (r *Registry) Decode(id byte, payload []byte) (Packet, error) {
	return r.Dispatch(tsip.Frame{ID: id, Payload: payload})
}
