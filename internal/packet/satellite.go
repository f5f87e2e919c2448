package packet

import "fmt"

// SatelliteSelection is report 0x44, the non-overdetermined satellite
// selection with dilution of precision.
type SatelliteSelection struct {
	Mode     uint8    `json:"mode"`
	ModeText string   `json:"mode_text"`
	PRNs     [4]uint8 `json:"prns"`
	PDOP     Float32  `json:"pdop"`
	HDOP     Float32  `json:"hdop"`
	VDOP     Float32  `json:"vdop"`
	TDOP     Float32  `json:"tdop"`
}

func (SatelliteSelection) PacketID() byte { return 0x44 }

var selectionModes = map[uint8]string{
	0x01: "auto, 1-satellite, 0D",
	0x03: "auto, 3-satellite, 2D",
	0x04: "auto, 4-satellite, 3D",
	0x11: "manual, 1-satellite, 0D",
	0x13: "manual, 3-satellite, 2D",
	0x14: "manual, 4-satellite, 3D",
}

// SelectionModeText names a 0x44 mode code.
func SelectionModeText(mode uint8) string {
	if s, ok := selectionModes[mode]; ok {
		return s
	}
	return "unknown mode"
}

func decodeSatelliteSelection(p []byte) (Packet, error) {
	s := SatelliteSelection{
		Mode:     p[0],
		ModeText: SelectionModeText(p[0]),
		PDOP:     f32(p, 5),
		HDOP:     f32(p, 9),
		VDOP:     f32(p, 13),
		TDOP:     f32(p, 17),
	}
	copy(s.PRNs[:], p[1:5])
	return s, nil
}

type SignalLevel struct {
	PRN   uint8   `json:"prn"`
	Level Float32 `json:"level"`
}

// SignalLevels is report 0x47.
type SignalLevels struct {
	Levels []SignalLevel `json:"levels"`
}

func (SignalLevels) PacketID() byte { return 0x47 }

func decodeSignalLevels(p []byte) (Packet, error) {
	n := int(p[0])
	if want := 1 + 5*n; len(p) < want {
		return nil, shortPayload(want, len(p))
	}
	s := SignalLevels{Levels: make([]SignalLevel, n)}
	for i := range s.Levels {
		off := 1 + 5*i
		s.Levels[i] = SignalLevel{PRN: p[off], Level: f32(p, off+1)}
	}
	return s, nil
}

// SatelliteBias is report 0x54. Which layout produced it is recorded because
// the units differ between them.
type SatelliteBias struct {
	Layout    BiasLayout `json:"layout"`
	Bias      Float64    `json:"bias"`
	BiasRate  Float64    `json:"bias_rate"`
	TimeOfFix Float64    `json:"time_of_fix"`
}

func (SatelliteBias) PacketID() byte { return 0x54 }

func (r *Registry) decodeBias(p []byte) (Packet, error) {
	switch r.opts.Bias {
	case BiasByte:
		return SatelliteBias{
			Layout:    BiasByte,
			Bias:      Float64(p[0]),
			BiasRate:  Float64(p[1]),
			TimeOfFix: Float64(p[2]),
		}, nil
	case BiasFloat:
		return SatelliteBias{
			Layout:    BiasFloat,
			Bias:      Float64(f32(p, 0)),
			BiasRate:  Float64(f32(p, 4)),
			TimeOfFix: Float64(f32(p, 8)),
		}, nil
	default:
		return nil, invalidField("layout", fmt.Errorf("unsupported bias layout %q", r.opts.Bias))
	}
}

// EphemerisStatus is report 0x5B.
type EphemerisStatus struct {
	PRN            uint8   `json:"prn"`
	CollectionTime Float32 `json:"collection_time"`
	Health         uint8   `json:"health"`
	IODE           uint8   `json:"iode"`
	TOE            Float32 `json:"toe"`
	FitInterval    uint8   `json:"fit_interval"`
	URA            Float32 `json:"ura_m"`
}

func (EphemerisStatus) PacketID() byte { return 0x5B }

func decodeEphemerisStatus(p []byte) (Packet, error) {
	return EphemerisStatus{
		PRN:            p[0],
		CollectionTime: f32(p, 1),
		Health:         p[5],
		IODE:           p[6],
		TOE:            f32(p, 7),
		FitInterval:    p[11],
		URA:            f32(p, 12),
	}, nil
}
