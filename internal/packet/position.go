package packet

import "math"

const radToDeg = 180 / math.Pi

// PositionXYZ is report 0x42, an ECEF fix in meters.
type PositionXYZ struct {
	X         Float32 `json:"x_m"`
	Y         Float32 `json:"y_m"`
	Z         Float32 `json:"z_m"`
	TimeOfFix Float32 `json:"time_of_fix"`
}

func (PositionXYZ) PacketID() byte { return 0x42 }

func decodePositionXYZ(p []byte) (Packet, error) {
	return PositionXYZ{
		X:         f32(p, 0),
		Y:         f32(p, 4),
		Z:         f32(p, 8),
		TimeOfFix: f32(p, 12),
	}, nil
}

// VelocityXYZ is report 0x43, ECEF velocity in m/s. Receivers that send the
// long form also report the clock bias rate and time of fix.
type VelocityXYZ struct {
	X Float32 `json:"x_mps"`
	Y Float32 `json:"y_mps"`
	Z Float32 `json:"z_mps"`

	HasTiming bool    `json:"has_timing"`
	BiasRate  Float32 `json:"bias_rate_mps,omitempty"`
	TimeOfFix Float32 `json:"time_of_fix,omitempty"`
}

func (VelocityXYZ) PacketID() byte { return 0x43 }

func decodeVelocityXYZ(p []byte) (Packet, error) {
	v := VelocityXYZ{
		X: f32(p, 0),
		Y: f32(p, 4),
		Z: f32(p, 8),
	}
	if len(p) >= 20 {
		v.HasTiming = true
		v.BiasRate = f32(p, 12)
		v.TimeOfFix = f32(p, 16)
	}
	return v, nil
}

// PositionLLA is report 0x4A. Latitude and longitude are radians.
type PositionLLA struct {
	Latitude  Float32 `json:"lat_rad"`
	Longitude Float32 `json:"lon_rad"`
	Altitude  Float32 `json:"alt_m"`
	ClockBias Float32 `json:"clock_bias_m"`
	TimeOfFix Float32 `json:"time_of_fix"`
}

func (PositionLLA) PacketID() byte { return 0x4A }

func (p PositionLLA) LatitudeDeg() float64  { return float64(p.Latitude) * radToDeg }
func (p PositionLLA) LongitudeDeg() float64 { return float64(p.Longitude) * radToDeg }

func decodePositionLLA(p []byte) (Packet, error) {
	return PositionLLA{
		Latitude:  f32(p, 0),
		Longitude: f32(p, 4),
		Altitude:  f32(p, 8),
		ClockBias: f32(p, 12),
		TimeOfFix: f32(p, 16),
	}, nil
}
