package packet

import "tsipmon/internal/gpstime"

// GPSTime is report 0x41.
type GPSTime struct {
	TimeOfWeek Float32 `json:"time_of_week"`
	// Week is the counter as transmitted.
	Week      uint16  `json:"week"`
	UTCOffset Float32 `json:"utc_offset"`

	Resolved gpstime.Absolute `json:"resolved"`
}

func (GPSTime) PacketID() byte { return 0x41 }

func (r *Registry) decodeGPSTime(p []byte) (Packet, error) {
	t := GPSTime{
		TimeOfWeek: f32(p, 0),
		Week:       u16(p, 4),
		UTCOffset:  f32(p, 6),
	}
	abs, err := r.opts.Time.Resolve(gpstime.Time{
		TimeOfWeek: float64(t.TimeOfWeek),
		Week:       t.Week,
		UTCOffset:  float64(t.UTCOffset),
	})
	if err != nil {
		return nil, invalidField("time_of_week", err)
	}
	t.Resolved = abs
	return t, nil
}
