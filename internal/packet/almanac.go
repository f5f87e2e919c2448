package packet

// AlmanacRecord is one satellite's almanac. TZC is only present in the
// 39-byte record layout.
type AlmanacRecord struct {
	PRN          uint8   `json:"prn"`
	TZC          Float32 `json:"t_zc,omitempty"`
	Week         uint16  `json:"week"`
	Eccentricity Float32 `json:"eccentricity"`
	TOA          Float32 `json:"t_oa"`
	Inclination  Float32 `json:"i_o"`
	OmegaDot     Float32 `json:"omega_dot"`
	SqrtA        Float32 `json:"sqrt_a"`
	Omega0       Float32 `json:"omega_0"`
	Omega        Float32 `json:"omega"`
	M0           Float32 `json:"m_0"`
}

// AlmanacData is report 0x40. The payload holds as many fixed-size records
// as fit; Trailing counts bytes left over after the last full record.
type AlmanacData struct {
	Records  []AlmanacRecord `json:"records"`
	Trailing int             `json:"trailing,omitempty"`
}

func (AlmanacData) PacketID() byte { return 0x40 }

func (r *Registry) decodeAlmanac(p []byte) (Packet, error) {
	size := r.opts.AlmanacRecordSize
	a := AlmanacData{Records: make([]AlmanacRecord, 0, len(p)/size)}
	off := 0
	for ; off+size <= len(p); off += size {
		a.Records = append(a.Records, decodeAlmanacRecord(p[off:off+size]))
	}
	a.Trailing = len(p) - off
	return a, nil
}

func decodeAlmanacRecord(p []byte) AlmanacRecord {
	rec := AlmanacRecord{PRN: p[0]}
	base := 3
	if len(p) == AlmanacRecordFull {
		rec.TZC = f32(p, 1)
		rec.Week = u16(p, 5)
		base = 7
	} else {
		rec.Week = u16(p, 1)
	}
	rec.Eccentricity = f32(p, base)
	rec.TOA = f32(p, base+4)
	rec.Inclination = f32(p, base+8)
	rec.OmegaDot = f32(p, base+12)
	rec.SqrtA = f32(p, base+16)
	rec.Omega0 = f32(p, base+20)
	rec.Omega = f32(p, base+24)
	rec.M0 = f32(p, base+28)
	return rec
}

// AlmanacHealth is report 0x49: one health byte per PRN 1..32.
type AlmanacHealth struct {
	Flags     [32]uint8 `json:"flags"`
	Healthy   int       `json:"healthy"`
	Unhealthy int       `json:"unhealthy"`
}

func (AlmanacHealth) PacketID() byte { return 0x49 }

// IsHealthy reports whether satellite prn (1..32) has a zero health byte.
func (a AlmanacHealth) IsHealthy(prn int) bool {
	if prn < 1 || prn > len(a.Flags) {
		return false
	}
	return a.Flags[prn-1] == 0
}

func decodeAlmanacHealth(p []byte) (Packet, error) {
	var a AlmanacHealth
	copy(a.Flags[:], p[:32])
	for _, f := range a.Flags {
		if f == 0 {
			a.Healthy++
		} else {
			a.Unhealthy++
		}
	}
	return a, nil
}
