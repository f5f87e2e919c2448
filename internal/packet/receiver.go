package packet

import "fmt"

// Version is a firmware version stamp.
type Version struct {
	Major uint8  `json:"major"`
	Minor uint8  `json:"minor"`
	Month uint8  `json:"month"`
	Day   uint8  `json:"day"`
	Year  uint16 `json:"year"`
}

// FirmwareInfo is report 0x45. With FirmwareProduct, Navigation carries the
// version and ProductID is set. With FirmwareDual, Navigation and Signal carry
// the two processor stamps and Year is the raw single byte sent.
type FirmwareInfo struct {
	Layout     FirmwareLayout `json:"layout"`
	Navigation Version        `json:"navigation"`
	Signal     *Version       `json:"signal,omitempty"`
	ProductID  uint32         `json:"product_id,omitempty"`
}

func (FirmwareInfo) PacketID() byte { return 0x45 }

func (r *Registry) decodeFirmware(p []byte) (Packet, error) {
	switch r.opts.Firmware {
	case FirmwareProduct:
		return FirmwareInfo{
			Layout: FirmwareProduct,
			Navigation: Version{
				Major: p[0],
				Minor: p[1],
				Month: p[2],
				Day:   p[3],
				Year:  u16(p, 4),
			},
			ProductID: u32(p, 6),
		}, nil
	case FirmwareDual:
		stamp := func(b []byte) Version {
			return Version{Major: b[0], Minor: b[1], Month: b[2], Day: b[3], Year: uint16(b[4])}
		}
		sig := stamp(p[5:10])
		return FirmwareInfo{
			Layout:     FirmwareDual,
			Navigation: stamp(p[0:5]),
			Signal:     &sig,
		}, nil
	default:
		return nil, invalidField("layout", fmt.Errorf("unsupported firmware layout %q", r.opts.Firmware))
	}
}

// Health is report 0x46. The error byte is optional; HasErrorCode reports
// whether it was sent.
type Health struct {
	Status       uint8  `json:"status"`
	StatusText   string `json:"status_text"`
	HasErrorCode bool   `json:"has_error_code"`
	ErrorCode    uint8  `json:"error_code,omitempty"`

	BatteryBackupFailed bool `json:"battery_backup_failed"`
	AntennaOpen         bool `json:"antenna_open"`
	AntennaShorted      bool `json:"antenna_shorted"`
}

func (Health) PacketID() byte { return 0x46 }

var healthStatus = map[uint8]string{
	0x00: "doing position fixes",
	0x01: "do not have GPS time yet",
	0x03: "PDOP is too high",
	0x08: "no usable satellites",
	0x09: "only 1 usable satellite",
	0x0A: "only 2 usable satellites",
	0x0B: "only 3 usable satellites",
	0x0C: "the chosen satellite is unusable",
}

// HealthStatusText names a 0x46 status code.
func HealthStatusText(code uint8) string {
	if s, ok := healthStatus[code]; ok {
		return s
	}
	return "unknown status code"
}

func decodeHealth(p []byte) (Packet, error) {
	h := Health{Status: p[0], StatusText: HealthStatusText(p[0])}
	if len(p) >= 2 {
		h.HasErrorCode = true
		h.ErrorCode = p[1]
		h.BatteryBackupFailed = bit(p[1], 0x01)
		h.AntennaOpen = bit(p[1], 0x10)
		h.AntennaShorted = bit(p[1], 0x20)
	}
	return h, nil
}

// SystemMessage is report 0x48, a fixed 22-byte text field.
type SystemMessage struct {
	Text string `json:"text"`
}

func (SystemMessage) PacketID() byte { return 0x48 }

func decodeSystemMessage(p []byte) (Packet, error) {
	return SystemMessage{Text: ascii(p[:22])}, nil
}

// MachineStatus is report 0x4B.
type MachineStatus struct {
	MachineID uint8 `json:"machine_id"`
	Status1   uint8 `json:"status1"`
	Status2   uint8 `json:"status2"`

	BatteryFault          bool `json:"battery_fault"`
	Acknowledged          bool `json:"acknowledged"`
	SuperPacketsSupported bool `json:"superpackets_supported"`
	ReceiverResetFault    bool `json:"receiver_reset_fault"`
	AlmanacFault          bool `json:"almanac_fault"`
	ConverterFault        bool `json:"converter_fault"`
}

func (MachineStatus) PacketID() byte { return 0x4B }

func decodeMachineStatus(p []byte) (Packet, error) {
	s1, s2 := p[1], p[2]
	return MachineStatus{
		MachineID:             p[0],
		Status1:               s1,
		Status2:               s2,
		BatteryFault:          bit(s1, 0x02),
		Acknowledged:          bit(s1, 0x08),
		SuperPacketsSupported: bit(s2, 0x01),
		ReceiverResetFault:    bit(s2, 0x02),
		AlmanacFault:          bit(s2, 0x04),
		ConverterFault:        bit(s2, 0x08),
	}, nil
}

// IOOptions is report 0x55.
type IOOptions struct {
	Position  uint8 `json:"position"`
	Velocity  uint8 `json:"velocity"`
	Timing    uint8 `json:"timing"`
	Auxiliary uint8 `json:"auxiliary"`

	PositionECEF     bool `json:"position_ecef"`
	PositionLLA      bool `json:"position_lla"`
	AltitudeMSL      bool `json:"altitude_msl"`
	AltitudeInputMSL bool `json:"altitude_input_msl"`
	DoublePrecision  bool `json:"double_precision"`
	SuperPackets     bool `json:"superpackets"`

	VelocityECEF bool `json:"velocity_ecef"`
	VelocityENU  bool `json:"velocity_enu"`

	UTCTime                  bool `json:"utc_time"`
	FixAtIntegerSecond       bool `json:"fix_at_integer_second"`
	FixOnRequest             bool `json:"fix_on_request"`
	SimultaneousMeasurements bool `json:"simultaneous_measurements"`
	MinimumProjection        bool `json:"minimum_projection"`

	RawMeasurements     bool `json:"raw_measurements"`
	CodephaseSource     bool `json:"codephase_source"`
	AdditionalFixStatus bool `json:"additional_fix_status"`
	SignalDBHz          bool `json:"signal_dbhz"`
}

func (IOOptions) PacketID() byte { return 0x55 }

func decodeIOOptions(p []byte) (Packet, error) {
	pos, vel, tim, aux := p[0], p[1], p[2], p[3]
	return IOOptions{
		Position:  pos,
		Velocity:  vel,
		Timing:    tim,
		Auxiliary: aux,

		PositionECEF:     bit(pos, 0x01),
		PositionLLA:      bit(pos, 0x02),
		AltitudeMSL:      bit(pos, 0x04),
		AltitudeInputMSL: bit(pos, 0x08),
		DoublePrecision:  bit(pos, 0x10),
		SuperPackets:     bit(pos, 0x20),

		VelocityECEF: bit(vel, 0x01),
		VelocityENU:  bit(vel, 0x02),

		UTCTime:                  bit(tim, 0x01),
		FixAtIntegerSecond:       bit(tim, 0x02),
		FixOnRequest:             bit(tim, 0x04),
		SimultaneousMeasurements: bit(tim, 0x08),
		MinimumProjection:        bit(tim, 0x10),

		RawMeasurements:     bit(aux, 0x01),
		CodephaseSource:     bit(aux, 0x02),
		AdditionalFixStatus: bit(aux, 0x04),
		SignalDBHz:          bit(aux, 0x08),
	}, nil
}

// FilterConfig is report 0x70, the position/velocity filter switches.
type FilterConfig struct {
	Dynamic  uint8 `json:"dynamic"`
	Static   uint8 `json:"static"`
	Altitude uint8 `json:"altitude"`
	Reserved uint8 `json:"reserved"`
}

func (FilterConfig) PacketID() byte { return 0x70 }

func decodeFilterConfig(p []byte) (Packet, error) {
	return FilterConfig{Dynamic: p[0], Static: p[1], Altitude: p[2], Reserved: p[3]}, nil
}

// SBASStatus is report 0x82.
type SBASStatus struct {
	Bits uint8 `json:"bits"`
}

func (SBASStatus) PacketID() byte { return 0x82 }

// Bit reports whether status bit n (0..7) is set.
func (s SBASStatus) Bit(n uint) bool { return n < 8 && s.Bits&(1<<n) != 0 }

func decodeSBASStatus(p []byte) (Packet, error) {
	return SBASStatus{Bits: p[0]}, nil
}
