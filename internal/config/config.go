package config

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"tsipmon/internal/gpstime"
	"tsipmon/internal/logging"
	"tsipmon/internal/packet"
	"tsipmon/internal/tsip"
)

// StaleWeeks is how far the reference week may lag the clock before
// Warnings reports it. Past 512 weeks a transmitted week can resolve into the
// wrong epoch.
const StaleWeeks = gpstime.WeekModulus / 2

type Config struct {
	Source   SourceConfig    `yaml:"source" toml:"source"`
	Decode   DecodeConfig    `yaml:"decode" toml:"decode"`
	Log      LogConfig       `yaml:"log" toml:"log"`
	Commands []CommandConfig `yaml:"commands" toml:"commands"`
	Output   OutputConfig    `yaml:"output" toml:"output"`
}

const (
	SourceSerial = "serial"
	SourceFile   = "file"
	SourceStdin  = "stdin"
)

type SourceConfig struct {
	Kind        string        `yaml:"kind" toml:"kind"`
	Device      string        `yaml:"device" toml:"device"`
	Baud        int           `yaml:"baud" toml:"baud"`
	RTSCTS      bool          `yaml:"rtscts" toml:"rtscts"`
	ReadTimeout time.Duration `yaml:"read_timeout" toml:"read_timeout"`
	Path        string        `yaml:"path" toml:"path"`
}

type DecodeConfig struct {
	ReferenceWeek     int    `yaml:"reference_week" toml:"reference_week"`
	FirmwareLayout    string `yaml:"firmware_layout" toml:"firmware_layout"`
	BiasLayout        string `yaml:"bias_layout" toml:"bias_layout"`
	AlmanacRecordSize int    `yaml:"almanac_record_size" toml:"almanac_record_size"`
	MaxPayload        int    `yaml:"max_payload" toml:"max_payload"`
}

type LogConfig struct {
	Level       string `yaml:"level" toml:"level"`
	Format      string `yaml:"format" toml:"format"`
	DebugFrames bool   `yaml:"debug_frames" toml:"debug_frames"`
}

// CommandConfig is a packet written to the receiver at startup. Payload is
// hex; Bytes holds it decoded after validation.
type CommandConfig struct {
	ID      int    `yaml:"id" toml:"id"`
	Payload string `yaml:"payload" toml:"payload"`

	Bytes []byte `yaml:"-" toml:"-"`
}

type OutputConfig struct {
	UDP  UDPConfig  `yaml:"udp" toml:"udp"`
	MQTT MQTTConfig `yaml:"mqtt" toml:"mqtt"`
	Web  WebConfig  `yaml:"web" toml:"web"`
}

type UDPConfig struct {
	Enable bool   `yaml:"enable" toml:"enable"`
	Dest   string `yaml:"dest" toml:"dest"`
}

type MQTTConfig struct {
	Enable      bool   `yaml:"enable" toml:"enable"`
	Broker      string `yaml:"broker" toml:"broker"`
	ClientID    string `yaml:"client_id" toml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix" toml:"topic_prefix"`
	QoS         int    `yaml:"qos" toml:"qos"`
	Retain      bool   `yaml:"retain" toml:"retain"`
}

type WebConfig struct {
	Enable bool   `yaml:"enable" toml:"enable"`
	Listen string `yaml:"listen" toml:"listen"`
}

// Load reads path and applies defaults and validation.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read decodes path without applying defaults. Files ending in .toml are TOML;
// everything else is YAML. Unknown keys are rejected in both.
func Read(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.Decode(string(b), &cfg)
		if err != nil {
			return Config{}, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return Config{}, fmt.Errorf("config contains unknown fields: %s", strings.Join(keys, ", "))
		}
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		var te *yaml.TypeError
		if errors.As(err, &te) && strings.Contains(te.Error(), "not found in type") {
			return Config{}, fmt.Errorf("config contains unknown fields: %s", strings.Join(te.Errors, "; "))
		}
		return Config{}, err
	}
	return cfg, nil
}

func DefaultAndValidate(cfg *Config) error {
	if err := defaultSource(&cfg.Source); err != nil {
		return err
	}
	if err := defaultDecode(&cfg.Decode); err != nil {
		return err
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if _, ok := logging.ParseLevel(cfg.Log.Level); !ok {
		return fmt.Errorf("log.level %q is not one of trace, debug, info, warn, error, disabled", cfg.Log.Level)
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = logging.FormatConsole
	}
	if cfg.Log.Format != logging.FormatConsole && cfg.Log.Format != logging.FormatJSON {
		return fmt.Errorf("log.format must be 'console' or 'json'")
	}

	for i := range cfg.Commands {
		c := &cfg.Commands[i]
		if c.ID < 0 || c.ID > 0xFF {
			return fmt.Errorf("commands[%d].id must be between 0x00 and 0xFF", i)
		}
		if byte(c.ID) == tsip.DLE {
			return fmt.Errorf("commands[%d].id 0x10 is reserved", i)
		}
		raw := strings.ReplaceAll(strings.TrimSpace(c.Payload), " ", "")
		b, err := hex.DecodeString(raw)
		if err != nil {
			return fmt.Errorf("commands[%d].payload must be hex: %w", i, err)
		}
		c.Bytes = b
	}

	return defaultOutput(&cfg.Output)
}

func defaultSource(s *SourceConfig) error {
	if s.Kind == "" {
		s.Kind = SourceSerial
	}
	switch s.Kind {
	case SourceSerial:
		if s.Device == "" {
			return fmt.Errorf("source.device is required when source.kind is 'serial'")
		}
		if s.Baud == 0 {
			s.Baud = 19200
		}
		if s.Baud < 0 {
			return fmt.Errorf("source.baud must be > 0")
		}
		if s.ReadTimeout == 0 {
			s.ReadTimeout = 10 * time.Second
		}
		// The tty driver counts the inter-byte timeout in 0.1s units, max 255.
		if s.ReadTimeout < 100*time.Millisecond || s.ReadTimeout > 25500*time.Millisecond {
			return fmt.Errorf("source.read_timeout must be between 100ms and 25.5s")
		}
	case SourceFile:
		if s.Path == "" {
			return fmt.Errorf("source.path is required when source.kind is 'file'")
		}
	case SourceStdin:
	default:
		return fmt.Errorf("source.kind must be 'serial', 'file' or 'stdin'")
	}
	return nil
}

func defaultDecode(d *DecodeConfig) error {
	if d.ReferenceWeek <= 0 {
		return fmt.Errorf("decode.reference_week is required")
	}
	if d.FirmwareLayout == "" {
		d.FirmwareLayout = string(packet.FirmwareProduct)
	}
	switch packet.FirmwareLayout(d.FirmwareLayout) {
	case packet.FirmwareProduct, packet.FirmwareDual:
	default:
		return fmt.Errorf("decode.firmware_layout must be 'product' or 'dual'")
	}
	if d.BiasLayout == "" {
		d.BiasLayout = string(packet.BiasFloat)
	}
	switch packet.BiasLayout(d.BiasLayout) {
	case packet.BiasFloat, packet.BiasByte:
	default:
		return fmt.Errorf("decode.bias_layout must be 'float' or 'byte'")
	}
	if d.AlmanacRecordSize == 0 {
		d.AlmanacRecordSize = packet.AlmanacRecordFull
	}
	if d.AlmanacRecordSize != packet.AlmanacRecordFull && d.AlmanacRecordSize != packet.AlmanacRecordShort {
		return fmt.Errorf("decode.almanac_record_size must be %d or %d", packet.AlmanacRecordFull, packet.AlmanacRecordShort)
	}
	if d.MaxPayload == 0 {
		d.MaxPayload = tsip.DefaultMaxPayload
	}
	if d.MaxPayload < 0 {
		return fmt.Errorf("decode.max_payload must be > 0")
	}
	return nil
}

func defaultOutput(o *OutputConfig) error {
	if o.UDP.Enable && o.UDP.Dest == "" {
		return fmt.Errorf("output.udp.dest is required when output.udp.enable is true")
	}

	if o.MQTT.ClientID == "" {
		o.MQTT.ClientID = logging.App
	}
	if o.MQTT.TopicPrefix == "" {
		o.MQTT.TopicPrefix = "tsip"
	}
	o.MQTT.TopicPrefix = strings.TrimRight(o.MQTT.TopicPrefix, "/")
	if o.MQTT.Enable && o.MQTT.Broker == "" {
		return fmt.Errorf("output.mqtt.broker is required when output.mqtt.enable is true")
	}
	if o.MQTT.QoS < 0 || o.MQTT.QoS > 2 {
		return fmt.Errorf("output.mqtt.qos must be 0, 1 or 2")
	}

	if o.Web.Listen == "" {
		o.Web.Listen = ":8080"
	}
	return nil
}

// Warnings returns non-fatal problems with a validated config.
func (c Config) Warnings(now time.Time) []string {
	var out []string
	current := gpstime.CurrentWeek(now)
	if stale := current - c.Decode.ReferenceWeek; stale > StaleWeeks {
		out = append(out, fmt.Sprintf("decode.reference_week %d is %d weeks behind the current week %d; week numbers may resolve into the wrong epoch", c.Decode.ReferenceWeek, stale, current))
	}
	if c.Decode.ReferenceWeek > current+1 {
		out = append(out, fmt.Sprintf("decode.reference_week %d is ahead of the current week %d", c.Decode.ReferenceWeek, current))
	}
	return out
}
