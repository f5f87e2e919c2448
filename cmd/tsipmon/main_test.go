package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tsipmon/internal/gpstime"
	"tsipmon/internal/monitor"
	"tsipmon/internal/packet"
	"tsipmon/internal/tsip"
)

func writeFile(t *testing.T, dir, name string, b []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, b, 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return p
}

func encode(t *testing.T, id byte, payload []byte) []byte {
	t.Helper()
	b, err := tsip.Encode(id, payload)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	return b
}

func captureBytes(t *testing.T) []byte {
	t.Helper()
	tp := make([]byte, 10)
	binary.BigEndian.PutUint32(tp[0:], math.Float32bits(123.456))
	binary.BigEndian.PutUint16(tp[4:], 50)
	binary.BigEndian.PutUint32(tp[6:], math.Float32bits(18))

	var b bytes.Buffer
	b.Write(encode(t, 0x41, tp))
	b.Write(encode(t, 0x46, []byte{0x00, 0x00}))
	b.Write(encode(t, 0x46, []byte{0x08, 0x00}))
	b.Write(encode(t, 0x99, []byte{tsip.DLE}))
	return b.Bytes()
}

func TestRun_CaptureWithSummary(t *testing.T) {
	dir := t.TempDir()
	capture := writeFile(t, dir, "capture.bin", captureBytes(t))
	cfgPath := writeFile(t, dir, "tsipmon.yaml", []byte("source:\n  device: /dev/ttyUSB0\ndecode:\n  reference_week: 2357\nlog:\n  format: json\ncommands:\n  - id: 0x21\n"))

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), options{configPath: cfgPath, input: capture, summary: true}, nil, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() error: %v\nlog:\n%s", err, stderr.String())
	}

	out := stdout.String()
	for _, want := range []string{
		"source=" + capture,
		"frames=4 reports=3 unknown=1",
		"0x41  gps time",
		"0x46  health",
		"0x99  unknown",
		"last time: week 2098",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(stderr.String(), "command dropped") {
		t.Fatalf("expected the startup command to be dropped on a capture:\n%s", stderr.String())
	}
}

func TestRun_StdinInput(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "tsipmon.toml", []byte("[decode]\nreference_week = 2357\n\n[log]\nlevel = \"error\"\n"))

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), options{configPath: cfgPath, input: "-", summary: true}, bytes.NewReader(captureBytes(t)), &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() error: %v", err)
	}
	if !strings.Contains(stdout.String(), "source=stdin") {
		t.Fatalf("unexpected summary:\n%s", stdout.String())
	}
}

func TestRun_ConfigErrors(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "bad.yaml", []byte("source:\n  kind: file\n  path: x.bin\n"))
	err := run(context.Background(), options{configPath: cfgPath}, nil, &bytes.Buffer{}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "decode.reference_week is required") {
		t.Fatalf("err=%v", err)
	}

	err = run(context.Background(), options{configPath: filepath.Join(dir, "missing.yaml")}, nil, &bytes.Buffer{}, &bytes.Buffer{})
	if err == nil || !strings.HasPrefix(err.Error(), "config load failed") {
		t.Fatalf("err=%v", err)
	}
}

func TestLoadConfig_DebugOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "tsipmon.yaml", []byte("source:\n  device: /dev/ttyUSB0\ndecode:\n  reference_week: 2357\n"))
	cfg, err := loadConfig(options{configPath: cfgPath, debug: true, input: "x.bin"})
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Log.Level != "debug" || !cfg.Log.DebugFrames {
		t.Fatalf("unexpected log config %+v", cfg.Log)
	}
	if cfg.Source.Kind != "file" || cfg.Source.Path != "x.bin" {
		t.Fatalf("unexpected source %+v", cfg.Source)
	}
}

func TestSummaryRows_SortedByID(t *testing.T) {
	n, _ := gpstime.NewNormalizer(2357)
	reg, err := packet.NewRegistry(packet.Options{Time: n})
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}
	rows := summaryRows(monitor.Snapshot{PerPacket: map[string]uint64{"0x82": 1, "0x41": 3, "bogus": 9}}, reg)
	if len(rows) != 2 || rows[0].ID != 0x41 || rows[0].Count != 3 || rows[1].Name != "sbas status" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}
