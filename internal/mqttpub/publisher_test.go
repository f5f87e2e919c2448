package mqttpub

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"tsipmon/internal/monitor"
	"tsipmon/internal/packet"
)

type fakeToken struct {
	err     error
	pending bool
}

func (t *fakeToken) Wait() bool                     { return !t.pending }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.pending }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !t.pending {
		close(ch)
	}
	return ch
}

type message struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	msgs         []message
	token        *fakeToken
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.msgs = append(c.msgs, message{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	if c.token != nil {
		return c.token
	}
	return &fakeToken{}
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func TestPublisher_TopicPerPacket(t *testing.T) {
	fc := &fakeClient{}
	p := newPublisher(fc, Options{TopicPrefix: "tsip", QoS: 1, Retain: true})

	events := []monitor.Event{
		{Kind: monitor.KindReport, ID: 0x41, Name: "gps time"},
		{Kind: monitor.KindReport, ID: 0x4A, Name: "position lla", Report: packet.PositionLLA{Altitude: 120}},
		{Kind: monitor.KindUnknown, ID: 0x99, Name: "unknown", Report: packet.Unknown{ID: 0x99, Payload: []byte{1}}},
		{Kind: monitor.KindDecodeError, ID: 0x46, Name: "health", Error: "short"},
	}
	for _, ev := range events {
		if err := p.Publish(ev); err != nil {
			t.Fatalf("Publish() error: %v", err)
		}
	}

	wantTopics := []string{"tsip/gps-time", "tsip/position-lla", "tsip/unknown-0x99", "tsip/errors"}
	if len(fc.msgs) != len(wantTopics) {
		t.Fatalf("messages=%d want %d", len(fc.msgs), len(wantTopics))
	}
	for i, want := range wantTopics {
		m := fc.msgs[i]
		if m.topic != want || m.qos != 1 || !m.retained {
			t.Fatalf("message %d: topic=%q qos=%d retained=%v", i, m.topic, m.qos, m.retained)
		}
	}

	var got struct {
		Kind   string `json:"kind"`
		Report struct {
			Altitude float64 `json:"alt_m"`
		} `json:"report"`
	}
	if err := json.Unmarshal(fc.msgs[1].payload, &got); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if got.Kind != "report" || got.Report.Altitude != 120 {
		t.Fatalf("unexpected payload %s", fc.msgs[1].payload)
	}
}

func TestPublisher_NoPrefix(t *testing.T) {
	p := newPublisher(&fakeClient{}, Options{})
	if got := p.Topic(monitor.Event{Kind: monitor.KindReport, Name: "health"}); got != "health" {
		t.Fatalf("topic=%q want health", got)
	}
}

func TestPublisher_NonFiniteReport(t *testing.T) {
	fc := &fakeClient{}
	p := newPublisher(fc, Options{TopicPrefix: "tsip"})
	ev := monitor.Event{
		Kind:   monitor.KindReport,
		ID:     0x44,
		Name:   "satellite selection",
		Report: packet.SatelliteSelection{PDOP: packet.Float32(math.NaN()), HDOP: packet.Float32(math.Inf(-1))},
	}
	if err := p.Publish(ev); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	if len(fc.msgs) != 1 || !strings.Contains(string(fc.msgs[0].payload), `"pdop":null`) || !strings.Contains(string(fc.msgs[0].payload), `"hdop":null`) {
		t.Fatalf("unexpected messages %+v", fc.msgs)
	}
}

func TestPublisher_Errors(t *testing.T) {
	brokerErr := errors.New("not connected")
	p := newPublisher(&fakeClient{token: &fakeToken{err: brokerErr}}, Options{TopicPrefix: "tsip"})
	if err := p.Publish(monitor.Event{Kind: monitor.KindReport, Name: "health"}); !errors.Is(err, brokerErr) {
		t.Fatalf("err=%v want %v", err, brokerErr)
	}

	p = newPublisher(&fakeClient{token: &fakeToken{pending: true}}, Options{TopicPrefix: "tsip", Timeout: time.Millisecond})
	if err := p.Publish(monitor.Event{Kind: monitor.KindReport, Name: "health"}); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestPublisher_CloseDisconnects(t *testing.T) {
	fc := &fakeClient{}
	p := newPublisher(fc, Options{})
	_ = p.Close()
	if !fc.disconnected {
		t.Fatalf("expected Disconnect")
	}
}
