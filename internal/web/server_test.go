package web

import (
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"tsipmon/internal/monitor"
	"tsipmon/internal/packet"
)

type fakeSession struct {
	snap monitor.Snapshot
}

func (f fakeSession) Snapshot() monitor.Snapshot { return f.snap }

func newTestServer(t *testing.T, feed *EventFeed, logs *LogBuffer) *httptest.Server {
	t.Helper()
	sess := fakeSession{snap: monitor.Snapshot{Source: "/dev/ttyUSB0", Live: true, Running: true, Frames: 42, ReferenceWeek: 2357}}
	ts := httptest.NewServer(Handler(NewStatus(sess, feed), feed, logs, zerolog.Nop()))
	t.Cleanup(ts.Close)
	return ts
}

func TestAPIStatus(t *testing.T) {
	ts := newTestServer(t, NewEventFeed(), nil)

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type=%q", ct)
	}

	var snap StatusSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if snap.Service != "tsipmon" || snap.Build.GoVersion == "" {
		t.Fatalf("unexpected status %+v", snap)
	}
	if snap.Session.Source != "/dev/ttyUSB0" || snap.Session.Frames != 42 || snap.Session.ReferenceWeek != 2357 {
		t.Fatalf("unexpected session %+v", snap.Session)
	}
}

func TestAPIStatus_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	resp, err := http.Post(ts.URL+"/api/status", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("post status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
}

func TestRootPage(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "frames=42") {
		t.Fatalf("status code=%d body=%q", resp.StatusCode, body)
	}

	resp2, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatalf("get unknown path: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Fatalf("status code=%d want 404", resp2.StatusCode)
	}
}

func TestAPILogs(t *testing.T) {
	logs := NewLogBuffer(3)
	for _, l := range []string{"one\n", "two\n", "three\nfour\n"} {
		_, _ = logs.Write([]byte(l))
	}
	ts := newTestServer(t, nil, logs)

	resp, err := http.Get(ts.URL + "/api/logs?tail=2")
	if err != nil {
		t.Fatalf("get logs: %v", err)
	}
	defer resp.Body.Close()
	var out LogsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if out.Dropped != 1 || len(out.Lines) != 2 || out.Lines[0] != "three" || out.Lines[1] != "four" {
		t.Fatalf("unexpected logs %+v", out)
	}

	bad, err := http.Get(ts.URL + "/api/logs?tail=0")
	if err != nil {
		t.Fatalf("get logs: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("status code=%d want 400", bad.StatusCode)
	}
}

func TestWebsocketFeed(t *testing.T) {
	feed := NewEventFeed()
	ts := newTestServer(t, feed, nil)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := feed.Publish(monitor.Event{
		Kind:   monitor.KindReport,
		Index:  9,
		ID:     0x46,
		Name:   "health",
		Report: packet.Health{Status: 0x00, StatusText: "doing position fixes"},
	}); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got struct {
		Kind   string `json:"kind"`
		Index  uint64 `json:"index"`
		Name   string `json:"name"`
		Report struct {
			StatusText string `json:"status_text"`
		} `json:"report"`
	}
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.Kind != "report" || got.Index != 9 || got.Name != "health" || got.Report.StatusText != "doing position fixes" {
		t.Fatalf("unexpected message %+v", got)
	}

	feed.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("err=%v want going-away close", err)
	}
}

func TestNonFiniteReportStillServed(t *testing.T) {
	nan := packet.Float32(math.NaN())
	feed := NewEventFeed()
	sess := fakeSession{snap: monitor.Snapshot{
		Source:   "/dev/ttyUSB0",
		Position: &packet.PositionLLA{Latitude: nan, Longitude: 0.5, Altitude: packet.Float32(math.Inf(1))},
	}}
	ts := httptest.NewServer(Handler(NewStatus(sess, feed), feed, nil, zerolog.Nop()))
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	var snap struct {
		Session struct {
			Position map[string]any `json:"position"`
		} `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	pos := snap.Session.Position
	if v, ok := pos["lat_rad"]; !ok || v != nil {
		t.Fatalf("lat_rad=%v present=%v want null", v, ok)
	}
	if pos["alt_m"] != nil || pos["lon_rad"] != 0.5 {
		t.Fatalf("unexpected position %v", pos)
	}

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = feed.Publish(monitor.Event{Kind: monitor.KindReport, Index: 1, ID: 0x4A, Name: "position lla", Report: packet.PositionLLA{Latitude: nan}})
	_ = feed.Publish(monitor.Event{Kind: monitor.KindReport, Index: 2, ID: 0x46, Name: "health", Report: packet.Health{}})

	for _, want := range []uint64{1, 2} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got struct {
			Index uint64 `json:"index"`
		}
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		if got.Index != want {
			t.Fatalf("index=%d want %d", got.Index, want)
		}
	}
}
