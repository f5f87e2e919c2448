package web

import (
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	"tsipmon/internal/monitor"
)

// SessionSource reports the decode session's state.
type SessionSource interface {
	Snapshot() monitor.Snapshot
}

type Status struct {
	startUnixNano int64
	session       SessionSource
	feed          *EventFeed
	build         BuildInfo
}

func NewStatus(session SessionSource, feed *EventFeed) *Status {
	s := &Status{session: session, feed: feed, build: readBuildInfo()}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	return s
}

type BuildInfo struct {
	GoVersion  string `json:"go_version"`
	ModulePath string `json:"module_path,omitempty"`
	Version    string `json:"version,omitempty"`
	Commit     string `json:"commit,omitempty"`
	Dirty      bool   `json:"dirty,omitempty"`
}

type StatusSnapshot struct {
	Service     string           `json:"service"`
	NowUTC      string           `json:"now_utc"`
	UptimeSec   int64            `json:"uptime_sec"`
	Build       BuildInfo        `json:"build"`
	FeedClients int              `json:"feed_clients"`
	FeedDropped uint64           `json:"feed_dropped"`
	Session     monitor.Snapshot `json:"session"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()

	snap := StatusSnapshot{
		Service:   "tsipmon",
		NowUTC:    nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec: int64(nowUTC.Sub(start).Seconds()),
		Build:     s.build,
	}
	if s.session != nil {
		snap.Session = s.session.Snapshot()
	}
	if s.feed != nil {
		snap.FeedClients = s.feed.Clients()
		snap.FeedDropped = s.feed.Dropped()
	}
	return snap
}

func readBuildInfo() BuildInfo {
	info := BuildInfo{GoVersion: runtime.Version()}
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi == nil {
		return info
	}
	info.ModulePath = bi.Main.Path
	info.Version = bi.Main.Version
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = s.Value
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	return info
}
