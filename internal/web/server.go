package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Handler serves:
//
//	GET /api/status  session counters and latest fix/time/health as JSON
//	GET /api/logs    recent log lines (when logs is non-nil)
//	GET /ws          websocket stream of session events
//	GET /            a minimal page pointing at the above
func Handler(status *Status, feed *EventFeed, logs *LogBuffer, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		writeJSON(w, status.Snapshot(time.Now().UTC()))
	})

	if logs != nil {
		mux.Handle("/api/logs", logs.Handler())
	}
	if feed != nil {
		mux.Handle("/ws", feedHandler(feed, log))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		snap := status.Snapshot(time.Now().UTC())
		s := snap.Session
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>tsipmon</title></head><body>")
		_, _ = fmt.Fprintf(w, "<h1>tsipmon</h1>")
		_, _ = fmt.Fprintf(w, "<p>JSON status at <a href=\"/api/status\">/api/status</a>, live events on <code>/ws</code>.</p>")
		_, _ = fmt.Fprintf(w, "<pre>source=%s\nrunning=%v\nframes=%d\nreports=%d\ndecode_errors=%d\nlast_frame_utc=%s</pre>",
			s.Source, s.Running, s.Frames, s.Reports, s.DecodeErrors, s.LastFrameUTC,
		)
		_, _ = fmt.Fprintf(w, "</body></html>")
	})

	return mux
}

// Serve runs the HTTP server until ctx is done. Shutdown also closes the
// event feed, which ends open websocket streams.
func Serve(ctx context.Context, listenAddr string, status *Status, feed *EventFeed, logs *LogBuffer, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           Handler(status, feed, logs, log),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	if feed != nil {
		srv.RegisterOnShutdown(feed.Close)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info().Str("listen", listenAddr).Msg("web server started")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
