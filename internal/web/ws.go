package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second
	wsClientBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Monitoring tool on a trusted network; any origin may watch the feed.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// feedHandler streams every event as one JSON text message.
func feedHandler(feed *EventFeed, log zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Subscribe before the handshake completes so a client that has
		// connected cannot miss the next event.
		id, events := feed.Subscribe(wsClientBuffer)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			feed.Unsubscribe(id)
			log.Debug().Err(err).Msg("websocket upgrade failed")
			return
		}
		defer conn.Close()
		defer feed.Unsubscribe(id)
		log.Debug().Str("remote", r.RemoteAddr).Msg("websocket client connected")

		// Incoming messages are ignored; reading notices the client leaving.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.NextReader(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(wsPingInterval)
		defer ping.Stop()
		for {
			select {
			case <-gone:
				return
			case ev, ok := <-events:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
						time.Now().Add(wsWriteTimeout))
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(ev); err != nil {
					log.Debug().Err(err).Msg("websocket write failed")
					return
				}
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			}
		}
	})
}
