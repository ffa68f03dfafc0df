package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/chainwatch/rollup-sentinel/internal/hub"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The sentinel serves its own dashboard UI and is not meant to be
	// embedded cross-origin; accept any origin the same way a purely
	// internal push feed would.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Subscriber is the subset of Hub the WebSocket surface needs.
type Subscriber interface {
	Subscribe() (hub.Snapshot, hub.Subscription)
}

// WSHandler upgrades connections on /rollups/stream and streams the
// initial snapshot followed by every subsequent event frame.
type WSHandler struct {
	hub    Subscriber
	logger zerolog.Logger
}

// NewWSHandler builds the WebSocket surface.
func NewWSHandler(h Subscriber, logger zerolog.Logger) *WSHandler {
	return &WSHandler{hub: h, logger: logger.With().Str("component", "ws_api").Logger()}
}

type initialFrame struct {
	Type       string                             `json:"type"`
	Sequencer  map[string]any                      `json:"sequencer"`
	Status     map[string]any                      `json:"status"`
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	snapshot, sub := h.hub.Subscribe()
	defer sub.Unsubscribe()

	status := make(map[string]any, len(snapshot.Status))
	for id, s := range snapshot.Status {
		status[string(id)] = s
	}
	sequencer := make(map[string]any, len(snapshot.Sequencers))
	for id, m := range snapshot.Sequencers {
		sequencer[string(id)] = m
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(initialFrame{Type: "initial", Sequencer: sequencer, Status: status}); err != nil {
		h.logger.Warn().Err(err).Msg("failed to write initial snapshot frame")
		return
	}

	// Drain and discard any messages the client sends; only pongs are
	// interpreted, handled by gorilla's built-in pong handler below.
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	go h.drainReads(conn)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-sub.C:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			var payload any
			if frame.Lagged {
				payload = map[string]string{"type": "lagged"}
			} else {
				payload = frame.Event
			}
			if err := conn.WriteJSON(payload); err != nil {
				h.logger.Debug().Err(err).Msg("websocket write failed, closing")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drainReads discards inbound client messages so gorilla's read loop keeps
// processing control frames (pongs, close) without blocking the writer.
func (h *WSHandler) drainReads(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
