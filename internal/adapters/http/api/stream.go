// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/precinct/pkg/logger"
	"github.com/okian/precinct/pkg/metrics"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamPingInterval = 30 * time.Second
)

// StreamDependencies defines the interface for live update subscriptions.
type StreamDependencies interface {
	Subscribe(ctx context.Context) (<-chan StreamUpdate, func())
}

// StreamHandler upgrades /stream requests to WebSocket sessions and pushes
// every derived update to the client until it disconnects.
type StreamHandler struct {
	deps     StreamDependencies
	upgrader websocket.Upgrader
	clients  atomic.Int64
	logger   logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(deps StreamDependencies) *StreamHandler {
	return &StreamHandler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The dashboard is served from the same origin; other
			// consumers are newsroom tools on the local network.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.Get().Named("stream"),
	}
}

// HandleStream handles GET /stream requests.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	metrics.UpdateStreamClients(int(h.clients.Add(1)))
	defer metrics.UpdateStreamClients(int(h.clients.Add(-1)))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, unsubscribe := h.deps.Subscribe(ctx)
	defer unsubscribe()

	// Reader goroutine: the client never sends data, but reading is what
	// surfaces close frames and connection loss.
	go func() {
		defer cancel()
		for {
			if _, _, rerr := conn.ReadMessage(); rerr != nil {
				return
			}
		}
	}()

	h.writePump(ctx, conn, updates)
	_ = conn.Close()
}

func (h *StreamHandler) writePump(ctx context.Context, conn *websocket.Conn, updates <-chan StreamUpdate) {
	pings := time.NewTicker(streamPingInterval)
	defer pings.Stop()

	for {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(streamWriteTimeout)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(u); err != nil {
				h.logger.Debug(ctx, "stream write failed", logger.Error(err))
				return
			}
		case <-pings.C:
			deadline := time.Now().Add(streamWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
