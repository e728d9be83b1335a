package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"wisefido-telemetry/internal/models"
	"wisefido-telemetry/internal/registry"
)

const (
	streamSendBuffer = 64
	streamWriteWait  = 5 * time.Second
	streamReadLimit  = 4 << 10
)

// StreamEvent message pushed to display clients
type StreamEvent struct {
	Type     string          `json:"type"` // reading / status
	DeviceID string          `json:"device_id"`
	Reading  *models.Reading `json:"reading,omitempty"`
	From     models.Status   `json:"from,omitempty"`
	Status   models.Status   `json:"status,omitempty"`
	SentAt   int64           `json:"sent_at"`
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// StreamHub fans readings and liveness transitions out to WebSocket display clients.
// A slow client misses messages instead of stalling the broadcaster.
type StreamHub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*streamClient]struct{}
}

func NewStreamHub(logger *zap.Logger) *StreamHub {
	return &StreamHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*streamClient]struct{}),
	}
}

// ServeWS upgrades the request and streams events until the client goes away
func (h *StreamHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Stream upgrade failed", zap.Error(err))
		return
	}

	conn.SetReadLimit(streamReadLimit)
	c := &streamClient{conn: conn, send: make(chan []byte, streamSendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("Stream client connected", zap.String("remote", r.RemoteAddr))

	go h.writePump(c)

	// inbound frames are ignored; the read loop only detects close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}

func (h *StreamHub) writePump(c *streamClient) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.remove(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

func (h *StreamHub) remove(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Clients number of connected display clients
func (h *StreamHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *StreamHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// OnReading broadcasts a reading event
func (h *StreamHub) OnReading(_ context.Context, deviceID string, reading models.Reading) error {
	r := reading
	return h.broadcast(StreamEvent{
		Type:     "reading",
		DeviceID: deviceID,
		Reading:  &r,
		Status:   models.StatusOnline,
		SentAt:   time.Now().UnixMilli(),
	})
}

// OnStatusChange broadcasts one status event per transition
func (h *StreamHub) OnStatusChange(_ context.Context, changes []registry.StatusChange) {
	for _, c := range changes {
		if err := h.broadcast(StreamEvent{
			Type:     "status",
			DeviceID: c.DeviceID,
			From:     c.From,
			Status:   c.To,
			SentAt:   time.Now().UnixMilli(),
		}); err != nil {
			h.logger.Warn("Failed to broadcast status", zap.Error(err))
		}
	}
}

func (h *StreamHub) broadcast(ev StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("Stream client too slow, dropping event", zap.String("device_id", ev.DeviceID))
		}
	}
	return nil
}
