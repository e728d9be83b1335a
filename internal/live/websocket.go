package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"wisefido-telemetry/internal/models"
)

const TransportWebSocket = "websocket"

// MaxFrameBytes largest inbound frame; a bigger one closes the connection
const MaxFrameBytes = 64 << 10

var ErrAlreadyStarted = errors.New("live source already started")

// WebSocketSource reads telemetry frames from a WebSocket endpoint. A dial or read
// failure leaves the source disconnected; it does not reconnect.
type WebSocketSource struct {
	target string
	dialer *websocket.Dialer
	h      handler
	logger *zap.Logger
	status status

	mu     sync.Mutex
	cancel context.CancelFunc
	conn   *websocket.Conn
	done   chan struct{}
}

// NewWebSocketSource creates a stopped source for target (ws:// or wss://)
func NewWebSocketSource(target string, sink Sink, logger *zap.Logger) *WebSocketSource {
	return &WebSocketSource{
		target: target,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		h:      handler{sink: sink, now: time.Now, logger: logger},
		logger: logger,
	}
}

// Start dials in the background and returns immediately
func (s *WebSocketSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go s.run(ctx, done)
	return nil
}

func (s *WebSocketSource) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	conn, _, err := s.dialer.DialContext(ctx, s.target, nil)
	if err != nil {
		s.status.set(false, fmt.Errorf("dial %s: %w", s.target, err))
		s.logger.Warn("WebSocket connect failed", zap.String("target", s.target), zap.Error(err))
		return
	}

	conn.SetReadLimit(MaxFrameBytes)

	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.mu.Unlock()

	s.status.set(true, nil)
	s.logger.Info("WebSocket connected", zap.String("target", s.target))

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				s.status.set(false, nil)
			} else {
				s.status.set(false, err)
				s.logger.Warn("WebSocket closed", zap.String("target", s.target), zap.Error(err))
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		s.h.apply(payload, "")
	}
}

// Stop closes the connection and waits for the reader to exit
func (s *WebSocketSource) Stop() {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	// cancel under the lock so run either sees it or has already published conn
	s.cancel()
	conn, done := s.conn, s.done
	s.cancel, s.conn, s.done = nil, nil, nil
	s.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}
	<-done
	s.status.set(false, nil)
	s.logger.Info("WebSocket source stopped", zap.String("target", s.target))
}

// Status reports the connection indicator
func (s *WebSocketSource) Status() models.SourceStatus {
	return s.status.snapshot(TransportWebSocket, s.target)
}
