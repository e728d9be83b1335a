package live

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"wisefido-telemetry/internal/models"
	"wisefido-telemetry/internal/registry"
)

// Sink accepts decoded readings
type Sink interface {
	PushReading(deviceID string, reading models.Reading) error
}

// status connection indicator shared by live transports
type status struct {
	mu        sync.Mutex
	connected bool
	lastErr   string
}

func (s *status) set(connected bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
	if err != nil {
		s.lastErr = err.Error()
	} else if connected {
		s.lastErr = ""
	}
}

func (s *status) snapshot(transport, target string) models.SourceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.SourceStatus{
		Mode:      models.SourceLive,
		Transport: transport,
		Target:    target,
		Connected: s.connected,
		LastError: s.lastErr,
	}
}

// handler decodes and applies one message. Malformed frames and unknown devices are
// logged and dropped.
type handler struct {
	sink   Sink
	now    func() time.Time
	logger *zap.Logger
}

func (h *handler) apply(payload []byte, fallbackID string) {
	deviceID, reading, err := Decode(payload, fallbackID, h.now())
	if err != nil {
		h.logger.Warn("Dropping live telemetry message",
			zap.Int("payload_size", len(payload)),
			zap.Error(err),
		)
		return
	}

	if err := h.sink.PushReading(deviceID, reading); err != nil {
		if errors.Is(err, registry.ErrDeviceNotFound) {
			h.logger.Warn("Live reading for unknown device", zap.String("device_id", deviceID))
			return
		}
		h.logger.Error("Failed to apply live reading", zap.String("device_id", deviceID), zap.Error(err))
	}
}
