package live

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	mqttcommon "wisefido-telemetry/internal/common/mqtt"
	"wisefido-telemetry/internal/models"
)

const TransportMQTT = "mqtt"

// Subscriber the MQTT client surface the source needs
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
	IsConnected() bool
	OnConnectionLost(fn func(error))
}

// MQTTSource consumes telemetry published on a topic filter such as telemetry/+/vitals.
// The device id falls back to the second topic segment.
type MQTTSource struct {
	client Subscriber
	topic  string
	qos    byte
	h      handler
	logger *zap.Logger
	status status

	mu       sync.Mutex
	active   bool
	attached bool
}

// NewMQTTSource creates a stopped source
func NewMQTTSource(client Subscriber, topic string, qos byte, sink Sink, logger *zap.Logger) *MQTTSource {
	return &MQTTSource{
		client: client,
		topic:  topic,
		qos:    qos,
		h:      handler{sink: sink, now: time.Now, logger: logger},
		logger: logger,
	}
}

// Start subscribes to the topic
func (s *MQTTSource) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.active = true
	if !s.attached {
		s.attached = true
		s.client.OnConnectionLost(s.connectionLost)
	}
	s.mu.Unlock()

	if err := s.client.Subscribe(s.topic, s.qos, s.handleMessage); err != nil {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
		s.status.set(false, err)
		return fmt.Errorf("failed to start MQTT source: %w", err)
	}

	s.status.set(s.client.IsConnected(), nil)
	s.logger.Info("MQTT source started", zap.String("topic", s.topic))
	return nil
}

func (s *MQTTSource) connectionLost(err error) {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if active {
		s.status.set(false, err)
	}
}

func (s *MQTTSource) handleMessage(topic string, payload []byte) error {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if !active {
		return nil
	}

	s.h.apply(payload, deviceFromTopic(topic))
	return nil
}

// deviceFromTopic extracts <id> from telemetry/<id>/vitals
func deviceFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[1]
}

// Stop unsubscribes; messages still in flight are dropped
func (s *MQTTSource) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.mu.Unlock()

	if err := s.client.Unsubscribe(s.topic); err != nil {
		s.logger.Error("Failed to unsubscribe", zap.String("topic", s.topic), zap.Error(err))
	}
	s.status.set(false, nil)
	s.logger.Info("MQTT source stopped", zap.String("topic", s.topic))
}

// Status reports the connection indicator
func (s *MQTTSource) Status() models.SourceStatus {
	return s.status.snapshot(TransportMQTT, s.topic)
}
