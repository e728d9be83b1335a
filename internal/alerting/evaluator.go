package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wisefido-telemetry/internal/models"
)

// DefaultCooldown between repeated alarms of one type for one device
const DefaultCooldown = 60 * time.Second

// DeviceLookup resolves name and mute flag
type DeviceLookup interface {
	Device(deviceID string) (models.Device, error)
}

// AlarmSink receives raised alarms
type AlarmSink interface {
	SaveAlarm(ctx context.Context, event models.AlarmEvent) error
}

// Evaluator checks each accepted reading against the thresholds. Muted devices never alarm.
type Evaluator struct {
	thresholds Thresholds
	devices    DeviceLookup
	sinks      []AlarmSink
	cooldown   time.Duration
	now        func() time.Time
	logger     *zap.Logger

	mu        sync.Mutex
	lastFired map[string]time.Time // device_id + "/" + event_type
}

// NewEvaluator creates an evaluator; a non-positive cooldown uses DefaultCooldown
func NewEvaluator(thresholds Thresholds, devices DeviceLookup, cooldown time.Duration, logger *zap.Logger, sinks ...AlarmSink) *Evaluator {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Evaluator{
		thresholds: thresholds,
		devices:    devices,
		sinks:      sinks,
		cooldown:   cooldown,
		now:        time.Now,
		logger:     logger,
		lastFired:  make(map[string]time.Time),
	}
}

// OnReading evaluates one reading and hands any alarms to the sinks. Sink failures are
// logged; the alarms are still returned.
func (e *Evaluator) OnReading(ctx context.Context, deviceID string, reading models.Reading) error {
	_, err := e.Evaluate(ctx, deviceID, reading)
	return err
}

// Evaluate returns the alarms raised by reading
func (e *Evaluator) Evaluate(ctx context.Context, deviceID string, reading models.Reading) ([]models.AlarmEvent, error) {
	device, err := e.devices.Device(deviceID)
	if err != nil {
		return nil, fmt.Errorf("alarm lookup %s: %w", deviceID, err)
	}
	if device.Muted {
		return nil, nil
	}

	violations := e.thresholds.check(reading)
	if len(violations) == 0 {
		return nil, nil
	}

	now := e.now()
	var events []models.AlarmEvent
	for _, v := range violations {
		if !e.admit(deviceID, v.eventType, now) {
			continue
		}
		events = append(events, models.AlarmEvent{
			EventID:     uuid.New().String(),
			DeviceID:    deviceID,
			DeviceName:  device.Name,
			EventType:   v.eventType,
			AlarmLevel:  v.level,
			AlarmStatus: "active",
			Value:       v.value,
			Threshold:   v.threshold,
			TriggeredAt: time.UnixMilli(reading.Timestamp).UTC(),
		})
	}

	for _, ev := range events {
		e.logger.Info("Alarm raised",
			zap.String("device_id", ev.DeviceID),
			zap.String("event_type", ev.EventType),
			zap.String("alarm_level", ev.AlarmLevel),
			zap.Float64("value", ev.Value),
			zap.Float64("threshold", ev.Threshold),
		)
		for _, sink := range e.sinks {
			if err := sink.SaveAlarm(ctx, ev); err != nil {
				e.logger.Error("Failed to save alarm",
					zap.String("event_id", ev.EventID),
					zap.Error(err),
				)
			}
		}
	}
	return events, nil
}

func (e *Evaluator) admit(deviceID, eventType string, now time.Time) bool {
	key := deviceID + "/" + eventType

	e.mu.Lock()
	defer e.mu.Unlock()
	if last, ok := e.lastFired[key]; ok && now.Sub(last) < e.cooldown {
		return false
	}
	e.lastFired[key] = now
	return true
}
