package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"wisefido-telemetry/internal/models"
)

// MaxCachedAlarms per device
const MaxCachedAlarms = 20

// AlarmCache keeps each device's recent alarms as a JSON list under a TTL
type AlarmCache struct {
	kv     KV
	ttl    time.Duration
	logger *zap.Logger

	mu sync.Mutex // serializes read-modify-write per process
}

// NewAlarmCache creates the cache
func NewAlarmCache(kv KV, ttl time.Duration, logger *zap.Logger) *AlarmCache {
	return &AlarmCache{kv: kv, ttl: ttl, logger: logger}
}

// SaveAlarm appends event to the device list and refreshes the TTL
func (c *AlarmCache) SaveAlarm(ctx context.Context, event models.AlarmEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	alarms, err := c.get(ctx, event.DeviceID)
	if err != nil {
		return err
	}
	alarms = append(alarms, event)
	if len(alarms) > MaxCachedAlarms {
		alarms = alarms[len(alarms)-MaxCachedAlarms:]
	}

	jsonData, err := json.Marshal(alarms)
	if err != nil {
		return fmt.Errorf("failed to marshal alarm data: %w", err)
	}
	key := AlarmsKey(event.DeviceID)
	if err := c.kv.Set(ctx, key, string(jsonData), c.ttl); err != nil {
		return fmt.Errorf("failed to set alarm cache: %w", err)
	}

	c.logger.Debug("Updated alarm cache",
		zap.String("device_id", event.DeviceID),
		zap.String("key", key),
		zap.Int("alarm_count", len(alarms)),
	)
	return nil
}

// Alarms returns the cached alarms for deviceID, oldest first
func (c *AlarmCache) Alarms(ctx context.Context, deviceID string) ([]models.AlarmEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.get(ctx, deviceID)
}

// ListAlarmEvents returns up to limit cached alarms for deviceID, newest first
func (c *AlarmCache) ListAlarmEvents(ctx context.Context, deviceID string, limit int) ([]models.AlarmEvent, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device_id is required")
	}
	alarms, err := c.Alarms(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	out := make([]models.AlarmEvent, 0, len(alarms))
	for i := len(alarms) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, alarms[i])
	}
	return out, nil
}

func (c *AlarmCache) get(ctx context.Context, deviceID string) ([]models.AlarmEvent, error) {
	val, err := c.kv.Get(ctx, AlarmsKey(deviceID))
	if err != nil {
		if errors.Is(err, ErrMiss) {
			return []models.AlarmEvent{}, nil
		}
		return nil, fmt.Errorf("failed to get alarm cache: %w", err)
	}
	var alarms []models.AlarmEvent
	if err := json.Unmarshal([]byte(val), &alarms); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alarm data: %w", err)
	}
	return alarms, nil
}
