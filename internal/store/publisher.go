package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	commonredis "wisefido-telemetry/internal/common/redis"
	"wisefido-telemetry/internal/models"
)

// ReadingMessage stream and latest-key payload
type ReadingMessage struct {
	DeviceID    string         `json:"device_id"`
	Reading     models.Reading `json:"reading"`
	PublishedAt int64          `json:"published_at"`
}

// ReadingPublisher copies accepted readings to a Redis stream and a per-device latest key.
// Nothing is read back into the registry.
type ReadingPublisher struct {
	client    *redis.Client
	kv        KV
	stream    string
	maxLen    int64
	latestTTL time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewReadingPublisher creates a publisher on stream
func NewReadingPublisher(client *redis.Client, stream string, maxLen int64, latestTTL time.Duration, logger *zap.Logger) *ReadingPublisher {
	return &ReadingPublisher{
		client:    client,
		kv:        NewRedisKV(client),
		stream:    stream,
		maxLen:    maxLen,
		latestTTL: latestTTL,
		now:       time.Now,
		logger:    logger,
	}
}

// OnReading publishes one reading
func (p *ReadingPublisher) OnReading(ctx context.Context, deviceID string, reading models.Reading) error {
	msg := ReadingMessage{
		DeviceID:    deviceID,
		Reading:     reading,
		PublishedAt: p.now().UnixMilli(),
	}

	id, err := commonredis.PublishJSONToStream(ctx, p.client, p.stream, p.maxLen, msg)
	if err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}
	if err := p.kv.Set(ctx, LatestKey(deviceID), string(data), p.latestTTL); err != nil {
		return fmt.Errorf("failed to set latest reading: %w", err)
	}

	p.logger.Debug("Reading published",
		zap.String("device_id", deviceID),
		zap.String("stream", p.stream),
		zap.String("message_id", id),
	)
	return nil
}
