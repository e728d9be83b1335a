package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisefido-telemetry/internal/models"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisKV_GetMiss(t *testing.T) {
	_, client := setupRedis(t)
	kv := NewRedisKV(client)

	_, err := kv.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Set(context.Background(), "k", "v", 0))
	v, err := kv.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestReadingPublisher_StreamAndLatest(t *testing.T) {
	mr, client := setupRedis(t)
	p := NewReadingPublisher(client, "telemetry:vitals:stream", 100, time.Minute, zap.NewNop())
	p.now = func() time.Time { return time.UnixMilli(5000) }

	ctx := context.Background()
	reading := models.Reading{Timestamp: 4000, HeartRate: models.IntPtr(72), Temperature: models.FloatPtr(36.6)}
	require.NoError(t, p.OnReading(ctx, "dev-001", reading))

	entries, err := client.XRange(ctx, "telemetry:vitals:stream", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var msg ReadingMessage
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["data"].(string)), &msg))
	assert.Equal(t, "dev-001", msg.DeviceID)
	assert.Equal(t, int64(4000), msg.Reading.Timestamp)
	assert.Equal(t, 72, *msg.Reading.HeartRate)
	assert.Equal(t, int64(5000), msg.PublishedAt)

	raw, err := mr.Get(LatestKey("dev-001"))
	require.NoError(t, err)
	var latest ReadingMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &latest))
	assert.Equal(t, 36.6, *latest.Reading.Temperature)
	assert.Equal(t, time.Minute, mr.TTL(LatestKey("dev-001")))

	mr.FastForward(61 * time.Second)
	assert.False(t, mr.Exists(LatestKey("dev-001")))
}

func TestReadingPublisher_RedisDown(t *testing.T) {
	mr, client := setupRedis(t)
	p := NewReadingPublisher(client, "s", 0, time.Minute, zap.NewNop())
	mr.Close()

	err := p.OnReading(context.Background(), "dev-001", models.Reading{Timestamp: 1})
	assert.Error(t, err)
}

func TestAlarmCache_AppendsAndCaps(t *testing.T) {
	mr, client := setupRedis(t)
	cache := NewAlarmCache(NewRedisKV(client), 30*time.Second, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < MaxCachedAlarms+5; i++ {
		require.NoError(t, cache.SaveAlarm(ctx, models.AlarmEvent{
			EventID:  fmt.Sprintf("e%d", i),
			DeviceID: "dev-001",
		}))
	}

	alarms, err := cache.Alarms(ctx, "dev-001")
	require.NoError(t, err)
	require.Len(t, alarms, MaxCachedAlarms)
	assert.Equal(t, "e5", alarms[0].EventID)
	assert.Equal(t, fmt.Sprintf("e%d", MaxCachedAlarms+4), alarms[len(alarms)-1].EventID)
	assert.Equal(t, 30*time.Second, mr.TTL(AlarmsKey("dev-001")))

	recent, err := cache.ListAlarmEvents(ctx, "dev-001", 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, fmt.Sprintf("e%d", MaxCachedAlarms+4), recent[0].EventID)

	_, err = cache.ListAlarmEvents(ctx, "", 3)
	assert.Error(t, err)

	empty, err := cache.Alarms(ctx, "dev-002")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
