package alerting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisefido-telemetry/internal/config"
	"wisefido-telemetry/internal/models"
	"wisefido-telemetry/internal/registry"
)

type recordingSink struct {
	mu     sync.Mutex
	events []models.AlarmEvent
	err    error
}

func (s *recordingSink) SaveAlarm(_ context.Context, ev models.AlarmEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func newTestEvaluator(t *testing.T, sinks ...AlarmSink) (*Evaluator, *registry.Registry, *time.Time) {
	reg := registry.New(zap.NewNop())
	require.True(t, reg.Seed())

	ev := NewEvaluator(ThresholdsFromConfig(config.Default().Alerting), reg, time.Minute, zap.NewNop(), sinks...)
	clock := time.Unix(1_700_000_000, 0)
	ev.now = func() time.Time { return clock }
	return ev, reg, &clock
}

func normalReading() models.Reading {
	return models.Reading{
		Timestamp:   1_700_000_000_000,
		HeartRate:   models.IntPtr(75),
		SpO2:        models.IntPtr(97),
		Systolic:    models.IntPtr(120),
		Diastolic:   models.IntPtr(80),
		Temperature: models.FloatPtr(36.8),
	}
}

func TestEvaluate_NormalReadingRaisesNothing(t *testing.T) {
	sink := &recordingSink{}
	ev, _, _ := newTestEvaluator(t, sink)

	events, err := ev.Evaluate(context.Background(), "dev-001", normalReading())
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Empty(t, sink.events)
}

func TestEvaluate_Thresholds(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(r *models.Reading)
		eventType string
		level     string
		threshold float64
	}{
		{"tachycardia", func(r *models.Reading) { r.HeartRate = models.IntPtr(121) }, EventAbnormalHeartRate, LevelWarning, 120},
		{"bradycardia", func(r *models.Reading) { r.HeartRate = models.IntPtr(49) }, EventAbnormalHeartRate, LevelWarning, 50},
		{"hypoxia", func(r *models.Reading) { r.SpO2 = models.IntPtr(89) }, EventLowSpO2, LevelAlert, 90},
		{"hypertension", func(r *models.Reading) { r.Systolic = models.IntPtr(161) }, EventAbnormalBloodPressure, LevelAlert, 160},
		{"hypotension", func(r *models.Reading) { r.Systolic = models.IntPtr(89) }, EventAbnormalBloodPressure, LevelWarning, 90},
		{"high diastolic", func(r *models.Reading) { r.Diastolic = models.IntPtr(101) }, EventAbnormalBloodPressure, LevelAlert, 100},
		{"fever", func(r *models.Reading) { r.Temperature = models.FloatPtr(38.1) }, EventAbnormalTemperature, LevelWarning, 38.0},
		{"hypothermia", func(r *models.Reading) { r.Temperature = models.FloatPtr(34.9) }, EventAbnormalTemperature, LevelWarning, 35.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			ev, _, _ := newTestEvaluator(t, sink)

			r := normalReading()
			tt.mutate(&r)
			events, err := ev.Evaluate(context.Background(), "dev-001", r)
			require.NoError(t, err)
			require.Len(t, events, 1)
			assert.Equal(t, tt.eventType, events[0].EventType)
			assert.Equal(t, tt.level, events[0].AlarmLevel)
			assert.Equal(t, tt.threshold, events[0].Threshold)
			assert.Equal(t, "Wearable - John Doe", events[0].DeviceName)
			assert.NotEmpty(t, events[0].EventID)
			assert.Len(t, sink.events, 1)
		})
	}
}

func TestEvaluate_BoundariesAreNormal(t *testing.T) {
	ev, _, _ := newTestEvaluator(t)
	r := models.Reading{
		Timestamp:   1,
		HeartRate:   models.IntPtr(120),
		SpO2:        models.IntPtr(90),
		Systolic:    models.IntPtr(160),
		Diastolic:   models.IntPtr(60),
		Temperature: models.FloatPtr(38.0),
	}
	events, err := ev.Evaluate(context.Background(), "dev-001", r)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEvaluate_MutedDeviceSkipped(t *testing.T) {
	sink := &recordingSink{}
	ev, reg, _ := newTestEvaluator(t, sink)

	muted, err := reg.ToggleMute("dev-001")
	require.NoError(t, err)
	require.True(t, muted)

	r := normalReading()
	r.SpO2 = models.IntPtr(80)
	events, err := ev.Evaluate(context.Background(), "dev-001", r)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Empty(t, sink.events)
}

func TestEvaluate_Cooldown(t *testing.T) {
	sink := &recordingSink{}
	ev, _, clock := newTestEvaluator(t, sink)
	ctx := context.Background()

	r := normalReading()
	r.HeartRate = models.IntPtr(140)

	events, _ := ev.Evaluate(ctx, "dev-001", r)
	assert.Len(t, events, 1)

	*clock = clock.Add(30 * time.Second)
	events, _ = ev.Evaluate(ctx, "dev-001", r)
	assert.Empty(t, events, "suppressed within cooldown")

	events, _ = ev.Evaluate(ctx, "dev-ambulance-01", r)
	assert.Len(t, events, 1, "cooldown is per device")

	*clock = clock.Add(31 * time.Second)
	events, _ = ev.Evaluate(ctx, "dev-001", r)
	assert.Len(t, events, 1)
}

func TestEvaluate_UnknownDevice(t *testing.T) {
	ev, _, _ := newTestEvaluator(t)
	_, err := ev.Evaluate(context.Background(), "ghost", normalReading())
	assert.ErrorIs(t, err, registry.ErrDeviceNotFound)
}

func TestEvaluate_SinkFailureStillReturnsAlarm(t *testing.T) {
	failing := &recordingSink{err: errors.New("db down")}
	ok := &recordingSink{}
	ev, _, _ := newTestEvaluator(t, failing, ok)

	r := normalReading()
	r.Temperature = models.FloatPtr(39.5)
	require.NoError(t, ev.OnReading(context.Background(), "dev-001", r))
	assert.Len(t, failing.events, 1)
	assert.Len(t, ok.events, 1)
}
