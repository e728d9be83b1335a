package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "simulated", cfg.Telemetry.Mode)
	assert.Equal(t, 3*time.Second, cfg.Telemetry.TickInterval)
	assert.Equal(t, 5*time.Second, cfg.Telemetry.RecheckInterval)
	assert.Equal(t, "telemetry:vitals:stream", cfg.Telemetry.StreamName)

	assert.False(t, cfg.RedisEnabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.False(t, cfg.DBEnabled)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "owlrd", cfg.Database.Database)

	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "telemetry/+/vitals", cfg.MQTT.VitalsTopic)
	assert.False(t, cfg.MQTT.AutoReconnect)

	assert.True(t, cfg.Alerting.Enabled)
	assert.Equal(t, 120, cfg.Alerting.HeartRateHigh)
	assert.Equal(t, 38.0, cfg.Alerting.TempHigh)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Clearenv()
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("TELEMETRY_MODE", "live")
	t.Setenv("TELEMETRY_TARGET", "ws://gateway:9000/ws")
	t.Setenv("TELEMETRY_TICK_INTERVAL", "1s")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("DB_ENABLED", "true")
	t.Setenv("DB_HOST", "pg")
	t.Setenv("MQTT_AUTO_RECONNECT", "true")
	t.Setenv("PROVISIONING_URL", "http://provision.local")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "live", cfg.Telemetry.Mode)
	assert.Equal(t, "ws://gateway:9000/ws", cfg.Telemetry.Target)
	assert.Equal(t, time.Second, cfg.Telemetry.TickInterval)
	assert.True(t, cfg.RedisEnabled)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.True(t, cfg.DBEnabled)
	assert.Equal(t, "pg", cfg.Database.Host)
	assert.True(t, cfg.MQTT.AutoReconnect)
	assert.Equal(t, "http://provision.local", cfg.Provisioning.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	os.Clearenv()
	path := filepath.Join(t.TempDir(), "telemetry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":7070"
telemetry:
  mode: live
  transport: mqtt
  recheck_interval: 2s
mqtt:
  enabled: true
  broker: tcp://broker:1883
  vitals_topic: fleet/+/vitals
alerting:
  heart_rate_high: 130
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HTTP_ADDR", ":7171")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7171", cfg.HTTP.Addr)
	assert.Equal(t, "mqtt", cfg.Telemetry.Transport)
	assert.Equal(t, 2*time.Second, cfg.Telemetry.RecheckInterval)
	assert.Equal(t, 3*time.Second, cfg.Telemetry.TickInterval)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, "fleet/+/vitals", cfg.MQTT.VitalsTopic)
	assert.Equal(t, 130, cfg.Alerting.HeartRateHigh)
	assert.Equal(t, 50, cfg.Alerting.HeartRateLow)
}

func TestLoad_Invalid(t *testing.T) {
	os.Clearenv()
	t.Setenv("TELEMETRY_MODE", "live")
	_, err := Load()
	assert.Error(t, err, "websocket live mode without target")

	os.Clearenv()
	t.Setenv("TELEMETRY_MODE", "replay")
	_, err = Load()
	assert.Error(t, err)

	os.Clearenv()
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = Load()
	assert.Error(t, err)
}

func TestGetEnv(t *testing.T) {
	os.Clearenv()
	assert.Equal(t, "default-value", getEnv("TEST_KEY", "default-value"))

	t.Setenv("TEST_KEY", "env-value")
	assert.Equal(t, "env-value", getEnv("TEST_KEY", "default-value"))

	t.Setenv("TEST_BOOL", "nope")
	assert.True(t, getBool("TEST_BOOL", true))
	t.Setenv("TEST_DUR", "soon")
	assert.Equal(t, time.Minute, getDuration("TEST_DUR", time.Minute))
}
