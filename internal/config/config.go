package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	commoncfg "wisefido-telemetry/internal/common/config"
)

// Config wisefido-telemetry configuration
type Config struct {
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	Telemetry TelemetryConfig `yaml:"telemetry"`

	RedisEnabled bool                     `yaml:"redis_enabled"`
	Redis        commoncfg.RedisConfig    `yaml:"redis"`
	DBEnabled    bool                     `yaml:"db_enabled"`
	Database     commoncfg.DatabaseConfig `yaml:"database"`
	MQTT         MQTTConfig               `yaml:"mqtt"`

	Alerting     AlertingConfig     `yaml:"alerting"`
	Provisioning ProvisioningConfig `yaml:"provisioning"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// TelemetryConfig source selection and schedules
type TelemetryConfig struct {
	Mode            string        `yaml:"mode"`      // simulated / live
	Transport       string        `yaml:"transport"` // websocket / mqtt (live mode)
	Target          string        `yaml:"target"`    // ws url or mqtt topic filter
	TickInterval    time.Duration `yaml:"tick_interval"`
	RecheckInterval time.Duration `yaml:"recheck_interval"`
	StreamName      string        `yaml:"stream_name"`
	StreamMaxLen    int64         `yaml:"stream_max_len"`
	LatestTTL       time.Duration `yaml:"latest_ttl"`
	EventBuffer     int           `yaml:"event_buffer"`
}

// MQTTConfig broker plus telemetry topics
type MQTTConfig struct {
	Enabled              bool `yaml:"enabled"`
	commoncfg.MQTTConfig `yaml:",inline"`
	VitalsTopic          string `yaml:"vitals_topic"`
	CommandTopicPattern  string `yaml:"command_topic_pattern"` // %s is the device id
}

// AlertingConfig vital thresholds; a reading outside [Low, High] raises an alarm
type AlertingConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Cooldown      time.Duration `yaml:"cooldown"`
	AlarmTTL      time.Duration `yaml:"alarm_ttl"`
	HeartRateLow  int           `yaml:"heart_rate_low"`
	HeartRateHigh int           `yaml:"heart_rate_high"`
	SpO2Low       int           `yaml:"spo2_low"`
	SystolicLow   int           `yaml:"systolic_low"`
	SystolicHigh  int           `yaml:"systolic_high"`
	DiastolicLow  int           `yaml:"diastolic_low"`
	DiastolicHigh int           `yaml:"diastolic_high"`
	TempLow       float64       `yaml:"temp_low"`
	TempHigh      float64       `yaml:"temp_high"`
}

// ProvisioningConfig backend registration of paired devices; empty URL disables it
type ProvisioningConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the built-in configuration
func Default() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = ":8080"

	cfg.Telemetry.Mode = "simulated"
	cfg.Telemetry.Transport = "websocket"
	cfg.Telemetry.TickInterval = 3 * time.Second
	cfg.Telemetry.RecheckInterval = 5 * time.Second
	cfg.Telemetry.StreamName = "telemetry:vitals:stream"
	cfg.Telemetry.StreamMaxLen = 10000
	cfg.Telemetry.LatestTTL = 60 * time.Second
	cfg.Telemetry.EventBuffer = 256

	cfg.Redis.Addr = "localhost:6379"

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "owlrd"
	cfg.Database.SSLMode = "disable"

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "wisefido-telemetry"
	cfg.MQTT.QoS = 1
	cfg.MQTT.VitalsTopic = "telemetry/+/vitals"
	cfg.MQTT.CommandTopicPattern = "telemetry/%s/command"

	cfg.Alerting.Enabled = true
	cfg.Alerting.Cooldown = 60 * time.Second
	cfg.Alerting.AlarmTTL = 30 * time.Second
	cfg.Alerting.HeartRateLow = 50
	cfg.Alerting.HeartRateHigh = 120
	cfg.Alerting.SpO2Low = 90
	cfg.Alerting.SystolicLow = 90
	cfg.Alerting.SystolicHigh = 160
	cfg.Alerting.DiastolicLow = 60
	cfg.Alerting.DiastolicHigh = 100
	cfg.Alerting.TempLow = 35.0
	cfg.Alerting.TempHigh = 38.0

	cfg.Provisioning.Timeout = 5 * time.Second

	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

// Load builds the configuration: defaults, then the YAML file named by CONFIG_FILE
// (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", cfg.HTTP.Addr)

	cfg.Telemetry.Mode = getEnv("TELEMETRY_MODE", cfg.Telemetry.Mode)
	cfg.Telemetry.Transport = getEnv("TELEMETRY_TRANSPORT", cfg.Telemetry.Transport)
	cfg.Telemetry.Target = getEnv("TELEMETRY_TARGET", cfg.Telemetry.Target)
	cfg.Telemetry.TickInterval = getDuration("TELEMETRY_TICK_INTERVAL", cfg.Telemetry.TickInterval)
	cfg.Telemetry.RecheckInterval = getDuration("TELEMETRY_RECHECK_INTERVAL", cfg.Telemetry.RecheckInterval)
	cfg.Telemetry.StreamName = getEnv("TELEMETRY_STREAM", cfg.Telemetry.StreamName)

	cfg.RedisEnabled = getBool("REDIS_ENABLED", cfg.RedisEnabled)
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.DBEnabled = getBool("DB_ENABLED", cfg.DBEnabled)
	cfg.Database.LoadFromEnv("DB")

	cfg.MQTT.Enabled = getBool("MQTT_ENABLED", cfg.MQTT.Enabled)
	cfg.MQTT.MQTTConfig.LoadFromEnv("MQTT")
	cfg.MQTT.VitalsTopic = getEnv("MQTT_VITALS_TOPIC", cfg.MQTT.VitalsTopic)

	cfg.Alerting.Enabled = getBool("ALERTING_ENABLED", cfg.Alerting.Enabled)
	cfg.Alerting.Cooldown = getDuration("ALERTING_COOLDOWN", cfg.Alerting.Cooldown)

	cfg.Provisioning.URL = getEnv("PROVISIONING_URL", cfg.Provisioning.URL)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
}

// Validate rejects settings the service cannot start with
func (c *Config) Validate() error {
	switch c.Telemetry.Mode {
	case "simulated":
	case "live":
		switch c.Telemetry.Transport {
		case "websocket":
			if c.Telemetry.Target == "" {
				return fmt.Errorf("TELEMETRY_TARGET is required for live websocket mode")
			}
		case "mqtt":
			if !c.MQTT.Enabled {
				return fmt.Errorf("live mqtt mode requires MQTT_ENABLED=true")
			}
		default:
			return fmt.Errorf("unknown telemetry transport %q", c.Telemetry.Transport)
		}
	default:
		return fmt.Errorf("unknown telemetry mode %q", c.Telemetry.Mode)
	}
	if c.Telemetry.TickInterval <= 0 || c.Telemetry.RecheckInterval <= 0 {
		return fmt.Errorf("telemetry intervals must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}
