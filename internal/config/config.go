package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete player configuration
type Config struct {
	InstanceID string       `yaml:"instance_id"`
	Player     PlayerConfig `yaml:"player"`
	Engine     EngineConfig `yaml:"engine"`
	Notify     NotifyConfig `yaml:"notify"`
	Log        LogConfig    `yaml:"log"`
}

// PlayerConfig contains coordinator timings, in milliseconds
type PlayerConfig struct {
	PollIntervalMS    int `yaml:"poll_interval_ms"`    // bus poll timeout (default: 100)
	LockTimeoutMS     int `yaml:"lock_timeout_ms"`     // internal lock bound (default: 5000)
	ShutdownTimeoutMS int `yaml:"shutdown_timeout_ms"` // End() bound (default: 5000)
	HandoffTimeoutMS  int `yaml:"handoff_timeout_ms"`  // command wait across pipeline swaps (default: 5000)
}

// EngineConfig contains GStreamer playbin settings
type EngineConfig struct {
	AudioSink string `yaml:"audio_sink"` // e.g. autoaudiosink, fakesink (empty: playbin default)
	VideoSink string `yaml:"video_sink"`
}

// NotifyConfig contains telemetry outputs
type NotifyConfig struct {
	MQTT *MQTTConfig `yaml:"mqtt,omitempty"`
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Broker   string `yaml:"broker"` // host:port
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		InstanceID: "player",
		Player: PlayerConfig{
			PollIntervalMS:    100,
			LockTimeoutMS:     5000,
			ShutdownTimeoutMS: 5000,
			HandoffTimeoutMS:  5000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads and parses a YAML configuration file.
// Fields missing from the file keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// PollInterval returns poll_interval_ms as a duration
func (p PlayerConfig) PollInterval() time.Duration { return ms(p.PollIntervalMS) }

// LockTimeout returns lock_timeout_ms as a duration
func (p PlayerConfig) LockTimeout() time.Duration { return ms(p.LockTimeoutMS) }

// ShutdownTimeout returns shutdown_timeout_ms as a duration
func (p PlayerConfig) ShutdownTimeout() time.Duration { return ms(p.ShutdownTimeoutMS) }

// HandoffTimeout returns handoff_timeout_ms as a duration
func (p PlayerConfig) HandoffTimeout() time.Duration { return ms(p.HandoffTimeoutMS) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// SlogLevel maps the configured level to a slog.Level
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
