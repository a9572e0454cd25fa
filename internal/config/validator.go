package config

import (
	"fmt"
	"regexp"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks if the configuration is valid and fills derived defaults
func Validate(cfg *Config) error {
	// Validate instance_id
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	// Validate player timings
	timings := []struct {
		name  string
		value int
	}{
		{"player.poll_interval_ms", cfg.Player.PollIntervalMS},
		{"player.lock_timeout_ms", cfg.Player.LockTimeoutMS},
		{"player.shutdown_timeout_ms", cfg.Player.ShutdownTimeoutMS},
		{"player.handoff_timeout_ms", cfg.Player.HandoffTimeoutMS},
	}
	for _, tm := range timings {
		if tm.value <= 0 {
			return fmt.Errorf("%s must be > 0, got %d", tm.name, tm.value)
		}
	}
	if cfg.Player.PollIntervalMS >= cfg.Player.ShutdownTimeoutMS {
		return fmt.Errorf("player.poll_interval_ms (%d) must be below player.shutdown_timeout_ms (%d)",
			cfg.Player.PollIntervalMS, cfg.Player.ShutdownTimeoutMS)
	}

	// Validate logging
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	case "":
		cfg.Log.Level = "info"
	default:
		return fmt.Errorf("log.level '%s' unknown (must be debug, info, warn or error)", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "text", "json":
	case "":
		cfg.Log.Format = "text"
	default:
		return fmt.Errorf("log.format '%s' unknown (must be 'text' or 'json')", cfg.Log.Format)
	}

	// Validate MQTT, if configured
	if m := cfg.Notify.MQTT; m != nil {
		if m.Broker == "" {
			return fmt.Errorf("notify.mqtt.broker is required when notify.mqtt is set")
		}
		if m.QoS > 2 {
			return fmt.Errorf("notify.mqtt.qos must be 0, 1 or 2, got %d", m.QoS)
		}
		if m.ClientID == "" {
			m.ClientID = cfg.InstanceID
		}
		if m.Topic == "" {
			m.Topic = fmt.Sprintf("orion/player/%s", cfg.InstanceID)
		}
	}

	return nil
}
