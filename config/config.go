// Package config defines the server configuration and its validation.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config is the root configuration. Fields are populated from a TOML
// file and then optionally overridden by SF_* environment variables.
type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	WAL      WALConfig      `toml:"wal"`
	Outbox   OutboxConfig   `toml:"outbox"`
	Snapshot SnapshotConfig `toml:"snapshot"`
	Kafka    KafkaConfig    `toml:"kafka"`
	Server   ServerConfig   `toml:"server"`
	LogLevel string         `toml:"log_level"`
}

// EngineConfig holds the market parameters.
type EngineConfig struct {
	Currency            string `toml:"currency"`
	CircuitBreakerRange int64  `toml:"circuit_breaker_range"`
}

// WALConfig holds write-ahead log placement and rotation.
type WALConfig struct {
	Dir             string   `toml:"dir"`
	SegmentSize     int64    `toml:"segment_size"`
	SegmentDuration Duration `toml:"segment_duration"`
}

type OutboxConfig struct {
	Dir string `toml:"dir"`
}

type SnapshotConfig struct {
	Dir      string   `toml:"dir"`
	Interval Duration `toml:"interval"`
}

// KafkaConfig holds broker endpoints and topics. When Enabled is
// false the broadcaster and depth publisher are not started; the
// outbox still accumulates so nothing is lost.
type KafkaConfig struct {
	Enabled       bool     `toml:"enabled"`
	Brokers       []string `toml:"brokers"`
	FillTopic     string   `toml:"fill_topic"`
	DepthTopic    string   `toml:"depth_topic"`
	DepthInterval Duration `toml:"depth_interval"`
}

// Duration wraps time.Duration so the TOML decoder accepts strings
// like "5m" or "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Defaults returns the configuration used when the TOML file omits a
// field.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			Currency:            "USDC",
			CircuitBreakerRange: 500,
		},
		WAL: WALConfig{
			Dir:             "data/wal",
			SegmentSize:     64 << 20,
			SegmentDuration: Duration{time.Hour},
		},
		Outbox: OutboxConfig{
			Dir: "data/outbox",
		},
		Snapshot: SnapshotConfig{
			Dir:      "data/snapshot",
			Interval: Duration{5 * time.Minute},
		},
		Kafka: KafkaConfig{
			Enabled:       false,
			Brokers:       []string{"localhost:9092"},
			FillTopic:     "lending.fills",
			DepthTopic:    "lending.depth",
			DepthInterval: Duration{time.Second},
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate reports every problem found, combined into one error.
func (c *Config) Validate() error {
	var errs []string

	if c.Engine.Currency == "" {
		errs = append(errs, "engine: currency must not be empty")
	}
	if c.Engine.CircuitBreakerRange < 0 {
		errs = append(errs, "engine: circuit_breaker_range must not be negative")
	}

	if c.WAL.Dir == "" {
		errs = append(errs, "wal: dir must not be empty")
	}
	if c.WAL.SegmentSize <= 0 {
		errs = append(errs, "wal: segment_size must be positive")
	}

	if c.Outbox.Dir == "" {
		errs = append(errs, "outbox: dir must not be empty")
	}

	if c.Snapshot.Dir == "" {
		errs = append(errs, "snapshot: dir must not be empty")
	}
	if c.Snapshot.Interval.Duration <= 0 {
		errs = append(errs, "snapshot: interval must be positive")
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, "kafka: brokers must not be empty when enabled")
		}
		if c.Kafka.FillTopic == "" {
			errs = append(errs, "kafka: fill_topic must not be empty when enabled")
		}
	}

	if c.Server.Addr == "" {
		errs = append(errs, "server: addr must not be empty")
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// SlogLevel maps the configured level to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
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
