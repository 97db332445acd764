package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads the TOML file at path on top of the built-in defaults,
// then applies SF_* environment overrides. A missing file is fine;
// defaults plus environment carry a dev setup. The caller should
// invoke Validate afterwards.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, err
			}
		}
	}

	// .env is optional
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Engine.Currency, "SF_ENGINE_CURRENCY")
	setInt64(&cfg.Engine.CircuitBreakerRange, "SF_ENGINE_CIRCUIT_BREAKER_RANGE")

	setStr(&cfg.WAL.Dir, "SF_WAL_DIR")
	setInt64(&cfg.WAL.SegmentSize, "SF_WAL_SEGMENT_SIZE")
	setDuration(&cfg.WAL.SegmentDuration, "SF_WAL_SEGMENT_DURATION")

	setStr(&cfg.Outbox.Dir, "SF_OUTBOX_DIR")

	setStr(&cfg.Snapshot.Dir, "SF_SNAPSHOT_DIR")
	setDuration(&cfg.Snapshot.Interval, "SF_SNAPSHOT_INTERVAL")

	setBool(&cfg.Kafka.Enabled, "SF_KAFKA_ENABLED")
	setStringSlice(&cfg.Kafka.Brokers, "SF_KAFKA_BROKERS")
	setStr(&cfg.Kafka.FillTopic, "SF_KAFKA_FILL_TOPIC")
	setStr(&cfg.Kafka.DepthTopic, "SF_KAFKA_DEPTH_TOPIC")
	setDuration(&cfg.Kafka.DepthInterval, "SF_KAFKA_DEPTH_INTERVAL")

	setStr(&cfg.Server.Addr, "SF_SERVER_ADDR")

	setStr(&cfg.LogLevel, "SF_LOG_LEVEL")
}

// Typed env helpers. Each only mutates the target when the variable is
// present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			*dst = out
		}
	}
}
