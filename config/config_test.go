package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "USDC", cfg.Engine.Currency)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadTOMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
log_level = "debug"

[engine]
currency = "ETH"
circuit_breaker_range = 500

[wal]
dir = "/var/lib/engine/wal"
segment_duration = "30m"

[snapshot]
interval = "1m"

[kafka]
enabled = true
brokers = ["k1:9092", "k2:9092"]
fill_topic = "fills"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "ETH", cfg.Engine.Currency)
	assert.Equal(t, int64(500), cfg.Engine.CircuitBreakerRange)
	assert.Equal(t, "/var/lib/engine/wal", cfg.WAL.Dir)
	assert.Equal(t, 30*time.Minute, cfg.WAL.SegmentDuration.Duration)
	assert.Equal(t, time.Minute, cfg.Snapshot.Interval.Duration)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	// untouched fields keep defaults
	assert.Equal(t, int64(64<<20), cfg.WAL.SegmentSize)
}

func TestEnvOverridesWinOverTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[engine]\ncurrency = \"ETH\"\n"), 0o644))

	t.Setenv("SF_ENGINE_CURRENCY", "WBTC")
	t.Setenv("SF_KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("SF_SNAPSHOT_INTERVAL", "90s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "WBTC", cfg.Engine.Currency)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 90*time.Second, cfg.Snapshot.Interval.Duration)
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Engine.Currency = ""
	cfg.WAL.SegmentSize = 0
	cfg.LogLevel = "loud"
	cfg.Kafka.Enabled = true
	cfg.Kafka.Brokers = nil

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "currency")
	assert.ErrorContains(t, err, "segment_size")
	assert.ErrorContains(t, err, "log_level")
	assert.ErrorContains(t, err, "brokers")
}
