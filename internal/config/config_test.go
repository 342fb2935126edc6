package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/churnguard/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("DefaultsWithoutFile", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv(EnvConfigPath, "")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, 8000, cfg.Server.Port)
		assert.Equal(t, "deployment", cfg.Model.Schema)
		assert.Equal(t, "sqlite", cfg.Repository.Driver)
	})

	t.Run("ExplicitMissingFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("YAMLOverridesDefaults", func(t *testing.T) {
		path := writeFile(t, "churnguard.yaml", `
server:
  port: 9100
model:
  path: /models/churn.json
cache:
  type: redis
  redis_addr: redis:6379
  result_ttl: 2m
event_bus:
  type: kafka
  kafka_brokers: [k1:9092, k2:9092]
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 9100, cfg.Server.Port)
		assert.Equal(t, "/models/churn.json", cfg.Model.Path)
		assert.Equal(t, "redis", cfg.Cache.Type)
		assert.Equal(t, 2*time.Minute, cfg.Cache.ResultTTL)
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.EventBus.KafkaBrokers)
		// untouched sections keep defaults
		assert.Equal(t, "deployment", cfg.Model.Schema)
	})

	t.Run("EnvOverridesFile", func(t *testing.T) {
		path := writeFile(t, "churnguard.yaml", "server:\n  port: 9100\n")
		t.Setenv("PORT", "7000")
		t.Setenv("MODEL_PATH", "/env/model.json")
		t.Setenv("CHURNGUARD_DEBUG", "true")
		t.Setenv("CHURNGUARD_KAFKA_BROKERS", "a:1, b:2,")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 7000, cfg.Server.Port)
		assert.Equal(t, "/env/model.json", cfg.Model.Path)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, []string{"a:1", "b:2"}, cfg.EventBus.KafkaBrokers)
	})

	t.Run("BadEnvValue", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("CHURNGUARD_WORKER_COUNT", "many")
		_, err := Load("")
		assert.ErrorContains(t, err, "CHURNGUARD_WORKER_COUNT")
	})

	t.Run("StatsPathLoaded", func(t *testing.T) {
		stats := writeFile(t, "stats.yaml", `
median_monthly_charges: 70.35
bounds:
  monthly_charges: {lower: 19.5, upper: 118.2}
`)
		path := writeFile(t, "churnguard.yaml", "pipeline:\n  stats_path: "+stats+"\n")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 70.35, cfg.Pipeline.Reference.MedianMonthlyCharges)
		assert.Equal(t, domain.Bound{Lower: 19.5, Upper: 118.2}, cfg.Pipeline.Reference.Bounds["monthly_charges"])
	})
}

func TestStatsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.yaml")
	want := domain.ReferenceStats{
		Bounds: map[string]domain.Bound{
			"monthly_charges": {Lower: 20, Upper: 115},
			"late_payments":   {Lower: 0, Upper: 4},
		},
		MedianMonthlyCharges: 70,
		Rows:                 1000,
		FittedAt:             "2026-01-01T00:00:00Z",
	}

	require.NoError(t, SaveStats(path, want))
	got, err := LoadStats(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	t.Run("InvertedBound", func(t *testing.T) {
		bad := writeFile(t, "bad.yaml", "bounds:\n  monthly_charges: {lower: 10, upper: 1}\n")
		_, err := LoadStats(bad)
		assert.ErrorContains(t, err, "monthly_charges")
	})
}
