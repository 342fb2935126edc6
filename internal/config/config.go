// Package config loads churnguard configuration: defaults, then an optional
// YAML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/churnguard/internal/domain"
)

// EnvConfigPath names the YAML file to load when no path is given.
const EnvConfigPath = "CHURNGUARD_CONFIG"

// Load builds the configuration. A missing file is not an error when path
// came from the default; an explicit path must exist.
func Load(path string) (*domain.Config, error) {
	cfg := domain.DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfigPath)
		explicit = path != ""
	}
	if path == "" {
		path = "churnguard.yaml"
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if cfg.Pipeline.StatsPath != "" {
		stats, err := LoadStats(cfg.Pipeline.StatsPath)
		if err != nil {
			return nil, err
		}
		cfg.Pipeline.Reference = stats
	}

	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *domain.Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	num("PORT", &cfg.Server.Port)
	num("CHURNGUARD_PORT", &cfg.Server.Port)
	str("CHURNGUARD_HOST", &cfg.Server.Host)

	str("MODEL_PATH", &cfg.Model.Path)
	str("CHURNGUARD_MODEL_PATH", &cfg.Model.Path)
	str("CHURNGUARD_MODEL_SCHEMA", &cfg.Model.Schema)
	str("CHURNGUARD_STATS_PATH", &cfg.Pipeline.StatsPath)

	str("CHURNGUARD_DB_DRIVER", &cfg.Repository.Driver)
	str("CHURNGUARD_SQLITE_PATH", &cfg.Repository.SQLitePath)
	str("CHURNGUARD_POSTGRES_HOST", &cfg.Repository.PostgresHost)
	num("CHURNGUARD_POSTGRES_PORT", &cfg.Repository.PostgresPort)
	str("CHURNGUARD_POSTGRES_USER", &cfg.Repository.PostgresUser)
	str("CHURNGUARD_POSTGRES_PASSWORD", &cfg.Repository.PostgresPassword)
	str("CHURNGUARD_POSTGRES_DB", &cfg.Repository.PostgresDB)
	str("CHURNGUARD_POSTGRES_SSLMODE", &cfg.Repository.PostgresSSLMode)

	str("CHURNGUARD_CACHE_TYPE", &cfg.Cache.Type)
	str("CHURNGUARD_REDIS_ADDR", &cfg.Cache.RedisAddr)
	str("CHURNGUARD_REDIS_PASSWORD", &cfg.Cache.RedisPassword)
	dur("CHURNGUARD_RESULT_TTL", &cfg.Cache.ResultTTL)

	str("CHURNGUARD_BUS_TYPE", &cfg.EventBus.Type)
	str("CHURNGUARD_NATS_URL", &cfg.EventBus.NATSUrl)
	str("CHURNGUARD_NATS_TOKEN", &cfg.EventBus.NATSToken)
	if v, ok := lookup("CHURNGUARD_KAFKA_BROKERS"); ok && v != "" {
		cfg.EventBus.KafkaBrokers = splitList(v)
	}

	flag("CHURNGUARD_WORKER_ENABLED", &cfg.Worker.Enabled)
	num("CHURNGUARD_WORKER_COUNT", &cfg.Worker.WorkerCount)

	str("CHURNGUARD_LOG_LEVEL", &cfg.Logging.Level)
	str("CHURNGUARD_LOG_FORMAT", &cfg.Logging.Format)
	debug := false
	flag("CHURNGUARD_DEBUG", &debug)
	if debug {
		cfg.Logging.Level = "debug"
	}

	flag("CHURNGUARD_TRACING_ENABLED", &cfg.Tracing.Enabled)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadStats reads frozen reference statistics from a YAML file.
func LoadStats(path string) (domain.ReferenceStats, error) {
	var stats domain.ReferenceStats
	data, err := os.ReadFile(path)
	if err != nil {
		return stats, fmt.Errorf("failed to read reference stats: %w", err)
	}
	if err := yaml.Unmarshal(data, &stats); err != nil {
		return stats, fmt.Errorf("failed to parse reference stats: %w", err)
	}
	for name, b := range stats.Bounds {
		if b.Lower > b.Upper {
			return stats, fmt.Errorf("reference stats: bound for %s is inverted", name)
		}
	}
	return stats, nil
}

// SaveStats writes reference statistics as YAML.
func SaveStats(path string, stats domain.ReferenceStats) error {
	data, err := yaml.Marshal(stats)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
