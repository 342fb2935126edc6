package domain

import "time"

// Config holds the complete churnguard configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server" yaml:"server"`

	// Model artifact and feature pipeline
	Model    ModelConfig    `json:"model" yaml:"model"`
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline"`

	// Component configurations
	Repository RepositoryConfig `json:"repository" yaml:"repository"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	EventBus   EventBusConfig   `json:"eventBus" yaml:"event_bus"`
	Worker     WorkerConfig     `json:"worker" yaml:"worker"`

	// Observability
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port" yaml:"port"`
	ReadTimeout  int    `json:"readTimeout" yaml:"read_timeout"`   // seconds
	WriteTimeout int    `json:"writeTimeout" yaml:"write_timeout"` // seconds
}

// ModelConfig locates the deployed model artifact.
type ModelConfig struct {
	Path string `json:"path" yaml:"path"`

	// Schema is the feature schema the served model must match:
	// "deployment" (7 raw fields) or "training" (full engineered set).
	Schema string `json:"schema" yaml:"schema"`
}

// PipelineConfig holds the frozen training-time statistics used by the
// feature deriver. StatsPath, when set, is loaded over Reference.
type PipelineConfig struct {
	StatsPath string         `json:"statsPath" yaml:"stats_path"`
	Reference ReferenceStats `json:"reference" yaml:"reference"`
}

// ReferenceStats are statistics computed once at training time and frozen.
// They must never be recomputed per inference batch.
type ReferenceStats struct {
	// Bounds are the [1st, 99th] percentile caps per numeric feature.
	Bounds map[string]Bound `json:"bounds" yaml:"bounds"`

	// MedianMonthlyCharges drives high_price_flag.
	MedianMonthlyCharges float64 `json:"medianMonthlyCharges" yaml:"median_monthly_charges"`

	Rows     int    `json:"rows,omitempty" yaml:"rows,omitempty"`
	FittedAt string `json:"fittedAt,omitempty" yaml:"fitted_at,omitempty"`
}

// Bound is a closed [Lower, Upper] interval.
type Bound struct {
	Lower float64 `json:"lower" yaml:"lower"`
	Upper float64 `json:"upper" yaml:"upper"`
}

// WorkerConfig configures the async scoring worker.
type WorkerConfig struct {
	Enabled     bool `json:"enabled" yaml:"enabled"`
	WorkerCount int  `json:"workerCount" yaml:"worker_count"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	ServiceName string `json:"serviceName" yaml:"service_name"`
}

// DefaultConfig returns a single-node configuration: SQLite, in-memory
// cache and channel bus.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8000,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Model: ModelConfig{
			Path:   "artifacts/churn_deployment_model.json",
			Schema: "deployment",
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./churnguard.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Worker: WorkerConfig{
			Enabled:     false,
			WorkerCount: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "churnguard",
		},
	}
}
