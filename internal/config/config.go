// Package config loads and validates application configuration from YAML
// files and environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Catalog       CatalogConfig       `yaml:"catalog"`
	Engine        EngineConfig        `yaml:"engine"`
	CaseStore     PgStoreConfig       `yaml:"case_store"`
	RecordStore   PgStoreConfig       `yaml:"record_store"`
	Dedup         DedupConfig         `yaml:"dedup"`
	Stats         StatsConfig         `yaml:"stats"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// CatalogConfig describes where to find workflow definition YAML files.
type CatalogConfig struct {
	Directories []string `yaml:"directories"`
}

// EngineConfig describes evaluation loop settings.
type EngineConfig struct {
	// Interval between evaluation runs; the host owns the timer.
	Interval time.Duration `yaml:"interval"`

	// CaseTimeout bounds a single case's processing so one hung channel
	// dispatch cannot stall the whole batch.
	CaseTimeout time.Duration `yaml:"case_timeout"`

	// MaxConcurrency bounds the parallel fan-out across cases.
	MaxConcurrency int `yaml:"max_concurrency"`

	// WorkflowFiredTTL throttles re-evaluation of a (workflow, case) pair.
	WorkflowFiredTTL time.Duration `yaml:"workflow_fired_ttl"`

	// ActionFiredTTL prevents re-dispatch of an (action, case) pair.
	ActionFiredTTL time.Duration `yaml:"action_fired_ttl"`
}

// PgStoreConfig describes a PostgreSQL-backed store.
type PgStoreConfig struct {
	Driver          string        `yaml:"driver"` // memory or postgres
	DSNEnv          string        `yaml:"dsn_env"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DedupConfig describes the idempotency store.
type DedupConfig struct {
	Driver  string `yaml:"driver"` // memory or redis
	AddrEnv string `yaml:"addr_env"`
	DB      int    `yaml:"db"`
}

// StatsConfig describes the statistics aggregator.
type StatsConfig struct {
	// CacheTTL bounds load on the stores; snapshots are reused within it.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// ResolutionWindow is the trailing window for mean days-to-resolution.
	ResolutionWindow time.Duration `yaml:"resolution_window"`
}

// ServerConfig describes the operational HTTP endpoint (health, metrics,
// stats).
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ObservabilityConfig describes logging, metrics, and tracing settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	Metrics  MetricsConfig `yaml:"metrics"`
	Tracing  TracingConfig `yaml:"tracing"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig describes OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Directories: []string{"definitions"},
		},
		Engine: EngineConfig{
			Interval:         time.Hour,
			CaseTimeout:      5 * time.Second,
			MaxConcurrency:   8,
			WorkflowFiredTTL: 24 * time.Hour,
			ActionFiredTTL:   7 * 24 * time.Hour,
		},
		CaseStore: PgStoreConfig{
			Driver:          "memory",
			DSNEnv:          "DUNNING_CASES_DSN",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		RecordStore: PgStoreConfig{
			Driver:          "memory",
			DSNEnv:          "DUNNING_RECORDS_DSN",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Dedup: DedupConfig{
			Driver:  "memory",
			AddrEnv: "DUNNING_REDIS_ADDR",
		},
		Stats: StatsConfig{
			CacheTTL:         30 * time.Minute,
			ResolutionWindow: 90 * 24 * time.Hour,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if len(c.Catalog.Directories) == 0 {
		errs = append(errs, "catalog.directories must not be empty")
	}
	if c.Engine.Interval <= 0 {
		errs = append(errs, "engine.interval must be positive")
	}
	if c.Engine.CaseTimeout <= 0 {
		errs = append(errs, "engine.case_timeout must be positive")
	}
	if c.Engine.MaxConcurrency < 1 {
		errs = append(errs, "engine.max_concurrency must be at least 1")
	}
	if c.Engine.WorkflowFiredTTL <= 0 {
		errs = append(errs, "engine.workflow_fired_ttl must be positive")
	}
	if c.Engine.ActionFiredTTL <= 0 {
		errs = append(errs, "engine.action_fired_ttl must be positive")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	switch c.Dedup.Driver {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Sprintf("dedup.driver %q is not supported", c.Dedup.Driver))
	}
	switch c.Observability.Tracing.Exporter {
	case "", "otlp", "stdout":
	default:
		errs = append(errs, fmt.Sprintf("observability.tracing.exporter %q is not supported", c.Observability.Tracing.Exporter))
	}
	if r := c.Observability.Tracing.SamplingRate; r < 0 || r > 1 {
		errs = append(errs, "observability.tracing.sampling_rate must be between 0 and 1")
	}
	if c.CaseStore.Driver != "memory" && c.CaseStore.Driver != "postgres" {
		errs = append(errs, fmt.Sprintf("case_store.driver %q is not supported", c.CaseStore.Driver))
	}
	if c.RecordStore.Driver != "memory" && c.RecordStore.Driver != "postgres" {
		errs = append(errs, fmt.Sprintf("record_store.driver %q is not supported", c.RecordStore.Driver))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads DUNNING_* environment variables and overrides
// config values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DUNNING_SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DUNNING_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("DUNNING_ENGINE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Engine.Interval = d
		}
	}
	if v := os.Getenv("DUNNING_DEDUP_DRIVER"); v != "" {
		cfg.Dedup.Driver = v
	}
	if v := os.Getenv("DUNNING_CASE_STORE_DRIVER"); v != "" {
		cfg.CaseStore.Driver = v
	}
	if v := os.Getenv("DUNNING_RECORD_STORE_DRIVER"); v != "" {
		cfg.RecordStore.Driver = v
	}
}
