package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the lineage engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3460"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Lineage engine tuning
	Lineage LineageConfig `yaml:"lineage"`

	// Collaborating platform services
	Services ServicesConfig `yaml:"services"`
}

// ServicesConfig holds endpoints for the platform services this engine calls.
type ServicesConfig struct {
	// CatalogURL is the base URL of the catalog service used for URN resolution
	// and node lookups.
	CatalogURL string `yaml:"catalog_url" env:"CATALOG_URL" env-default:"http://localhost:3450"`

	// SamplingURL is the base URL of the data access service used for trace
	// evidence sampling and join statistics.
	SamplingURL string `yaml:"sampling_url" env:"SAMPLING_URL" env-default:"http://localhost:3455"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"cwic"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"cwic_lineage"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// LineageConfig holds traversal bounds and refresh scheduling.
type LineageConfig struct {
	// RefreshSchedule is a cron expression for the materializer refresh job.
	// Empty disables scheduled refreshes (the explicit refresh endpoint still works).
	RefreshSchedule string `yaml:"refresh_schedule" env:"LINEAGE_REFRESH_SCHEDULE" env-default:"*/15 * * * *"`

	// DefaultTraceDepth is the hop bound applied when a trace request omits depth.
	DefaultTraceDepth int `yaml:"default_trace_depth" env:"LINEAGE_DEFAULT_TRACE_DEPTH" env-default:"5"`

	// MaxTraceDepth caps caller-requested trace depth.
	MaxTraceDepth int `yaml:"max_trace_depth" env:"LINEAGE_MAX_TRACE_DEPTH" env-default:"10"`

	// GraphNodeLimit caps nodes+edges returned by the composed graph endpoint.
	GraphNodeLimit int `yaml:"graph_node_limit" env:"LINEAGE_GRAPH_NODE_LIMIT" env-default:"1000"`

	// EvidenceSampleSize is the default sample size for trace evidence.
	EvidenceSampleSize int `yaml:"evidence_sample_size" env:"LINEAGE_EVIDENCE_SAMPLE_SIZE" env-default:"10"`

	// EvidenceWindowDays is the default lookback window for trace evidence.
	EvidenceWindowDays int `yaml:"evidence_window_days" env:"LINEAGE_EVIDENCE_WINDOW_DAYS" env-default:"30"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// A missing config.yaml is not an error; env defaults apply.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Lineage.MaxTraceDepth < 1 {
		return fmt.Errorf("max_trace_depth must be positive")
	}
	if c.Lineage.DefaultTraceDepth < 1 || c.Lineage.DefaultTraceDepth > c.Lineage.MaxTraceDepth {
		return fmt.Errorf("default_trace_depth %d must be in [1, %d]", c.Lineage.DefaultTraceDepth, c.Lineage.MaxTraceDepth)
	}
	if c.Lineage.GraphNodeLimit < 1 {
		return fmt.Errorf("graph_node_limit must be positive")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
