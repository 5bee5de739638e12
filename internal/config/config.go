// Package config loads the citation pipeline configuration: marker grammar
// delimiters, pipeline limits, attachment store settings, and observability
// toggles. Configuration is a YAML file resolved from CITATIONS_CONFIG or the
// default path; a missing file yields the built-in defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// DefaultPath is used when CITATIONS_CONFIG is not set.
const DefaultPath = "config/citations.yaml"

type MarkerConfig struct {
	// Open and Close select the marker delimiter pair. The default bracket
	// sentinels are the canonical grammar; the alternate private-use scheme
	// from the legacy renderer can be selected here instead.
	Open  string `mapstructure:"open"`
	Close string `mapstructure:"close"`
}

type PipelineConfig struct {
	// MaxSourcesPerGroup caps how many sources a single tool call may add to
	// one (turn, sourceKey) group. Zero means no cap.
	MaxSourcesPerGroup int `mapstructure:"max_sources_per_group"`
	// AliasFile points at the optional source-key alias file.
	AliasFile string `mapstructure:"alias_file"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type StoreConfig struct {
	// Backend selects the attachment store: "none", "redis", or "postgres".
	Backend  string         `mapstructure:"backend"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

type ObservabilityConfig struct {
	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"logging"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

type Config struct {
	Markers       MarkerConfig        `mapstructure:"markers"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	Store         StoreConfig         `mapstructure:"store"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.Markers.Open = "【"
	cfg.Markers.Close = "】"
	cfg.Store.Backend = "none"
	cfg.Store.Redis.Addr = "localhost:6379"
	cfg.Store.Redis.TTL = 24 * time.Hour
	cfg.Store.Postgres.Port = 5432
	cfg.Store.Postgres.SSLMode = "require"
	cfg.Observability.Logging.Level = "info"
	cfg.Observability.Tracing.ServiceName = "citations"
	return cfg
}

// Path returns the config file path, checking the env override first.
func Path() string {
	if p := os.Getenv("CITATIONS_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads the config file at Path. A missing file is not an error: the
// defaults are returned so the library works with zero configuration.
func Load() (*Config, error) {
	return LoadFile(Path())
}

// LoadFile reads one config file, layering it over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Markers.Open == "" || c.Markers.Close == "" {
		return fmt.Errorf("markers: open and close delimiters must be non-empty")
	}
	if c.Markers.Open == c.Markers.Close {
		return fmt.Errorf("markers: open and close delimiters must differ")
	}
	switch c.Store.Backend {
	case "", "none", "redis", "postgres":
	default:
		return fmt.Errorf("store: unknown backend %q", c.Store.Backend)
	}
	if c.Pipeline.MaxSourcesPerGroup < 0 {
		return fmt.Errorf("pipeline: max_sources_per_group must be >= 0")
	}
	return nil
}
