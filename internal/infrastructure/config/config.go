package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Service   ServiceConfig
	Server    ServerConfig
	Collector CollectorConfig
	Spans     SpanConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServiceConfig identifies the process in spans, logs and metrics.
type ServiceConfig struct {
	Name        string `envconfig:"MICROSERVICE_NAME" default:"flasky"`
	Environment string `envconfig:"ENVIRONMENT_NAME" default:"development"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.3"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// CollectorConfig holds span collector configuration.
type CollectorConfig struct {
	Enabled      bool          `envconfig:"COLLECTOR_ENABLED" default:"true"`
	Endpoint     string        `envconfig:"ZIPKIN_ENDPOINT" default:"http://localhost:9411/api/v2/spans"`
	Timeout      time.Duration `envconfig:"COLLECTOR_TIMEOUT" default:"5s"`
	Gzip         bool          `envconfig:"COLLECTOR_GZIP" default:"false"`
	MaxTagLength int           `envconfig:"COLLECTOR_MAX_TAG_LENGTH" default:"256"`
}

// SpanConfig holds batching and leak detection settings.
type SpanConfig struct {
	BatchSize     int           `envconfig:"SPAN_BATCH_SIZE" default:"512"`
	FlushInterval time.Duration `envconfig:"SPAN_FLUSH_INTERVAL" default:"5s"`
	RetryBackoff  time.Duration `envconfig:"SPAN_RETRY_BACKOFF" default:"500ms"`
	LeakTimeout   time.Duration `envconfig:"SPAN_LEAK_TIMEOUT" default:"5m"`
	SweepInterval time.Duration `envconfig:"SPAN_SWEEP_INTERVAL" default:"30s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"false"`
	// Global shares one bucket across all clients instead of one per IP
	Global bool `envconfig:"RATE_LIMIT_GLOBAL" default:"false"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the exporter cannot run with.
func (c *Config) Validate() error {
	if c.Spans.BatchSize <= 0 {
		return fmt.Errorf("SPAN_BATCH_SIZE must be positive, got %d", c.Spans.BatchSize)
	}
	if c.Spans.FlushInterval <= 0 {
		return fmt.Errorf("SPAN_FLUSH_INTERVAL must be positive, got %s", c.Spans.FlushInterval)
	}
	if c.Collector.Enabled && c.Collector.Endpoint == "" {
		return fmt.Errorf("ZIPKIN_ENDPOINT is required when the collector is enabled")
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "flasky",
			Environment: "development",
			Version:     "1.0.3",
		},
		Server: ServerConfig{
			Port:            "8080",
			Host:            "0.0.0.0",
			ShutdownTimeout: 10 * time.Second,
		},
		Collector: CollectorConfig{
			Enabled:      true,
			Endpoint:     "http://localhost:9411/api/v2/spans",
			Timeout:      5 * time.Second,
			Gzip:         false,
			MaxTagLength: 256,
		},
		Spans: SpanConfig{
			BatchSize:     512,
			FlushInterval: 5 * time.Second,
			RetryBackoff:  500 * time.Millisecond,
			LeakTimeout:   5 * time.Minute,
			SweepInterval: 30 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           false,
			Global:            false,
		},
	}
}
