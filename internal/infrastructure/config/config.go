package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Upstream  UpstreamConfig
	Stream    StreamConfig
	Inject    InjectConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// UpstreamConfig describes the origin whose HTML is proxied.
type UpstreamConfig struct {
	URL     string        `envconfig:"UPSTREAM_URL" default:"http://localhost:3000"`
	Timeout time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"30s"`
	Retries int           `envconfig:"UPSTREAM_RETRIES" default:"2"`
	// RPS limits requests to the origin; zero means unlimited.
	RPS float64 `envconfig:"UPSTREAM_RPS" default:"0"`
}

// StreamConfig tunes the HTML transform.
type StreamConfig struct {
	ChunkSize  int `envconfig:"STREAM_CHUNK_SIZE" default:"32768"`
	MaxPending int `envconfig:"STREAM_MAX_PENDING" default:"16384"`
	// PassFirstChunk sends the first upstream chunk without splitting it.
	PassFirstChunk bool `envconfig:"STREAM_PASS_FIRST_CHUNK" default:"false"`
}

// InjectConfig configures where injected markup comes from.
type InjectConfig struct {
	RulesFile string `envconfig:"INJECT_RULES_FILE"`
	Sanitize  bool   `envconfig:"INJECT_SANITIZE" default:"true"`
	MaxQueue  int    `envconfig:"INJECT_MAX_QUEUE" default:"64"`
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
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Addr is the listen address.
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
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

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate rejects settings the stream pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Upstream.URL == "":
		return fmt.Errorf("invalid config: UPSTREAM_URL is empty")
	case c.Stream.ChunkSize <= 0:
		return fmt.Errorf("invalid config: STREAM_CHUNK_SIZE must be positive, got %d", c.Stream.ChunkSize)
	case c.Stream.MaxPending < 0:
		return fmt.Errorf("invalid config: STREAM_MAX_PENDING must not be negative, got %d", c.Stream.MaxPending)
	case c.Upstream.Retries < 0:
		return fmt.Errorf("invalid config: UPSTREAM_RETRIES must not be negative, got %d", c.Upstream.Retries)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			ShutdownTimeout: 10 * time.Second,
		},
		Upstream: UpstreamConfig{
			URL:     "http://localhost:3000",
			Timeout: 30 * time.Second,
			Retries: 2,
		},
		Stream: StreamConfig{
			ChunkSize:  32 * 1024,
			MaxPending: 16 * 1024,
		},
		Inject: InjectConfig{
			Sanitize: true,
			MaxQueue: 64,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
