// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/ashureev/revisahub/internal/llm"
	"github.com/ashureev/revisahub/internal/store"
)

// Config holds all application configuration.
type Config struct {
	Port        string   `env:"PORT" envDefault:"8080"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`

	// Store
	StoreBackend string `env:"STORE_BACKEND" envDefault:"sqlite"`
	DBPath       string `env:"DB_PATH" envDefault:"./data/revisahub.db"`
	MongoURL     string `env:"MONGO_URL" envDefault:"mongodb://localhost:27017"`
	DBName       string `env:"DB_NAME" envDefault:"revisahub"`

	// Chat
	HistoryWindow int `env:"HISTORY_WINDOW" envDefault:"6"`
	ChatRateLimit int `env:"CHAT_RATE_LIMIT" envDefault:"30"`

	// GRPCHealthPort enables the gRPC health service when set.
	GRPCHealthPort string `env:"GRPC_HEALTH_PORT"`

	Timeout TimeoutConfig
	LLM     llm.Config
}

// TimeoutConfig holds server timeouts.
type TimeoutConfig struct {
	HealthCheck time.Duration `env:"HEALTH_CHECK_TIMEOUT" envDefault:"5s"`
	Shutdown    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads configuration from the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.LLM.ApplyAliases()
	cfg.CORSOrigins = normalizeOrigins(cfg.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.StoreBackend {
	case store.BackendSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case store.BackendMongo:
		if c.MongoURL == "" || c.DBName == "" {
			return fmt.Errorf("MONGO_URL and DB_NAME are required for the mongo backend")
		}
	case store.BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.HistoryWindow <= 0 {
		return fmt.Errorf("HISTORY_WINDOW must be > 0")
	}
	if c.ChatRateLimit < 0 {
		return fmt.Errorf("CHAT_RATE_LIMIT cannot be negative")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return c.LLM.Validate()
}

// StoreOptions returns the options for store.Open.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend:  c.StoreBackend,
		DBPath:   c.DBPath,
		MongoURL: c.MongoURL,
		DBName:   c.DBName,
	}
}

// SlogLevel parses LOG_LEVEL.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}
	return level, nil
}

// AllowsAnyOrigin reports whether CORS is open to every origin.
func (c *Config) AllowsAnyOrigin() bool {
	for _, o := range c.CORSOrigins {
		if o == "*" {
			return true
		}
	}
	return len(c.CORSOrigins) == 0
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}
