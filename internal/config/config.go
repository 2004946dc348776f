// Package config loads process configuration from the environment.
package config

import (
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/pokelookout/poke-lookout/pkg/client"
	"github.com/pokelookout/poke-lookout/pkg/logging"
	"github.com/rs/zerolog"
)

// Config holds the configuration shared by the commands.
type Config struct {
	BaseURL            string        `env:"POKEAPI_BASE_URL" envDefault:"https://pokeapi.co/api/v2"`
	UserAgent          string        `env:"POKEAPI_USER_AGENT" envDefault:"poke-lookout/0.1.0"`
	Timeout            time.Duration `env:"POKEAPI_TIMEOUT" envDefault:"60s"`
	MaxConnections     int           `env:"POKEAPI_MAX_CONNECTIONS" envDefault:"30"`
	MaxIdleConnections int           `env:"POKEAPI_MAX_IDLE_CONNECTIONS" envDefault:"30"`

	LogFile    string `env:"POKE_LOG_FILE" envDefault:"logs.log"`
	LogLevel   string `env:"POKE_LOG_LEVEL" envDefault:"info"`
	LoggerName string `env:"POKE_LOGGER_NAME" envDefault:"user"`

	// RedisURL enables the Redis export of bulk runs when set.
	RedisURL string `env:"REDIS_URL"`
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoggingConfig returns the logger configuration.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Name:  c.LoggerName,
		Level: logging.LogLevel(c.LogLevel),
		Path:  c.LogFile,
	}
}

// ClientConfig returns the PokeAPI client configuration.
func (c *Config) ClientConfig(logger zerolog.Logger) client.Config {
	cfg := client.DefaultConfig(logger)
	cfg.BaseURL = c.BaseURL
	cfg.UserAgent = c.UserAgent
	cfg.Timeout = c.Timeout
	cfg.MaxConnections = c.MaxConnections
	cfg.MaxIdleConnections = c.MaxIdleConnections
	return cfg
}
