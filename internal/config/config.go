// Package config loads the server configuration from the environment, with
// optional .env file support for local development.
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config holds every tunable of the market server.
type Config struct {
	Server   ServerConfig
	Ledger   LedgerConfig
	Snapshot SnapshotConfig
	Logging  LoggingConfig
	HTTP     HTTPConfig
}

// ServerConfig controls the listen address.
type ServerConfig struct {
	Host string `env:"MARKET_HOST,default=127.0.0.1"`
	Port int    `env:"MARKET_PORT,default=3000"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LedgerConfig identifies the external CCash ledger and the market's own
// account on it. An empty Host disables the ledger integration.
type LedgerConfig struct {
	Host           string        `env:"LEDGER_HOST"`
	MarketUsername string        `env:"MARKET_USERNAME,default=market"`
	MarketPassword string        `env:"MARKET_PASSWORD"`
	Timeout        time.Duration `env:"LEDGER_TIMEOUT,default=10s"`
}

// SnapshotConfig controls persistence.
type SnapshotConfig struct {
	DataDir  string        `env:"MARKET_DATA_DIR,default=data"`
	Warmup   time.Duration `env:"SNAPSHOT_WARMUP,default=30s"`
	Interval time.Duration `env:"SNAPSHOT_INTERVAL,default=5m"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL,default=info"`
	Format     string `env:"LOG_FORMAT,default=text"`
	Output     string `env:"LOG_OUTPUT,default=stdout"`
	FilePrefix string `env:"LOG_FILE_PREFIX,default=debug"`
}

// HTTPConfig controls request middleware.
type HTTPConfig struct {
	RateLimitRPS   int      `env:"RATE_LIMIT_RPS,default=50"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST,default=100"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS,default=*"`
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	return &cfg, nil
}
