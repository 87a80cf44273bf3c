package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Environment string `env:"APP_ENV" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"8080"`
	FEOrigin    string `env:"FE_ORIGIN" envDefault:"http://localhost:3000"`

	DatabaseURL string `env:"DATABASE_URL,required"`

	ClickHouseHost     string `env:"CLICKHOUSE_HOST,required"`
	ClickHousePort     int    `env:"CLICKHOUSE_NATIVE_PORT" envDefault:"9000"`
	ClickHouseDB       string `env:"CLICKHOUSE_DB_NAME,required"`
	ClickHouseUser     string `env:"CLICKHOUSE_USERNAME" envDefault:"default"`
	ClickHousePassword string `env:"CLICKHOUSE_PASSWORD" envDefault:""`

	JWTSecret string `env:"JWT_SECRET_KEY,required"`

	// When true, POST /api/analytics/collect requires a valid X-Write-Key header.
	// Off by default: third-party snippets identify the tenant in the payload.
	CollectRequireWriteKey bool          `env:"COLLECT_REQUIRE_WRITE_KEY" envDefault:"false"`
	WriteKeyCacheTTL       time.Duration `env:"WRITE_KEY_CACHE_TTL" envDefault:"5m"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}
