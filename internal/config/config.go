package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath          string        `env:"DB_PATH" envDefault:"courtside.db"`
	LogLevel        slog.Level    `env:"LOG_LEVEL" envDefault:"INFO"`
	SessionLifetime time.Duration `env:"SESSION_LIFETIME" envDefault:"24h"`
	JWTSecret       string        `env:"JWT_SECRET"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envSeparator:","`

	DiscordKey         string `env:"DISCORD_KEY"`
	DiscordSecret      string `env:"DISCORD_SECRET"`
	DiscordCallbackURL string `env:"DISCORD_CALLBACK_URL"`
	GoogleKey          string `env:"GOOGLE_KEY"`
	GoogleSecret       string `env:"GOOGLE_SECRET"`
	GoogleCallbackURL  string `env:"GOOGLE_CALLBACK_URL"`
}

// Load reads an optional .env file and then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
