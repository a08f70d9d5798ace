package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// Config is the runtime configuration, read from the environment.
type Config struct {
	DatabaseURL string
	Port        string
	AuthUser    string
	AuthPass    string
	CatalogPath string
	LogLevel    slog.Level
}

// Load reads the configuration. Variables from a .env file in the working
// directory are applied first but never override the real environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	cfg := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Port:        envOr("PORT", "8080"),
		AuthUser:    os.Getenv("AUTH_USER"),
		AuthPass:    os.Getenv("AUTH_PASS"),
		CatalogPath: os.Getenv("CATALOG_PATH"),
		LogLevel:    slog.LevelInfo,
	}
	if os.Getenv("LOG_LEVEL") == "debug" {
		cfg.LogLevel = slog.LevelDebug
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
