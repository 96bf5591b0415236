package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/AdamBeresnev/padel-bracket/internal/bracket"
	"github.com/joho/godotenv"
)

type Config struct {
	Port         int
	DatabasePath string
	// Seeding strategy used for every tournament of this deployment
	Seeding   string
	LogLevel  slog.Level
	LogFormat string
}

// Load reads the configuration from the environment, after loading a .env
// file when one is present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("PORT must be between 1 and 65535, got %d", port)
	}

	seeding := strings.ToLower(getEnv("SEEDING", bracket.SeedingWeighted))
	if _, err := bracket.NewSeeder(seeding); err != nil {
		return nil, fmt.Errorf("invalid SEEDING environment variable: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL environment variable: %w", err)
	}

	format := strings.ToLower(getEnv("LOG_FORMAT", "json"))
	if format != "json" && format != "text" {
		return nil, fmt.Errorf("LOG_FORMAT must be json or text, got %q", format)
	}

	return &Config{
		Port:         port,
		DatabasePath: getEnv("DATABASE_PATH", "brackets.db"),
		Seeding:      seeding,
		LogLevel:     level,
		LogFormat:    format,
	}, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
