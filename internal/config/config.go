// Package config reads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zapcore"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	HTTPAddr    string
	DBDriver    string
	DatabaseURL string
	DNFTime     decimal.Decimal
	// TimerInput is a line device or file; "-" reads stdin, empty disables.
	TimerInput string
	// TimerArchivePath is the badger directory; empty keeps the archive in memory.
	TimerArchivePath string
	LogLevel         zapcore.Level
	LogDev           bool
}

// Load reads the given .env files (default ".env") when present, then the
// environment. Variables already set in the environment win.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalid, f, err)
		}
	}

	cfg := Config{
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		DBDriver:         getenv("DB_DRIVER", "sqlite"),
		DatabaseURL:      getenv("DATABASE_URL", "derby.db"),
		TimerInput:       os.Getenv("TIMER_INPUT"),
		TimerArchivePath: os.Getenv("TIMER_ARCHIVE_PATH"),
	}

	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		return Config{}, fmt.Errorf("%w: DB_DRIVER must be sqlite or postgres, got %q", ErrInvalid, cfg.DBDriver)
	}

	dnf, err := decimal.NewFromString(getenv("DNF_TIME", "6.0000"))
	if err != nil || !dnf.IsPositive() {
		return Config{}, fmt.Errorf("%w: DNF_TIME must be a positive number of seconds", ErrInvalid)
	}
	cfg.DNFTime = dnf

	if cfg.LogLevel, err = zapcore.ParseLevel(getenv("LOG_LEVEL", "info")); err != nil {
		return Config{}, fmt.Errorf("%w: LOG_LEVEL: %v", ErrInvalid, err)
	}
	if cfg.LogDev, err = strconv.ParseBool(getenv("LOG_DEV", "false")); err != nil {
		return Config{}, fmt.Errorf("%w: LOG_DEV must be true or false", ErrInvalid)
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
