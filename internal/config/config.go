// Package config builds the process configuration from the environment,
// an optional .env file and an optional YAML file with scheduling weights.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/example/cardsched/internal/database"
	"github.com/example/cardsched/internal/scheduler"
	sr "github.com/example/cardsched/internal/spaced_repetition"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is loaded once at startup and treated as read-only afterwards
type Config struct {
	Database database.Config

	HTTPAddr  string
	LogLevel  string
	LogFormat string // console or json

	TelegramToken         string
	SchedulerEnabled      bool
	NotificationStartHour int
	NotificationEndHour   int

	Scheduling sr.Config
}

// Load reads .env (if present) and then the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config using getenv for lookups
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Database: database.Config{
			Driver: strings.ToLower(strings.TrimSpace(getenv("DB_TYPE"))),
			DSN:    getenv("DB_PATH"),
		},
		HTTPAddr:              orDefault(getenv("HTTP_ADDR"), ":8080"),
		LogLevel:              orDefault(getenv("LOG_LEVEL"), "info"),
		LogFormat:             orDefault(getenv("LOG_FORMAT"), "console"),
		TelegramToken:         getenv("TELEGRAM_BOT_TOKEN"),
		SchedulerEnabled:      getenv("ENABLE_SCHEDULER") != "false",
		NotificationStartHour: scheduler.DefaultNotificationStartHour,
		NotificationEndHour:   scheduler.DefaultNotificationEndHour,
		Scheduling:            sr.DefaultConfig(),
	}
	if cfg.Database.Driver == "postgres" || cfg.Database.Driver == "postgresql" {
		cfg.Database.Driver = database.DriverPostgres
		cfg.Database.DSN = getenv("DATABASE_URL")
		if cfg.Database.DSN == "" {
			return nil, errors.New("DATABASE_URL is required when DB_TYPE=postgres")
		}
	}

	var err error
	if cfg.NotificationStartHour, err = hourFromEnv(getenv, "NOTIFICATION_START_HOUR", cfg.NotificationStartHour); err != nil {
		return nil, err
	}
	if cfg.NotificationEndHour, err = hourFromEnv(getenv, "NOTIFICATION_END_HOUR", cfg.NotificationEndHour); err != nil {
		return nil, err
	}

	if path := getenv("SCHEDULING_WEIGHTS_FILE"); path != "" {
		if err := LoadSchedulingFile(path, &cfg.Scheduling); err != nil {
			return nil, err
		}
	}
	if v := getenv("REQUEST_RETENTION"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid REQUEST_RETENTION %q: %w", v, err)
		}
		cfg.Scheduling.RequestRetention = r
	}
	if v := getenv("MAXIMUM_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MAXIMUM_INTERVAL %q: %w", v, err)
		}
		cfg.Scheduling.MaximumInterval = n
	}

	cfg.Scheduling = cfg.Scheduling.WithDefaults()
	if err := cfg.Scheduling.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadSchedulingFile overlays the YAML file at path onto cfg. Keys missing
// from the file keep their current value.
func LoadSchedulingFile(path string, cfg *sr.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read scheduling file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse scheduling file %s: %w", path, err)
	}
	return nil
}

func hourFromEnv(getenv func(string) string, key string, def int) (int, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	h, err := strconv.Atoi(v)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid %s %q: want an hour 0-23", key, v)
	}
	return h, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
