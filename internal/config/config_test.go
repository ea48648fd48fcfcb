package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/example/cardsched/internal/database"
	"github.com/example/cardsched/internal/scheduler"
	sr "github.com/example/cardsched/internal/spaced_repetition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(env(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.SchedulerEnabled)
	assert.Equal(t, scheduler.DefaultNotificationStartHour, cfg.NotificationStartHour)
	assert.Equal(t, sr.DefaultConfig(), cfg.Scheduling)
	assert.Empty(t, cfg.Database.Driver)
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"DB_TYPE":                 "Postgres",
		"DATABASE_URL":            "postgres://localhost/cards?sslmode=disable",
		"HTTP_ADDR":               ":9000",
		"ENABLE_SCHEDULER":        "false",
		"NOTIFICATION_START_HOUR": "6",
		"REQUEST_RETENTION":       "0.85",
		"MAXIMUM_INTERVAL":        "365",
	}))
	require.NoError(t, err)

	assert.Equal(t, database.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/cards?sslmode=disable", cfg.Database.DSN)
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.False(t, cfg.SchedulerEnabled)
	assert.Equal(t, 6, cfg.NotificationStartHour)
	assert.Equal(t, 0.85, cfg.Scheduling.RequestRetention)
	assert.Equal(t, 365, cfg.Scheduling.MaximumInterval)
}

func TestFromEnvErrors(t *testing.T) {
	tests := map[string]map[string]string{
		"postgres without url":   {"DB_TYPE": "postgres"},
		"bad hour":               {"NOTIFICATION_END_HOUR": "25"},
		"bad retention":          {"REQUEST_RETENTION": "abc"},
		"retention out of range": {"REQUEST_RETENTION": "1.5"},
		"bad interval":           {"MAXIMUM_INTERVAL": "x"},
		"missing weights file":   {"SCHEDULING_WEIGHTS_FILE": "/nonexistent/weights.yaml"},
	}
	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(env(vars))
			assert.Error(t, err)
		})
	}
}

func TestSchedulingFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
maximum_interval: 730
weights:
  easy_bonus: 2.0
  lapse_reset_stability: 0.3
`), 0o600))

	cfg, err := FromEnv(env(map[string]string{"SCHEDULING_WEIGHTS_FILE": path}))
	require.NoError(t, err)

	assert.Equal(t, 730, cfg.Scheduling.MaximumInterval)
	assert.Equal(t, 2.0, cfg.Scheduling.Weights.EasyBonus)
	assert.Equal(t, 0.3, cfg.Scheduling.Weights.LapseResetStability)
	assert.Equal(t, sr.DefaultWeights.HardPenalty, cfg.Scheduling.Weights.HardPenalty)
	assert.Equal(t, sr.DefaultRequestRetention, cfg.Scheduling.RequestRetention)
}

func TestSchedulingFileInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	require.NoError(t, os.WriteFile(path, []byte("weights:\n  hard_penalty: 3\n"), 0o600))

	_, err := FromEnv(env(map[string]string{"SCHEDULING_WEIGHTS_FILE": path}))
	assert.ErrorIs(t, err, sr.ErrInvalidConfig)
}
