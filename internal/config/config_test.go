package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_PATH", "LOG_LEVEL", "LOG_FORMAT", "SCHEDULER_ENABLED", "SWEEP_INTERVAL", "EVENT_BUFFER_SIZE", "MONTHLY_DUE_DAY", "ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "./data/flatlease.db", cfg.DBPath)
	assert.True(t, cfg.SchedulerEnabled)
	assert.Equal(t, 24*time.Hour, cfg.SweepInterval)
	assert.Equal(t, 256, cfg.EventBufferSize)
	assert.Equal(t, 15, cfg.MonthlyDueDay)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", "/tmp/x.db")
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("SWEEP_INTERVAL", "90m")
	t.Setenv("MONTHLY_DUE_DAY", "1")
	t.Setenv("ALLOWED_ORIGINS", "app.example.com, localhost:*,")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.False(t, cfg.SchedulerEnabled)
	assert.Equal(t, 90*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 1, cfg.MonthlyDueDay)
	assert.Equal(t, []string{"app.example.com", "localhost:*"}, cfg.AllowedOrigins)
}

func TestFromEnvInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PORT", "eighty"},
		{"PORT", "70000"},
		{"SCHEDULER_ENABLED", "maybe"},
		{"SWEEP_INTERVAL", "daily"},
		{"SWEEP_INTERVAL", "-1h"},
		{"EVENT_BUFFER_SIZE", "0"},
		{"MONTHLY_DUE_DAY", "32"},
		{"ALLOWED_ORIGINS", "app.example.com,[bad"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}
