package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "Asia/Seoul", cfg.Scheduler.Timezone)
	assert.Equal(t, 20, cfg.Scheduler.DefaultLogLimit)
	assert.Equal(t, 100, cfg.Scheduler.MaxLogLimit)
	assert.Equal(t, 8, cfg.Pipeline.MaxWorkers)
	assert.Equal(t, 6*time.Hour, cfg.Scheduler.StaleRunThreshold)
}

func TestLoad_EnvOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SCHEDULER_TIMEZONE", "UTC")
	t.Setenv("PIPELINE_MAX_WORKERS", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "UTC", cfg.Scheduler.Timezone)
	assert.Equal(t, 3, cfg.Pipeline.MaxWorkers)
	assert.Equal(t, time.UTC, cfg.Scheduler.Location())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.DB.Driver = "mysql" }, wantErr: true},
		{name: "bad timezone", mutate: func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }, wantErr: true},
		{name: "no workers", mutate: func(c *Config) { c.Pipeline.MaxWorkers = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				DB:        Database{Driver: "sqlite"},
				Scheduler: Scheduler{Timezone: "Asia/Seoul"},
				Pipeline:  Pipeline{MaxWorkers: 8},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
