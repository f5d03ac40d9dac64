package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("APP_STORAGES_DIR", t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Same(t, cfg, Global)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Contains(t, cfg.Database.Name, "publish.db")
	assert.Equal(t, 20, cfg.Publisher.BatchSize)
	assert.Equal(t, 1, cfg.Publisher.TargetConcurrency)
	assert.Equal(t, 2*time.Second, cfg.Publisher.PollInterval)
	assert.Equal(t, 10, cfg.Publisher.PollAttempts)
	assert.Equal(t, "@every 1m", cfg.Publisher.CronSchedule)
	assert.Equal(t, []string{"*"}, cfg.App.CorsAllowedOrigins)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "POSTGRES")
	t.Setenv("DB_NAME", "publish")
	t.Setenv("PUBLISHER_BATCH_SIZE", "50")
	t.Setenv("PUBLISHER_POLL_INTERVAL", "500ms")
	t.Setenv("APP_BASIC_AUTH", "admin:secret, ops:pw ,")
	t.Setenv("TRACKING_REDIRECT_BASE_URL", "https://go.example.com/r/")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 50, cfg.Publisher.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Publisher.PollInterval)
	assert.Equal(t, []string{"admin:secret", "ops:pw"}, cfg.App.BasicAuth)
	assert.Equal(t, "https://go.example.com/r", cfg.Tracking.RedirectBaseURL)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	t.Setenv("APP_STORAGES_DIR", t.TempDir())
	cfg, err := LoadConfig()
	require.NoError(t, err)

	bad := *cfg
	bad.Publisher.BatchSize = 501
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Database.Driver = "mysql"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Database.ValkeyEnabled = true
	bad.Database.ValkeyAddress = ""
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Media.Bucket = "assets"
	bad.Media.Region = ""
	assert.Error(t, bad.Validate())
}
