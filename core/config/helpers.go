package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_port", "3000")
	v.SetDefault("app_debug", false)
	v.SetDefault("log_format", "text")
	v.SetDefault("app_env", "development")
	v.SetDefault("app_storages_dir", "storages")
	v.SetDefault("app_secret_key", "")
	v.SetDefault("app_cors_allowed_origins", "*")

	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("db_claim_strategy", "auto")
	v.SetDefault("valkey_enabled", false)
	v.SetDefault("valkey_address", "localhost:6379")
	v.SetDefault("valkey_db", 0)
	v.SetDefault("valkey_key_prefix", "azpub:")

	v.SetDefault("publisher_batch_size", 20)
	v.SetDefault("publisher_target_concurrency", 1)
	v.SetDefault("publisher_target_timeout", 90*time.Second)
	v.SetDefault("publisher_http_timeout", 30*time.Second)
	v.SetDefault("publisher_poll_interval", 2*time.Second)
	v.SetDefault("publisher_poll_attempts", 10)
	v.SetDefault("publisher_cron_schedule", "@every 1m")

	v.SetDefault("media_region", "us-east-1")
	v.SetDefault("media_use_path_style", false)
	v.SetDefault("media_presign_ttl", time.Hour)

	v.SetDefault("graph_base_url", "https://graph.facebook.com")
	v.SetDefault("graph_version", "v19.0")
	v.SetDefault("linkedin_base_url", "https://api.linkedin.com")
}

// GetAllSettings returns the non-secret settings currently loaded in memory.
func GetAllSettings() map[string]any {
	if Global == nil {
		return map[string]any{}
	}
	return map[string]any{
		"app_version":                  Global.App.Version,
		"app_debug":                    Global.App.Debug,
		"db_driver":                    Global.Database.Driver,
		"db_claim_strategy":            Global.Database.ClaimStrategy,
		"valkey_enabled":               Global.Database.ValkeyEnabled,
		"publisher_batch_size":         Global.Publisher.BatchSize,
		"publisher_target_concurrency": Global.Publisher.TargetConcurrency,
		"publisher_poll_interval":      Global.Publisher.PollInterval.String(),
		"publisher_poll_attempts":      Global.Publisher.PollAttempts,
		"publisher_cron_schedule":      Global.Publisher.CronSchedule,
		"media_bucket":                 Global.Media.Bucket,
		"media_presign_ttl":            Global.Media.PresignTTL.String(),
	}
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
