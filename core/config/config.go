package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Publisher PublisherConfig
	Media     MediaConfig
	Tracking  TrackingConfig
	Platforms PlatformsConfig
	Security  SecurityConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	LogFormat          string
	Environment        string
	BasicAuth          []string
	BasePath           string
	CorsAllowedOrigins []string
	ServerID           string
	StoragesDir        string
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string // File path for SQLite, DB Name for Postgres
	SSLMode         string
	ClaimStrategy   string // auto | conditional
	ValkeyEnabled   bool
	ValkeyAddress   string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string
}

// PublisherConfig tunes one invocation of the publish engine.
type PublisherConfig struct {
	BatchSize         int
	TargetConcurrency int
	TargetTimeout     time.Duration
	HTTPTimeout       time.Duration
	PollInterval      time.Duration
	PollAttempts      int
	CronSchedule      string
}

type MediaConfig struct {
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
	AccessKey    string
	SecretKey    string
	PresignTTL   time.Duration
}

type TrackingConfig struct {
	RedirectBaseURL string
}

type PlatformsConfig struct {
	GraphBaseURL    string
	GraphVersion    string
	LinkedInBaseURL string
}

type SecurityConfig struct {
	SecretKey string
}

// Global provides access to the loaded configuration globally.
var Global *Config

// LoadConfig loads configuration from .env, environment variables and defaults.
func LoadConfig() (*Config, error) {
	// A missing .env is the normal case in containers.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	storages := v.GetString("app_storages_dir")

	cfg := &Config{
		App: AppConfig{
			Version:            "v1.0.0",
			Port:               v.GetString("app_port"),
			Debug:              v.GetBool("app_debug"),
			LogFormat:          v.GetString("log_format"),
			Environment:        v.GetString("app_env"),
			BasicAuth:          splitList(v.GetString("app_basic_auth")),
			BasePath:           strings.TrimRight(v.GetString("app_base_path"), "/"),
			CorsAllowedOrigins: splitList(v.GetString("app_cors_allowed_origins")),
			ServerID:           v.GetString("server_id"),
			StoragesDir:        storages,
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(v.GetString("db_driver")),
			Host:            v.GetString("db_host"),
			Port:            v.GetInt("db_port"),
			User:            v.GetString("db_user"),
			Password:        v.GetString("db_password"),
			Name:            v.GetString("db_name"),
			SSLMode:         v.GetString("db_sslmode"),
			ClaimStrategy:   strings.ToLower(v.GetString("db_claim_strategy")),
			ValkeyEnabled:   v.GetBool("valkey_enabled"),
			ValkeyAddress:   v.GetString("valkey_address"),
			ValkeyPassword:  v.GetString("valkey_password"),
			ValkeyDB:        v.GetInt("valkey_db"),
			ValkeyKeyPrefix: v.GetString("valkey_key_prefix"),
		},
		Publisher: PublisherConfig{
			BatchSize:         v.GetInt("publisher_batch_size"),
			TargetConcurrency: v.GetInt("publisher_target_concurrency"),
			TargetTimeout:     v.GetDuration("publisher_target_timeout"),
			HTTPTimeout:       v.GetDuration("publisher_http_timeout"),
			PollInterval:      v.GetDuration("publisher_poll_interval"),
			PollAttempts:      v.GetInt("publisher_poll_attempts"),
			CronSchedule:      v.GetString("publisher_cron_schedule"),
		},
		Media: MediaConfig{
			Bucket:       v.GetString("media_bucket"),
			Region:       v.GetString("media_region"),
			Endpoint:     v.GetString("media_endpoint"),
			UsePathStyle: v.GetBool("media_use_path_style"),
			AccessKey:    v.GetString("media_access_key"),
			SecretKey:    v.GetString("media_secret_key"),
			PresignTTL:   v.GetDuration("media_presign_ttl"),
		},
		Tracking: TrackingConfig{
			RedirectBaseURL: strings.TrimRight(v.GetString("tracking_redirect_base_url"), "/"),
		},
		Platforms: PlatformsConfig{
			GraphBaseURL:    strings.TrimRight(v.GetString("graph_base_url"), "/"),
			GraphVersion:    v.GetString("graph_version"),
			LinkedInBaseURL: strings.TrimRight(v.GetString("linkedin_base_url"), "/"),
		},
		Security: SecurityConfig{
			SecretKey: v.GetString("app_secret_key"),
		},
	}

	if cfg.Database.Driver == "sqlite" && cfg.Database.Name == "" {
		cfg.Database.Name = filepath.Join(storages, "publish.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	Global = cfg
	return cfg, nil
}

// Validate checks the values the engine cannot run without.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.Database,
		validation.Field(&c.Database.Driver, validation.Required, validation.In("sqlite", "postgres")),
		validation.Field(&c.Database.Name, validation.Required),
		validation.Field(&c.Database.ClaimStrategy, validation.In("auto", "conditional")),
		validation.Field(&c.Database.ValkeyAddress, validation.When(c.Database.ValkeyEnabled, validation.Required)),
	); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := validation.ValidateStruct(&c.Publisher,
		validation.Field(&c.Publisher.BatchSize, validation.Required, validation.Min(1), validation.Max(500)),
		validation.Field(&c.Publisher.TargetConcurrency, validation.Required, validation.Min(1), validation.Max(32)),
		validation.Field(&c.Publisher.TargetTimeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.Publisher.HTTPTimeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.Publisher.PollInterval, validation.Required),
		validation.Field(&c.Publisher.PollAttempts, validation.Required, validation.Min(1)),
		validation.Field(&c.Publisher.CronSchedule, validation.Required),
	); err != nil {
		return fmt.Errorf("publisher: %w", err)
	}

	if err := validation.ValidateStruct(&c.Media,
		validation.Field(&c.Media.Region, validation.When(c.Media.Bucket != "", validation.Required)),
		validation.Field(&c.Media.PresignTTL, validation.Required, validation.Min(time.Minute)),
	); err != nil {
		return fmt.Errorf("media: %w", err)
	}

	return validation.ValidateStruct(&c.Platforms,
		validation.Field(&c.Platforms.GraphBaseURL, validation.Required),
		validation.Field(&c.Platforms.GraphVersion, validation.Required),
		validation.Field(&c.Platforms.LinkedInBaseURL, validation.Required),
	)
}
