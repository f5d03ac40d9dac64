package cmd

import (
	"context"
	"os"
	"path/filepath"
	"time"

	coreconfig "github.com/AzielCF/az-publish/core/config"
	coreDB "github.com/AzielCF/az-publish/core/database"
	domainHealth "github.com/AzielCF/az-publish/domains/health"
	domainPublish "github.com/AzielCF/az-publish/domains/publish"
	"github.com/AzielCF/az-publish/infrastructure/storage"
	"github.com/AzielCF/az-publish/infrastructure/valkey"
	"github.com/AzielCF/az-publish/integrations/facebook"
	"github.com/AzielCF/az-publish/integrations/instagram"
	"github.com/AzielCF/az-publish/integrations/linkedin"
	"github.com/AzielCF/az-publish/pkg/crypto"
	"github.com/AzielCF/az-publish/pkg/metrics"
	"github.com/AzielCF/az-publish/pkg/poller"
	"github.com/AzielCF/az-publish/pkg/utils"
	"github.com/AzielCF/az-publish/publishing/application"
	"github.com/AzielCF/az-publish/publishing/domain/channel"
	"github.com/AzielCF/az-publish/publishing/domain/monitoring"
	"github.com/AzielCF/az-publish/publishing/repository"
	"github.com/AzielCF/az-publish/usecase"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	// Flag overrides, applied on top of the environment
	flagDebug     bool
	flagDBDriver  string
	flagBatchSize int
	flagPort      string

	db       *gorm.DB
	vkClient *valkey.Client
	serverID string

	publishRepo      repository.IPublishRepository
	statsStore       monitoring.StatsStore
	metricsCollector *metrics.Collector
	publishEngine    *application.Engine

	// Usecase
	publishUsecase domainPublish.IPublishUsecase
	healthUsecase  domainHealth.IHealthUsecase
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "az-publish",
	Short: "Scheduled multi-channel social publishing engine",
	Long: `Claims posts whose scheduled time has passed and publishes them to every
connected channel (Facebook pages, Instagram business accounts, LinkedIn members
and organizations), recording one event per target attempt.`,
}

func init() {
	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Initialize flags first, before any subcommands are added
	initFlags()

	cobra.OnInitialize(initEnvConfig, initApp)
}

// initEnvConfig loads configuration from .env and the environment, then applies flags.
func initEnvConfig() {
	cfg, err := coreconfig.LoadConfig()
	if err != nil {
		logrus.Fatalf("[CONFIG] %v", err)
	}

	flags := rootCmd.PersistentFlags()
	if flags.Changed("debug") {
		cfg.App.Debug = flagDebug
	}
	if flags.Changed("db-driver") {
		cfg.Database.Driver = flagDBDriver
		if cfg.Database.Driver == "sqlite" && cfg.Database.Name == "" {
			cfg.Database.Name = filepath.Join(cfg.App.StoragesDir, "publish.db")
		}
	}
	if flags.Changed("batch-size") {
		cfg.Publisher.BatchSize = flagBatchSize
	}
	if flags.Changed("port") {
		cfg.App.Port = flagPort
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("[CONFIG] invalid flags: %v", err)
	}

	if cfg.App.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.WithFields(coreconfig.GetAllSettings()).Debug("[CONFIG] Settings loaded")
}

func initFlags() {
	rootCmd.PersistentFlags().StringVarP(
		&flagPort,
		"port", "p",
		"",
		"change port number with --port <number> | example: --port=8080",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&flagDebug,
		"debug", "d",
		false,
		"hide or displaying log with --debug <true/false> | example: --debug=true",
	)
	rootCmd.PersistentFlags().StringVarP(
		&flagDBDriver,
		"db-driver", "",
		"",
		`database driver --db-driver <sqlite|postgres> | example: --db-driver="postgres"`,
	)
	rootCmd.PersistentFlags().IntVarP(
		&flagBatchSize,
		"batch-size", "",
		0,
		"posts claimed per run --batch-size <1-500> | example: --batch-size=20",
	)
}

func initApp() {
	cfg := coreconfig.Global
	ctx := context.Background()

	if err := os.MkdirAll(cfg.App.StoragesDir, 0755); err != nil {
		logrus.Errorln(err)
	}

	crypto.SetEncryptionKey(cfg.Security.SecretKey)
	if cfg.Security.SecretKey == "" {
		logrus.Warn("[APP] APP_SECRET_KEY is empty, platform tokens are stored in plain text")
	}

	var err error
	db, err = coreDB.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("[DATABASE] %v", err)
	}

	repo := repository.NewPublishGormRepository(db, repository.ClaimStrategy(cfg.Database.ClaimStrategy))
	if err := repo.Init(ctx); err != nil {
		logrus.Fatalf("[DATABASE] failed to migrate publish tables: %v", err)
	}
	publishRepo = repo

	serverID = utils.GetPersistentServerID(cfg.App.ServerID, cfg.App.StoragesDir)
	statsStore = initStatsStore(cfg.Database)
	metricsCollector = metrics.NewCollector()

	publishEngine = buildEngine(ctx, cfg)

	publishUsecase = usecase.NewPublishService(publishEngine, publishRepo, statsStore)
	if vkClient != nil {
		healthUsecase = usecase.NewHealthService(db, vkClient)
	} else {
		healthUsecase = usecase.NewHealthService(db, nil)
	}

	logrus.WithFields(logrus.Fields{
		"server_id": serverID,
		"driver":    cfg.Database.Driver,
	}).Info("[APP] Publish engine ready")
}

// initStatsStore prefers Valkey so counters are shared between nodes.
func initStatsStore(cfg coreconfig.DatabaseConfig) monitoring.StatsStore {
	if !cfg.ValkeyEnabled {
		return repository.NewMemoryStatsStore()
	}

	client, err := valkey.NewClient(valkey.ConfigFrom(cfg))
	if err != nil {
		logrus.WithError(err).Warn("[VALKEY] Unavailable, falling back to in-memory stats")
		return repository.NewMemoryStatsStore()
	}
	vkClient = client
	logrus.WithField("address", cfg.ValkeyAddress).Info("[VALKEY] Stats store connected")
	return repository.NewValkeyStatsStore(client)
}

func buildEngine(ctx context.Context, cfg *coreconfig.Config) *application.Engine {
	var media application.MediaResolver = application.PassthroughResolver{}
	if cfg.Media.Bucket != "" {
		presigner, err := storage.NewS3Presigner(ctx, cfg.Media)
		if err != nil {
			logrus.WithError(err).Warn("[MEDIA] S3 presigner disabled, only absolute media URLs will be used")
		} else {
			media = application.PassthroughResolver{Next: presigner}
		}
	}

	ig := instagram.NewPublisher(cfg.Platforms.GraphBaseURL, cfg.Platforms.GraphVersion, cfg.Publisher.HTTPTimeout, poller.Policy{
		Interval:    cfg.Publisher.PollInterval,
		MaxAttempts: cfg.Publisher.PollAttempts,
	})
	ig.OnPoll = func(attempts int) {
		metricsCollector.PollAttempts(string(channel.KindInstagram), attempts)
	}

	publishers := channel.Publishers{
		Feed:       facebook.NewPublisher(cfg.Platforms.GraphBaseURL, cfg.Platforms.GraphVersion, cfg.Publisher.HTTPTimeout),
		AsyncMedia: ig,
		Structured: linkedin.NewPublisher(cfg.Platforms.LinkedInBaseURL, cfg.Publisher.HTTPTimeout),
	}

	recorder := application.NewRecorder(publishRepo, statsStore, metricsCollector)
	dispatcher := application.NewDispatcher(publishRepo, publishers, recorder, cfg.Publisher.TargetTimeout, cfg.Publisher.TargetConcurrency)

	return application.NewEngine(application.EngineConfig{
		BatchSize:       cfg.Publisher.BatchSize,
		RedirectBaseURL: cfg.Tracking.RedirectBaseURL,
		ServerID:        serverID,
	}, application.EngineDeps{
		Repo:       publishRepo,
		Media:      media,
		Dispatcher: dispatcher,
		Recorder:   recorder,
		Stats:      statsStore,
		Metrics:    metricsCollector,
	})
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// StopApp closes the database and Valkey connections.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	if vkClient != nil {
		vkClient.Close()
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	logrus.Info("[APP] Application stopped cleanly.")
}
