package cmd

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	coreconfig "github.com/AzielCF/az-publish/core/config"
	"github.com/AzielCF/az-publish/ui/rest"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Serve the publish trigger, stats, health and metrics over http",
	Long:  `Starts the REST API. Runs are triggered with POST /api/publish/run, usually by an external scheduler.`,
	Run:   restServer,
}

func init() {
	restCmd.Flags().String("basic-auth", "", "Basic auth for API (format: user:pass,user2:pass2)")
	restCmd.Flags().Bool("with-cron", false, "Also run the in-process publish schedule")
	rootCmd.AddCommand(restCmd)
}

func restServer(cmd *cobra.Command, _ []string) {
	cfg := coreconfig.Global

	// Override basic auth if flag is provided
	if baFlag, _ := cmd.Flags().GetString("basic-auth"); baFlag != "" {
		cfg.App.BasicAuth = strings.Split(baFlag, ",")
	}
	if len(cfg.App.BasicAuth) == 0 {
		logrus.Warn("[REST] APP_BASIC_AUTH is empty, the API is not protected")
	}

	app, err := rest.NewServer(cfg.App, rest.Services{
		Publish: publishUsecase,
		Health:  healthUsecase,
		Metrics: metricsCollector,
	})
	if err != nil {
		logrus.Fatalln("[REST] ", err.Error())
	}

	var sched *publishSchedule
	if withCron, _ := cmd.Flags().GetBool("with-cron"); withCron {
		sched, err = startPublishSchedule(cfg.Publisher.CronSchedule)
		if err != nil {
			logrus.Fatalln("[SCHEDULER] ", err.Error())
		}
	}

	// Graceful shutdown handler
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[REST] Reception of termination signal, shutting down gracefully...")
		if sched != nil {
			sched.stop()
		}
		if err := app.Shutdown(); err != nil {
			logrus.Errorf("[REST] Error during Fiber shutdown: %v", err)
		}
		StopApp()
	}()

	logrus.Infof("[REST] Listening on :%s", cfg.App.Port)
	if err := app.Listen(":" + cfg.App.Port); err != nil {
		logrus.Fatalln("Failed to start: ", err.Error())
	}
}
