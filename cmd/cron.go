package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreconfig "github.com/AzielCF/az-publish/core/config"
	"github.com/AzielCF/az-publish/pkg/scheduler"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const drainTimeout = 2 * time.Minute

var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Run the publish engine on an in-process schedule",
	Long:  `Invokes the engine on PUBLISHER_CRON_SCHEDULE (default "@every 1m"). A run still in progress when the next one is due makes the next one skip.`,
	Run:   cronServer,
}

func init() {
	cronCmd.Flags().String("schedule", "", `cron spec overriding PUBLISHER_CRON_SCHEDULE | example: --schedule="@every 30s"`)
	rootCmd.AddCommand(cronCmd)
}

type publishSchedule struct {
	sched  *scheduler.Scheduler
	cancel context.CancelFunc
}

func startPublishSchedule(spec string) (*publishSchedule, error) {
	sched := scheduler.New()
	err := sched.Add("publish", spec, func(ctx context.Context) {
		if _, err := publishEngine.Run(ctx); err != nil {
			logrus.WithError(err).Error("[SCHEDULER] Publish run failed")
		}
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)
	return &publishSchedule{sched: sched, cancel: cancel}, nil
}

// stop waits for a running invocation, cancelling it after drainTimeout.
func (p *publishSchedule) stop() {
	done := p.sched.Stop()
	select {
	case <-done.Done():
	case <-time.After(drainTimeout):
		logrus.Warn("[SCHEDULER] Run still in progress, cancelling it")
		p.cancel()
		<-done.Done()
	}
	p.cancel()
}

func cronServer(cmd *cobra.Command, _ []string) {
	spec := coreconfig.Global.Publisher.CronSchedule
	if flagSpec, _ := cmd.Flags().GetString("schedule"); flagSpec != "" {
		spec = flagSpec
	}

	sched, err := startPublishSchedule(spec)
	if err != nil {
		logrus.Fatalln("[SCHEDULER] ", err.Error())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logrus.Info("[SCHEDULER] Reception of termination signal, shutting down gracefully...")
	sched.stop()
	StopApp()
}
