package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the publish engine once and exit",
	Long:  `Claims one batch of due posts, publishes them and exits. Meant for an external periodic trigger.`,
	RunE:  runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, _ []string) error {
	defer StopApp()

	// SIGTERM from the platform ends the run; claimed posts left over stay processing.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := publishEngine.Run(ctx)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"claimed":     res.Claimed,
		"completed":   res.Completed,
		"failed":      res.Failed,
		"interrupted": res.Interrupted,
	}).Infof("[RUN] Done in %s, %s targets published, %s failed",
		res.Duration.Round(time.Millisecond), humanize.Comma(int64(res.TargetsPublished)), humanize.Comma(int64(res.TargetsFailed)))
	return nil
}
