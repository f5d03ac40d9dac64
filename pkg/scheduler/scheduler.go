package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler triggers jobs on cron specs. A job whose previous run is still going is skipped.
type Scheduler struct {
	cron *cron.Cron

	mu  sync.Mutex
	ctx context.Context
}

func New() *Scheduler {
	log := cronLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(log),
			cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
		),
		ctx: context.Background(),
	}
}

// Add registers fn under spec, e.g. "@every 1m" or "*/5 * * * *".
func (s *Scheduler) Add(name, spec string, fn func(ctx context.Context)) error {
	_, err := s.cron.AddFunc(spec, func() {
		logrus.WithField("job", name).Debug("[SCHEDULER] Job triggered")
		fn(s.context())
	})
	if err != nil {
		return fmt.Errorf("schedule %s with %q: %w", name, spec, err)
	}
	logrus.WithFields(logrus.Fields{
		"job":  name,
		"spec": spec,
	}).Info("[SCHEDULER] Job registered")
	return nil
}

// Start runs the jobs in the background. Jobs receive ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
}

// Stop prevents new runs and returns a context that is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logrus.WithFields(fields(keysAndValues)).Debug("[SCHEDULER] " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logrus.WithError(err).WithFields(fields(keysAndValues)).Error("[SCHEDULER] " + msg)
}

func fields(keysAndValues []any) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}
