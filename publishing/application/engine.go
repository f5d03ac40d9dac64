package application

import (
	"context"
	"errors"
	"time"

	"github.com/AzielCF/az-publish/pkg/metrics"
	"github.com/AzielCF/az-publish/publishing/domain/monitoring"
	"github.com/AzielCF/az-publish/publishing/domain/post"
	"github.com/AzielCF/az-publish/publishing/repository"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// RunResult summarizes one invocation.
type RunResult struct {
	Claimed          int           `json:"claimed"`
	Processed        int           `json:"processed"`
	Completed        int           `json:"completed"`
	Failed           int           `json:"failed"`
	TargetsPublished int           `json:"targets_published"`
	TargetsFailed    int           `json:"targets_failed"`
	Duration         time.Duration `json:"duration_ns"`
	Interrupted      bool          `json:"interrupted"`
}

type EngineConfig struct {
	BatchSize       int
	RedirectBaseURL string
	ServerID        string
}

// Engine runs the claim, prepare, dispatch and finalize steps. It keeps no state
// between invocations.
type Engine struct {
	cfg        EngineConfig
	repo       repository.IPublishRepository
	queue      *ClaimQueue
	media      MediaResolver
	dispatcher *Dispatcher
	recorder   *Recorder
	stats      monitoring.StatsStore
	metrics    *metrics.Collector
}

type EngineDeps struct {
	Repo       repository.IPublishRepository
	Media      MediaResolver
	Dispatcher *Dispatcher
	Recorder   *Recorder
	Stats      monitoring.StatsStore
	Metrics    *metrics.Collector
}

func NewEngine(cfg EngineConfig, deps EngineDeps) *Engine {
	return &Engine{
		cfg:        cfg,
		repo:       deps.Repo,
		queue:      NewClaimQueue(deps.Repo, cfg.BatchSize),
		media:      deps.Media,
		dispatcher: deps.Dispatcher,
		recorder:   deps.Recorder,
		stats:      deps.Stats,
		metrics:    deps.Metrics,
	}
}

// Run processes one batch with the configured size.
func (e *Engine) Run(ctx context.Context) (RunResult, error) {
	return e.RunBatch(ctx, 0)
}

// RunBatch claims up to limit due posts and processes them one after another. Claimed
// posts left when ctx ends stay in processing.
func (e *Engine) RunBatch(ctx context.Context, limit int) (RunResult, error) {
	started := time.Now()
	var res RunResult

	posts, err := e.queue.Next(ctx, limit)
	if err != nil {
		res.Duration = time.Since(started)
		e.finishRun(ctx, started, res, err)
		return res, err
	}
	res.Claimed = len(posts)
	e.metrics.PostsClaimed(len(posts))
	if e.stats != nil && len(posts) > 0 {
		_ = e.stats.IncrementStatBy(ctx, monitoring.StatPostsClaimed, int64(len(posts)))
	}

	for i, p := range posts {
		if ctx.Err() != nil {
			res.Interrupted = true
			logrus.WithFields(logrus.Fields{
				"remaining": len(posts) - i,
			}).Warn("[ENGINE] Run cancelled, remaining claimed posts stay processing")
			break
		}
		e.processPost(ctx, p, &res)
	}

	res.Duration = time.Since(started)
	e.finishRun(ctx, started, res, nil)
	return res, nil
}

func (e *Engine) processPost(ctx context.Context, p post.Post, res *RunResult) {
	log := logrus.WithFields(logrus.Fields{
		"post_id":      p.ID,
		"scheduled_at": p.ScheduledAt,
	})
	log.Debug("[ENGINE] Processing post")

	payload := e.preparePayload(ctx, p)

	outcomes, err := e.dispatcher.Dispatch(ctx, p, payload)
	for _, o := range outcomes {
		switch o {
		case post.TargetPublished:
			res.TargetsPublished++
		case post.TargetFailed:
			res.TargetsFailed++
		}
	}
	if errors.Is(err, ErrDispatchIncomplete) {
		log.WithError(err).Error("[ENGINE] Target bookkeeping failed, post stays processing")
		return
	}
	if err != nil {
		// The post stays processing; nothing was attempted.
		log.WithError(err).Error("[ENGINE] Dispatch failed before any target was attempted")
		return
	}
	if ctx.Err() != nil {
		res.Interrupted = true
		log.Warn("[ENGINE] Run cancelled during dispatch, post stays processing")
		return
	}

	status, err := e.recorder.FinalizePost(ctx, p, outcomes)
	if err != nil {
		log.WithError(err).Error("[ENGINE] Could not finalize post")
		return
	}
	res.Processed++
	if status == post.StatusCompleted {
		res.Completed++
	} else {
		res.Failed++
	}
}

// preparePayload resolves the first media asset and the tracking link once per post.
func (e *Engine) preparePayload(ctx context.Context, p post.Post) Payload {
	payload := Payload{
		Text:     p.Content,
		MediaURL: resolveFirstMedia(ctx, e.media, p.ID, p.FirstMedia()),
		LinkURL:  p.LinkURL,
	}

	if p.LinkURL == "" || e.cfg.RedirectBaseURL == "" {
		return payload
	}
	link, found, err := e.repo.GetTrackingLink(ctx, p.ID)
	if err != nil {
		logrus.WithError(err).WithField("post_id", p.ID).Warn("[ENGINE] Tracking link lookup failed, using raw link")
		return payload
	}
	if !found {
		return payload
	}

	tracked := link.RedirectURL(e.cfg.RedirectBaseURL)
	if tracked == "" {
		return payload
	}
	payload.Text = RewriteContent(p.Content, p.LinkURL, tracked)
	payload.LinkURL = tracked
	return payload
}

func (e *Engine) finishRun(ctx context.Context, started time.Time, res RunResult, runErr error) {
	e.metrics.RunFinished(res.Duration, runErr)

	fields := logrus.Fields{
		"claimed":   res.Claimed,
		"processed": res.Processed,
		"completed": res.Completed,
		"failed":    res.Failed,
		"took":      res.Duration.Round(time.Millisecond).String(),
	}
	switch {
	case runErr != nil:
		logrus.WithError(runErr).WithFields(fields).Error("[ENGINE] Run aborted")
	case res.Claimed > 0:
		logrus.WithFields(fields).Infof("[ENGINE] Run finished, %s published", humanize.Comma(int64(res.TargetsPublished)))
	default:
		logrus.WithFields(fields).Debug("[ENGINE] Nothing due")
	}

	if e.stats == nil {
		return
	}
	wctx, cancel := writeContext(ctx)
	defer cancel()

	summary := monitoring.RunSummary{
		ServerID:         e.cfg.ServerID,
		StartedAt:        started,
		Duration:         res.Duration,
		Claimed:          res.Claimed,
		Processed:        res.Processed,
		Completed:        res.Completed,
		Failed:           res.Failed,
		TargetsPublished: res.TargetsPublished,
		TargetsFailed:    res.TargetsFailed,
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	}
	_ = e.stats.IncrementStat(wctx, monitoring.StatRuns)
	if err := e.stats.ReportRun(wctx, summary); err != nil {
		logrus.WithError(err).Debug("[ENGINE] Could not report run summary")
	}
}
