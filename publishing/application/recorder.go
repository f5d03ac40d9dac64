package application

import (
	"context"
	"time"

	"github.com/AzielCF/az-publish/pkg/metrics"
	"github.com/AzielCF/az-publish/publishing/domain/channel"
	"github.com/AzielCF/az-publish/publishing/domain/monitoring"
	"github.com/AzielCF/az-publish/publishing/domain/post"
	"github.com/AzielCF/az-publish/publishing/repository"
	"github.com/sirupsen/logrus"
)

const recordTimeout = 10 * time.Second

// Recorder persists target outcomes, post final status and the derived counters.
type Recorder struct {
	repo    repository.IPublishRepository
	stats   monitoring.StatsStore
	metrics *metrics.Collector
	now     func() time.Time
}

func NewRecorder(repo repository.IPublishRepository, stats monitoring.StatsStore, m *metrics.Collector) *Recorder {
	return &Recorder{repo: repo, stats: stats, metrics: m, now: time.Now}
}

// writeContext outlives the per-target deadline so a timed out attempt is still recorded.
func writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
}

// RecordTarget stores the result of one attempt and returns the terminal status it implies.
func (r *Recorder) RecordTarget(ctx context.Context, t post.Target, res channel.Result, pubErr error) (post.TargetStatus, error) {
	wctx, cancel := writeContext(ctx)
	defer cancel()

	outcome := repository.Outcome{
		Target:     t,
		OccurredAt: r.now(),
	}
	if pubErr == nil {
		outcome.Status = post.TargetPublished
		outcome.RemotePostID = res.RemoteID
		outcome.Payload = res.Raw
	} else {
		outcome.Status = post.TargetFailed
		outcome.ErrorMessage = channel.ErrorMessage(pubErr)
		outcome.Payload = channel.ErrorPayload(pubErr)
	}

	log := logrus.WithFields(logrus.Fields{
		"post_id":   t.PostID,
		"target_id": t.ID,
		"channel":   t.Channel,
	})

	if _, err := r.repo.RecordOutcome(wctx, outcome); err != nil {
		log.WithError(err).Error("[RECORDER] Failed to persist target outcome")
		return outcome.Status, err
	}

	if outcome.Status == post.TargetPublished {
		log.WithField("remote_id", outcome.RemotePostID).Info("[RECORDER] Target published")
	} else {
		log.WithField("error", outcome.ErrorMessage).Warn("[RECORDER] Target failed")
	}

	r.metrics.TargetOutcome(string(t.Channel), string(outcome.Status))
	if r.stats != nil {
		stat := monitoring.StatTargetFailed
		if outcome.Status == post.TargetPublished {
			stat = monitoring.StatTargetPublished
		}
		if err := r.stats.IncrementStat(wctx, stat); err != nil {
			log.WithError(err).Debug("[RECORDER] Stats store unavailable")
		}
		_ = r.stats.IncrementChannelStat(wctx, string(t.Channel), string(outcome.Status))
	}

	return outcome.Status, nil
}

// FinalizePost applies the aggregate rule and moves the post out of processing.
func (r *Recorder) FinalizePost(ctx context.Context, p post.Post, outcomes []post.TargetStatus) (post.Status, error) {
	wctx, cancel := writeContext(ctx)
	defer cancel()

	status := post.Aggregate(outcomes)
	moved, err := r.repo.FinalizePost(wctx, p.ID, status)
	if err != nil {
		return status, err
	}

	log := logrus.WithFields(logrus.Fields{
		"post_id": p.ID,
		"status":  status,
		"targets": len(outcomes),
	})
	if !moved {
		log.Warn("[RECORDER] Post was no longer processing, final status not applied")
		return status, nil
	}
	log.Info("[RECORDER] Post finalized")

	r.metrics.PostFinalized(string(status))
	if r.stats != nil {
		stat := monitoring.StatPostsFailed
		if status == post.StatusCompleted {
			stat = monitoring.StatPostsCompleted
		}
		_ = r.stats.IncrementStat(wctx, stat)
	}
	return status, nil
}
