package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AzielCF/az-publish/publishing/domain/account"
	"github.com/AzielCF/az-publish/publishing/domain/channel"
	"github.com/AzielCF/az-publish/publishing/domain/post"
	"github.com/AzielCF/az-publish/publishing/repository"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const DefaultTargetTimeout = 90 * time.Second

// ErrDispatchIncomplete means at least one target status could not be stored, so the
// post cannot be aggregated yet.
var ErrDispatchIncomplete = errors.New("dispatch incomplete")

type targetAttempt int

const (
	attemptSkipped targetAttempt = iota // lost to another worker or run cancelled
	attemptRecorded
	attemptUnrecorded
)

// Payload is the per-post content shared by every target.
type Payload struct {
	Text     string
	MediaURL string
	LinkURL  string
}

// Dispatcher publishes one post to each of its eligible targets.
type Dispatcher struct {
	repo        repository.IPublishRepository
	publishers  channel.Publishers
	recorder    *Recorder
	timeout     time.Duration
	concurrency int
}

func NewDispatcher(repo repository.IPublishRepository, publishers channel.Publishers, recorder *Recorder, timeout time.Duration, concurrency int) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTargetTimeout
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Dispatcher{
		repo:        repo,
		publishers:  publishers,
		recorder:    recorder,
		timeout:     timeout,
		concurrency: concurrency,
	}
}

// Dispatch attempts every eligible target and returns the terminal status of each
// recorded one. Targets lost to another worker are not included. When a target status
// could not be stored the recorded outcomes are returned with ErrDispatchIncomplete.
func (d *Dispatcher) Dispatch(ctx context.Context, p post.Post, payload Payload) ([]post.TargetStatus, error) {
	targets, err := d.repo.ListEligibleTargets(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list targets of post %s: %w", p.ID, err)
	}
	if len(targets) == 0 {
		logrus.WithField("post_id", p.ID).Info("[DISPATCH] Post has no eligible targets")
		return nil, nil
	}

	accounts, err := d.repo.ListAccounts(ctx, p.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("list accounts of owner %s: %w", p.OwnerID, err)
	}

	results := make([]post.TargetStatus, len(targets))
	attempts := make([]targetAttempt, len(targets))

	if d.concurrency == 1 {
		for i, t := range targets {
			results[i], attempts[i] = d.runTarget(ctx, t, accounts, payload)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(d.concurrency)
		for i, t := range targets {
			g.Go(func() error {
				results[i], attempts[i] = d.runTarget(ctx, t, accounts, payload)
				return nil
			})
		}
		_ = g.Wait()
	}

	outcomes := make([]post.TargetStatus, 0, len(targets))
	unrecorded := 0
	for i, a := range attempts {
		switch a {
		case attemptRecorded:
			outcomes = append(outcomes, results[i])
		case attemptUnrecorded:
			unrecorded++
		}
	}
	if unrecorded > 0 {
		return outcomes, fmt.Errorf("%w: %d of %d targets of post %s not stored", ErrDispatchIncomplete, unrecorded, len(targets), p.ID)
	}
	return outcomes, nil
}

func (d *Dispatcher) runTarget(ctx context.Context, t post.Target, accounts []account.ConnectedAccount, payload Payload) (post.TargetStatus, targetAttempt) {
	log := logrus.WithFields(logrus.Fields{
		"post_id":   t.PostID,
		"target_id": t.ID,
		"channel":   t.Channel,
	})

	if ctx.Err() != nil {
		log.Debug("[DISPATCH] Run cancelled, leaving target untouched")
		return "", attemptSkipped
	}

	wctx, cancel := writeContext(ctx)
	claimed, err := d.repo.MarkTargetProcessing(wctx, t.ID)
	cancel()
	if err != nil {
		log.WithError(err).Error("[DISPATCH] Could not mark target processing")
		return "", attemptUnrecorded
	}
	if !claimed {
		log.Info("[DISPATCH] Target already taken, skipping")
		return "", attemptSkipped
	}
	t.Status = post.TargetProcessing

	res, pubErr := d.publish(ctx, t, accounts, payload)

	status, err := d.recorder.RecordTarget(ctx, t, res, pubErr)
	if err != nil {
		log.WithError(err).Error("[DISPATCH] Outcome not recorded, target stays processing")
		return status, attemptUnrecorded
	}
	return status, attemptRecorded
}

func (d *Dispatcher) publish(ctx context.Context, t post.Target, accounts []account.ConnectedAccount, payload Payload) (res channel.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"target_id": t.ID,
				"panic":     r,
			}).Error("[DISPATCH] Panic while publishing target")
			err = fmt.Errorf("publisher panic: %v", r)
		}
	}()

	publisher, err := d.publishers.For(t.Channel)
	if err != nil {
		return channel.Result{}, err
	}

	acc, ok := account.Match(accounts, t.Channel, t.DestinationID)
	if !ok {
		return channel.Result{}, fmt.Errorf("%w for %s destination %s", channel.ErrAccountNotFound, t.Channel, t.DestinationID)
	}

	tctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	return publisher.Publish(tctx, channel.PublishRequest{
		Channel:     t.Channel,
		Destination: t.DestinationID,
		AccessToken: acc.Credentials.TokenFor(t.DestinationID),
		Text:        payload.Text,
		MediaURL:    payload.MediaURL,
		LinkURL:     payload.LinkURL,
	})
}
