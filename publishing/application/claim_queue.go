package application

import (
	"context"
	"time"

	"github.com/AzielCF/az-publish/publishing/domain/post"
	"github.com/AzielCF/az-publish/publishing/repository"
	"github.com/sirupsen/logrus"
)

const DefaultBatchSize = 20

// ClaimQueue hands out due posts, each to exactly one caller.
type ClaimQueue struct {
	repo      repository.IPublishRepository
	batchSize int
	now       func() time.Time
}

func NewClaimQueue(repo repository.IPublishRepository, batchSize int) *ClaimQueue {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &ClaimQueue{repo: repo, batchSize: batchSize, now: time.Now}
}

// Next claims up to limit due posts. A non-positive limit uses the configured batch size.
func (q *ClaimQueue) Next(ctx context.Context, limit int) ([]post.Post, error) {
	if limit <= 0 {
		limit = q.batchSize
	}
	posts, err := q.repo.ClaimDuePosts(ctx, q.now(), limit)
	if err != nil {
		return nil, err
	}
	if len(posts) > 0 {
		logrus.WithFields(logrus.Fields{
			"claimed": len(posts),
			"limit":   limit,
		}).Info("[CLAIM] Claimed due posts")
	}
	return posts, nil
}
