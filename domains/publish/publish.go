package publish

import (
	"context"

	"github.com/AzielCF/az-publish/publishing/application"
	"github.com/AzielCF/az-publish/publishing/domain/event"
	"github.com/AzielCF/az-publish/publishing/domain/monitoring"
	"github.com/AzielCF/az-publish/publishing/domain/post"
)

type IPublishUsecase interface {
	Run(ctx context.Context, request RunRequest) (application.RunResult, error)
	Stats(ctx context.Context) (StatsResponse, error)
	GetPost(ctx context.Context, postID string) (PostDetail, error)
}

// RunRequest triggers one engine invocation. BatchSize 0 uses the configured size.
type RunRequest struct {
	BatchSize int `json:"batch_size" form:"batch_size"`
}

type StatsResponse struct {
	Posts map[post.Status]int64 `json:"posts"`
	monitoring.GlobalStats
}

// PostDetail is a post with its targets and the audit trail of every attempt.
type PostDetail struct {
	Post    post.Post            `json:"post"`
	Targets []post.Target        `json:"targets"`
	Events  []event.PublishEvent `json:"events"`
}
