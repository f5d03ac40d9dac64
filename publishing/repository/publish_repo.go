package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/AzielCF/az-publish/publishing/domain/account"
	"github.com/AzielCF/az-publish/publishing/domain/event"
	"github.com/AzielCF/az-publish/publishing/domain/post"
	"github.com/AzielCF/az-publish/publishing/domain/tracking"
)

// ClaimStrategy selects how due posts are taken out of the queue.
type ClaimStrategy string

const (
	// ClaimStrategyAuto uses a single atomic statement where the dialect supports one.
	ClaimStrategyAuto ClaimStrategy = "auto"
	// ClaimStrategyConditional selects candidates and flips them one by one.
	ClaimStrategyConditional ClaimStrategy = "conditional"
)

// Outcome is the terminal result of one target attempt.
type Outcome struct {
	Target       post.Target
	Status       post.TargetStatus
	RemotePostID string
	ErrorMessage string
	Payload      json.RawMessage
	OccurredAt   time.Time
}

type IPublishRepository interface {
	Init(ctx context.Context) error

	// Claim Queue
	ClaimDuePosts(ctx context.Context, now time.Time, limit int) ([]post.Post, error)

	// Reads used while dispatching
	ListEligibleTargets(ctx context.Context, postID string) ([]post.Target, error)
	ListAccounts(ctx context.Context, ownerID string) ([]account.ConnectedAccount, error)
	GetTrackingLink(ctx context.Context, postID string) (tracking.Link, bool, error)

	// Status transitions
	MarkTargetProcessing(ctx context.Context, targetID string) (bool, error)
	RecordOutcome(ctx context.Context, outcome Outcome) (event.PublishEvent, error)
	FinalizePost(ctx context.Context, postID string, status post.Status) (bool, error)

	// Authoring and inspection
	CreatePost(ctx context.Context, p post.Post, targets []post.Target) error
	GetPost(ctx context.Context, id string) (post.Post, error)
	ListTargets(ctx context.Context, postID string) ([]post.Target, error)
	ListEvents(ctx context.Context, postID string) ([]event.PublishEvent, error)
	CreateAccount(ctx context.Context, acc account.ConnectedAccount) error
	CreateTrackingLink(ctx context.Context, link tracking.Link) error
	CountPostsByStatus(ctx context.Context) (map[post.Status]int64, error)
}
