package event

import (
	"encoding/json"
	"time"

	"github.com/AzielCF/az-publish/publishing/domain/channel"
)

type Kind string

const (
	KindPublished Kind = "published"
	KindFailed    Kind = "failed"
)

// PublishEvent records one publish attempt. Events are never updated.
type PublishEvent struct {
	ID           string          `json:"id"`
	PostID       string          `json:"post_id"`
	TargetID     string          `json:"target_id"`
	Channel      channel.Kind    `json:"channel"`
	Kind         Kind            `json:"kind"`
	RemotePostID string          `json:"remote_post_id,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	OccurredAt   time.Time       `json:"occurred_at"`
	CreatedAt    time.Time       `json:"created_at"`
}
