package post

import (
	"time"

	"github.com/AzielCF/az-publish/publishing/domain/channel"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// CanAdvance reports whether a post may move from one status to another.
func CanAdvance(from, to Status) bool {
	switch from {
	case StatusScheduled:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

type Post struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Content     string    `json:"content"`
	MediaPaths  []string  `json:"media_paths,omitempty"`
	LinkURL     string    `json:"link_url,omitempty"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FirstMedia returns the reference of the first attached asset, if any.
func (p Post) FirstMedia() string {
	if len(p.MediaPaths) == 0 {
		return ""
	}
	return p.MediaPaths[0]
}

type TargetStatus string

const (
	TargetScheduled  TargetStatus = "scheduled"
	TargetPending    TargetStatus = "pending"
	TargetProcessing TargetStatus = "processing"
	TargetPublished  TargetStatus = "published"
	TargetFailed     TargetStatus = "failed"
)

// IsEligible is true for targets that still wait for an attempt.
func (s TargetStatus) IsEligible() bool {
	return s == TargetScheduled || s == TargetPending
}

func (s TargetStatus) IsTerminal() bool {
	return s == TargetPublished || s == TargetFailed
}

// CanAdvanceTarget reports whether a target may move from one status to another.
func CanAdvanceTarget(from, to TargetStatus) bool {
	switch {
	case from.IsEligible():
		return to == TargetProcessing
	case from == TargetProcessing:
		return to.IsTerminal()
	default:
		return false
	}
}

// Target is one (post, channel, destination) delivery.
type Target struct {
	ID            string       `json:"id"`
	PostID        string       `json:"post_id"`
	Channel       channel.Kind `json:"channel"`
	DestinationID string       `json:"destination_id"`
	Status        TargetStatus `json:"status"`
	RemotePostID  string       `json:"remote_post_id,omitempty"`
	ErrorMessage  string       `json:"error_message,omitempty"`
	PublishedAt   *time.Time   `json:"published_at,omitempty"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Aggregate derives the final post status from the outcome of each attempted target.
// A post without eligible targets is considered completed.
func Aggregate(outcomes []TargetStatus) Status {
	if len(outcomes) == 0 {
		return StatusCompleted
	}
	for _, o := range outcomes {
		if o == TargetPublished {
			return StatusCompleted
		}
	}
	return StatusFailed
}
