package monitoring

import (
	"context"
	"time"
)

const (
	StatPostsClaimed    = "posts_claimed"
	StatPostsCompleted  = "posts_completed"
	StatPostsFailed     = "posts_failed"
	StatTargetPublished = "targets_published"
	StatTargetFailed    = "targets_failed"
	StatRuns            = "runs"
)

// RunSummary is the outcome of one engine invocation on a node.
type RunSummary struct {
	ServerID         string        `json:"server_id"`
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration_ns"`
	Claimed          int           `json:"claimed"`
	Processed        int           `json:"processed"`
	Completed        int           `json:"completed"`
	Failed           int           `json:"failed"`
	TargetsPublished int           `json:"targets_published"`
	TargetsFailed    int           `json:"targets_failed"`
	Error            string        `json:"error,omitempty"`
}

// GlobalStats groups cumulative publish counters.
type GlobalStats struct {
	Counters   map[string]int64 `json:"counters"`
	ByChannel  map[string]int64 `json:"by_channel"`
	LastRuns   []RunSummary     `json:"last_runs"`
	SharedView bool             `json:"shared_view"`
}

// StatsStore keeps outcome counters visible to the REST layer.
type StatsStore interface {
	// IncrementStat bumps a global counter.
	IncrementStat(ctx context.Context, key string) error

	// IncrementStatBy adds n to a global counter.
	IncrementStatBy(ctx context.Context, key string, n int64) error

	// IncrementChannelStat bumps an outcome counter for one channel, e.g. "instagram:failed".
	IncrementChannelStat(ctx context.Context, channel, outcome string) error

	// ReportRun stores the last run summary of a node.
	ReportRun(ctx context.Context, summary RunSummary) error

	GetGlobalStats(ctx context.Context) (GlobalStats, error)
}
