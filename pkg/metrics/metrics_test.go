package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_CountsOutcomes(t *testing.T) {
	c := NewCollector()

	c.PostsClaimed(3)
	c.TargetOutcome("instagram", "failed")
	c.TargetOutcome("instagram", "failed")
	c.TargetOutcome("facebook", "published")
	c.PostFinalized("completed")
	c.RunFinished(time.Second, errors.New("boom"))

	assert.Equal(t, float64(3), testutil.ToFloat64(c.postsClaimed))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.targetOutcomes.WithLabelValues("instagram", "failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.targetOutcomes.WithLabelValues("facebook", "published")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.postsFinalized.WithLabelValues("completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.runErrors))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.PostsClaimed(1)
		c.TargetOutcome("facebook", "published")
		c.PollAttempts("instagram", 2)
		c.RunFinished(time.Second, nil)
	})
}
