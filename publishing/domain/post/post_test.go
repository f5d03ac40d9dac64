package post

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanAdvance(t *testing.T) {
	assert.True(t, CanAdvance(StatusScheduled, StatusProcessing))
	assert.True(t, CanAdvance(StatusProcessing, StatusCompleted))
	assert.True(t, CanAdvance(StatusProcessing, StatusFailed))

	assert.False(t, CanAdvance(StatusScheduled, StatusCompleted), "processing cannot be skipped")
	assert.False(t, CanAdvance(StatusProcessing, StatusScheduled))
	assert.False(t, CanAdvance(StatusCompleted, StatusFailed))
	assert.False(t, CanAdvance(StatusFailed, StatusProcessing))
}

func TestCanAdvanceTarget(t *testing.T) {
	for _, from := range []TargetStatus{TargetScheduled, TargetPending} {
		assert.True(t, CanAdvanceTarget(from, TargetProcessing))
		assert.False(t, CanAdvanceTarget(from, TargetPublished))
	}
	assert.True(t, CanAdvanceTarget(TargetProcessing, TargetPublished))
	assert.True(t, CanAdvanceTarget(TargetProcessing, TargetFailed))
	assert.False(t, CanAdvanceTarget(TargetPublished, TargetProcessing))
	assert.False(t, CanAdvanceTarget(TargetFailed, TargetPublished))
}

func TestAggregate(t *testing.T) {
	assert.Equal(t, StatusCompleted, Aggregate(nil))
	assert.Equal(t, StatusCompleted, Aggregate([]TargetStatus{TargetFailed, TargetPublished}))
	assert.Equal(t, StatusCompleted, Aggregate([]TargetStatus{TargetPublished}))
	assert.Equal(t, StatusFailed, Aggregate([]TargetStatus{TargetFailed, TargetFailed}))
}

func TestFirstMedia(t *testing.T) {
	assert.Empty(t, Post{}.FirstMedia())
	assert.Equal(t, "a.jpg", Post{MediaPaths: []string{"a.jpg", "b.jpg"}}.FirstMedia())
}
