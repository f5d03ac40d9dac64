package usecase

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/AzielCF/az-publish/core/config"
	"github.com/AzielCF/az-publish/core/database"
	domainPublish "github.com/AzielCF/az-publish/domains/publish"
	pkgError "github.com/AzielCF/az-publish/pkg/error"
	"github.com/AzielCF/az-publish/publishing/application"
	"github.com/AzielCF/az-publish/publishing/domain/channel"
	"github.com/AzielCF/az-publish/publishing/domain/monitoring"
	"github.com/AzielCF/az-publish/publishing/domain/post"
	"github.com/AzielCF/az-publish/publishing/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", Name: filepath.Join(t.TempDir(), "usecase.db")}, false)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newPublishService(t *testing.T) (domainPublish.IPublishUsecase, *repository.PublishGormRepository) {
	t.Helper()
	repo := repository.NewPublishGormRepository(openTestDB(t), repository.ClaimStrategyAuto)
	require.NoError(t, repo.Init(context.Background()))

	stats := repository.NewMemoryStatsStore()
	recorder := application.NewRecorder(repo, stats, nil)
	engine := application.NewEngine(application.EngineConfig{BatchSize: 5, ServerID: "node-1"}, application.EngineDeps{
		Repo:       repo,
		Media:      application.PassthroughResolver{},
		Dispatcher: application.NewDispatcher(repo, channel.Publishers{}, recorder, time.Second, 1),
		Recorder:   recorder,
		Stats:      stats,
	})
	return NewPublishService(engine, repo, stats), repo
}

func TestPublishService_RunValidatesBatchSize(t *testing.T) {
	svc, _ := newPublishService(t)

	_, err := svc.Run(context.Background(), domainPublish.RunRequest{BatchSize: 501})
	var vErr pkgError.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestPublishService_RunWithoutEngine(t *testing.T) {
	svc := NewPublishService(nil, nil, nil)

	_, err := svc.Run(context.Background(), domainPublish.RunRequest{})
	var unavailable pkgError.ServiceUnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestPublishService_RunAndStats(t *testing.T) {
	svc, repo := newPublishService(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.CreatePost(ctx, post.Post{ID: id, OwnerID: "o", Content: id, ScheduledAt: time.Now().Add(-time.Minute)}, nil))
	}

	res, err := svc.Run(ctx, domainPublish.RunRequest{BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Claimed)
	assert.Equal(t, 2, res.Completed)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Posts[post.StatusCompleted])
	assert.Equal(t, int64(1), stats.Posts[post.StatusScheduled])
	assert.Equal(t, int64(2), stats.Counters[monitoring.StatPostsCompleted])
	require.Len(t, stats.LastRuns, 1)
	assert.Equal(t, "node-1", stats.LastRuns[0].ServerID)
}

func TestPublishService_GetPost(t *testing.T) {
	svc, repo := newPublishService(t)
	ctx := context.Background()

	_, err := svc.GetPost(ctx, "missing")
	var notFound pkgError.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	require.NoError(t, repo.CreatePost(ctx, post.Post{ID: "p1", OwnerID: "o", Content: "x", ScheduledAt: time.Now().Add(-time.Minute)},
		[]post.Target{{ID: "t1", Channel: channel.KindFacebook, DestinationID: "page-1"}}))

	_, err = svc.Run(ctx, domainPublish.RunRequest{})
	require.NoError(t, err)

	detail, err := svc.GetPost(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, post.StatusFailed, detail.Post.Status)
	require.Len(t, detail.Targets, 1)
	assert.Contains(t, detail.Targets[0].ErrorMessage, "no publisher registered")
	assert.Len(t, detail.Events, 1)
}
