package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/AzielCF/az-publish/core/config"
	"github.com/AzielCF/az-publish/core/database"
	"github.com/AzielCF/az-publish/pkg/crypto"
	"github.com/AzielCF/az-publish/publishing/domain/account"
	"github.com/AzielCF/az-publish/publishing/domain/channel"
	"github.com/AzielCF/az-publish/publishing/domain/common"
	"github.com/AzielCF/az-publish/publishing/domain/event"
	"github.com/AzielCF/az-publish/publishing/domain/post"
	"github.com/AzielCF/az-publish/publishing/domain/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openSQLite(t *testing.T, path string) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", Name: path}, false)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestRepo(t *testing.T, strategy ClaimStrategy) (*PublishGormRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "publish.db")
	repo := NewPublishGormRepository(openSQLite(t, path), strategy)
	require.NoError(t, repo.Init(context.Background()))
	return repo, path
}

func seedPost(t *testing.T, repo *PublishGormRepository, id string, at time.Time, targets ...post.Target) post.Post {
	t.Helper()
	p := post.Post{
		ID:          id,
		OwnerID:     "owner-1",
		Content:     "content of " + id,
		ScheduledAt: at,
	}
	require.NoError(t, repo.CreatePost(context.Background(), p, targets))
	got, err := repo.GetPost(context.Background(), id)
	require.NoError(t, err)
	return got
}

func ids(posts []post.Post) []string {
	res := make([]string, len(posts))
	for i, p := range posts {
		res[i] = p.ID
	}
	return res
}

func TestClaimDuePosts_OrderLimitAndStatus(t *testing.T) {
	for _, strategy := range []ClaimStrategy{ClaimStrategyAuto, ClaimStrategyConditional} {
		t.Run(string(strategy), func(t *testing.T) {
			repo, _ := newTestRepo(t, strategy)
			ctx := context.Background()
			now := time.Now().UTC()

			seedPost(t, repo, "p-late", now.Add(-1*time.Minute))
			seedPost(t, repo, "p-early", now.Add(-3*time.Minute))
			seedPost(t, repo, "p-mid", now.Add(-2*time.Minute))
			seedPost(t, repo, "p-future", now.Add(time.Hour))

			first, err := repo.ClaimDuePosts(ctx, now, 2)
			require.NoError(t, err)
			assert.Equal(t, []string{"p-early", "p-mid"}, ids(first))
			for _, p := range first {
				assert.Equal(t, post.StatusProcessing, p.Status)
			}

			second, err := repo.ClaimDuePosts(ctx, now, 2)
			require.NoError(t, err)
			assert.Equal(t, []string{"p-late"}, ids(second))

			third, err := repo.ClaimDuePosts(ctx, now, 2)
			require.NoError(t, err)
			assert.Empty(t, third)

			future, err := repo.GetPost(ctx, "p-future")
			require.NoError(t, err)
			assert.Equal(t, post.StatusScheduled, future.Status)
		})
	}
}

func TestClaimDuePosts_ConcurrentClaimersNeverShare(t *testing.T) {
	repo, path := newTestRepo(t, ClaimStrategyAuto)
	now := time.Now().UTC()
	const total = 40
	for i := 0; i < total; i++ {
		seedPost(t, repo, fmt.Sprintf("post-%02d", i), now.Add(-time.Duration(total-i)*time.Second))
	}

	// Independent connections behave like separate engine processes.
	workers := []*PublishGormRepository{
		repo,
		NewPublishGormRepository(openSQLite(t, path), ClaimStrategyAuto),
		NewPublishGormRepository(openSQLite(t, path), ClaimStrategyAuto),
		NewPublishGormRepository(openSQLite(t, path), ClaimStrategyConditional),
	}

	var (
		mu      sync.Mutex
		claimed []string
		wg      sync.WaitGroup
	)
	for _, w := range workers {
		wg.Add(1)
		go func(w *PublishGormRepository) {
			defer wg.Done()
			for {
				batch, err := w.ClaimDuePosts(context.Background(), now, 3)
				if !assert.NoError(t, err) || len(batch) == 0 {
					return
				}
				mu.Lock()
				claimed = append(claimed, ids(batch)...)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	sort.Strings(claimed)
	assert.Len(t, claimed, total)
	for i := 1; i < len(claimed); i++ {
		assert.NotEqual(t, claimed[i-1], claimed[i], "post claimed twice")
	}
}

func TestClaimDuePosts_NonPositiveLimit(t *testing.T) {
	repo, _ := newTestRepo(t, ClaimStrategyAuto)
	seedPost(t, repo, "p1", time.Now().Add(-time.Minute))

	res, err := repo.ClaimDuePosts(context.Background(), time.Now(), 0)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestTargets_TransitionsAndEvents(t *testing.T) {
	repo, _ := newTestRepo(t, ClaimStrategyAuto)
	ctx := context.Background()

	p := seedPost(t, repo, "p1", time.Now().Add(-time.Minute),
		post.Target{ID: "t1", Channel: channel.KindFacebook, DestinationID: "page-1"},
		post.Target{ID: "t2", Channel: channel.KindInstagram, DestinationID: "ig-1", Status: post.TargetPending},
		post.Target{ID: "t3", Channel: channel.KindLinkedIn, DestinationID: "me", Status: post.TargetPublished},
	)

	eligible, err := repo.ListEligibleTargets(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, eligible, 2)
	assert.Equal(t, "t1", eligible[0].ID)
	assert.Equal(t, "t2", eligible[1].ID)

	ok, err := repo.MarkTargetProcessing(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkTargetProcessing(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, ok, "second mark must lose")

	ok, err = repo.MarkTargetProcessing(ctx, "t3")
	require.NoError(t, err)
	assert.False(t, ok, "terminal targets never go back to processing")

	ev, err := repo.RecordOutcome(ctx, Outcome{
		Target:       eligible[0],
		Status:       post.TargetPublished,
		RemotePostID: "page_1_9",
		Payload:      []byte(`{"id":"page_1_9"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, event.KindPublished, ev.Kind)

	_, err = repo.RecordOutcome(ctx, Outcome{Target: eligible[0], Status: post.TargetFailed, ErrorMessage: "late"})
	assert.ErrorIs(t, err, common.ErrStaleTransition)

	_, err = repo.RecordOutcome(ctx, Outcome{Target: eligible[1], Status: post.TargetScheduled})
	assert.ErrorIs(t, err, common.ErrInvalidStatus)

	targets, err := repo.ListTargets(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, post.TargetPublished, targets[0].Status)
	assert.Equal(t, "page_1_9", targets[0].RemotePostID)
	assert.NotNil(t, targets[0].PublishedAt)
	assert.Equal(t, post.TargetPending, targets[1].Status)

	events, err := repo.ListEvents(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "t1", events[0].TargetID)
	assert.Equal(t, channel.KindFacebook, events[0].Channel)
	assert.JSONEq(t, `{"id":"page_1_9"}`, string(events[0].Payload))
}

func TestFinalizePost_ForwardOnly(t *testing.T) {
	repo, _ := newTestRepo(t, ClaimStrategyAuto)
	ctx := context.Background()
	now := time.Now().UTC()
	seedPost(t, repo, "p1", now.Add(-time.Minute))

	moved, err := repo.FinalizePost(ctx, "p1", post.StatusCompleted)
	require.NoError(t, err)
	assert.False(t, moved, "scheduled posts cannot be finalized")

	_, err = repo.ClaimDuePosts(ctx, now, 10)
	require.NoError(t, err)

	_, err = repo.FinalizePost(ctx, "p1", post.StatusScheduled)
	assert.ErrorIs(t, err, common.ErrInvalidStatus)

	moved, err = repo.FinalizePost(ctx, "p1", post.StatusCompleted)
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = repo.FinalizePost(ctx, "p1", post.StatusFailed)
	require.NoError(t, err)
	assert.False(t, moved)

	got, err := repo.GetPost(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, post.StatusCompleted, got.Status)

	counts, err := repo.CountPostsByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[post.StatusCompleted])
}

func TestAccounts_TokensEncryptedAtRest(t *testing.T) {
	crypto.SetEncryptionKey("repo-test-secret")
	t.Cleanup(func() { crypto.SetEncryptionKey("") })

	repo, _ := newTestRepo(t, ClaimStrategyAuto)
	ctx := context.Background()

	require.NoError(t, repo.CreateAccount(ctx, account.ConnectedAccount{
		ID:             "acc-1",
		OwnerID:        "owner-1",
		Channel:        channel.KindFacebook,
		DisplayName:    "Page",
		DestinationIDs: []string{"page-1", "page-2"},
		Credentials: account.Credentials{
			AccessToken:       "user-token",
			DestinationTokens: map[string]string{"page-1": "page-token"},
		},
	}))

	var raw accountModel
	require.NoError(t, repo.db.First(&raw, "id = ?", "acc-1").Error)
	assert.NotContains(t, raw.AccessToken, "user-token")
	assert.NotContains(t, raw.DestinationTokens.String, "page-token")

	accounts, err := repo.ListAccounts(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, []string{"page-1", "page-2"}, accounts[0].DestinationIDs)
	assert.Equal(t, "page-token", accounts[0].Credentials.TokenFor("page-1"))
	assert.Equal(t, "user-token", accounts[0].Credentials.TokenFor("page-2"))
}

func TestTrackingLink_Lookup(t *testing.T) {
	repo, _ := newTestRepo(t, ClaimStrategyAuto)
	ctx := context.Background()

	_, found, err := repo.GetTrackingLink(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.CreateTrackingLink(ctx, tracking.Link{PostID: "p1", Slug: "abc", DestinationURL: "https://example.com"}))

	link, found, err := repo.GetTrackingLink(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "abc", link.Slug)
}

type errorRecordingLogger struct {
	logger.Interface
	mu   sync.Mutex
	errs []error
}

func (l *errorRecordingLogger) LogMode(logger.LogLevel) logger.Interface { return l }

func (l *errorRecordingLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}

func TestTrackingLink_MissingIsNotLoggedAsError(t *testing.T) {
	base, _ := newTestRepo(t, ClaimStrategyAuto)
	rec := &errorRecordingLogger{Interface: logger.Discard}
	repo := NewPublishGormRepository(base.db.Session(&gorm.Session{Logger: rec}), ClaimStrategyAuto)

	_, found, err := repo.GetTrackingLink(context.Background(), "no-link")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, rec.errs)
}

func TestGetPost_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t, ClaimStrategyAuto)

	_, err := repo.GetPost(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrPostNotFound)
}
