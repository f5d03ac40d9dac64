package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AzielCF/az-publish/pkg/crypto"
	"github.com/AzielCF/az-publish/publishing/domain/account"
	"github.com/AzielCF/az-publish/publishing/domain/channel"
	"github.com/AzielCF/az-publish/publishing/domain/common"
	"github.com/AzielCF/az-publish/publishing/domain/event"
	"github.com/AzielCF/az-publish/publishing/domain/post"
	"github.com/AzielCF/az-publish/publishing/domain/tracking"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// --- Persistence Models ---

type postModel struct {
	ID          string         `gorm:"primaryKey;column:id"`
	OwnerID     string         `gorm:"column:owner_id;not null;index"`
	Content     string         `gorm:"column:content;type:text;not null"`
	MediaPaths  sql.NullString `gorm:"column:media_paths;type:text"` // JSON
	LinkURL     sql.NullString `gorm:"column:link_url"`
	ScheduledAt time.Time      `gorm:"column:scheduled_at;not null;index:idx_posts_due,priority:2"`
	Status      string         `gorm:"column:status;not null;default:'scheduled';index:idx_posts_due,priority:1"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;not null"`
}

func (postModel) TableName() string { return "posts" }

type targetModel struct {
	ID            string         `gorm:"primaryKey;column:id"`
	PostID        string         `gorm:"column:post_id;not null;index"`
	Channel       string         `gorm:"column:channel;not null"`
	DestinationID string         `gorm:"column:destination_id;not null"`
	Status        string         `gorm:"column:status;not null;default:'scheduled'"`
	RemotePostID  sql.NullString `gorm:"column:remote_post_id"`
	ErrorMessage  sql.NullString `gorm:"column:error_message;type:text"`
	PublishedAt   *time.Time     `gorm:"column:published_at"`
	CreatedAt     time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;not null"`
}

func (targetModel) TableName() string { return "post_targets" }

type accountModel struct {
	ID                string         `gorm:"primaryKey;column:id"`
	OwnerID           string         `gorm:"column:owner_id;not null;index"`
	Channel           string         `gorm:"column:channel;not null"`
	DisplayName       sql.NullString `gorm:"column:display_name"`
	DestinationIDs    sql.NullString `gorm:"column:destination_ids;type:text"` // JSON
	AccessToken       string         `gorm:"column:access_token;type:text;not null"`
	DestinationTokens sql.NullString `gorm:"column:destination_tokens;type:text"` // encrypted JSON
	CreatedAt         time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;not null"`
}

func (accountModel) TableName() string { return "connected_accounts" }

type trackingLinkModel struct {
	PostID         string    `gorm:"primaryKey;column:post_id"`
	Slug           string    `gorm:"column:slug;not null;uniqueIndex"`
	DestinationURL string    `gorm:"column:destination_url;type:text;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
}

func (trackingLinkModel) TableName() string { return "tracking_links" }

type publishEventModel struct {
	ID           string         `gorm:"primaryKey;column:id"`
	PostID       string         `gorm:"column:post_id;not null;index"`
	TargetID     string         `gorm:"column:target_id;not null;index"`
	Channel      string         `gorm:"column:channel;not null"`
	Kind         string         `gorm:"column:kind;not null"`
	RemotePostID sql.NullString `gorm:"column:remote_post_id"`
	ErrorMessage sql.NullString `gorm:"column:error_message;type:text"`
	Payload      sql.NullString `gorm:"column:payload;type:text"`
	OccurredAt   time.Time      `gorm:"column:occurred_at;not null"`
	CreatedAt    time.Time      `gorm:"column:created_at;not null"`
}

func (publishEventModel) TableName() string { return "publish_events" }

// --- Repository Implementation ---

type PublishGormRepository struct {
	db       *gorm.DB
	strategy ClaimStrategy
}

func NewPublishGormRepository(db *gorm.DB, strategy ClaimStrategy) *PublishGormRepository {
	if strategy == "" {
		strategy = ClaimStrategyAuto
	}
	return &PublishGormRepository{db: db, strategy: strategy}
}

func (r *PublishGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&postModel{},
		&targetModel{},
		&accountModel{},
		&trackingLinkModel{},
		&publishEventModel{},
	)
}

// Claim Queue

const claimPostgresSQL = `WITH due AS (
	SELECT id FROM posts
	WHERE status = ? AND scheduled_at <= ?
	ORDER BY scheduled_at ASC
	LIMIT ?
	FOR UPDATE SKIP LOCKED
)
UPDATE posts SET status = ?, updated_at = ?
FROM due
WHERE posts.id = due.id
RETURNING posts.id`

const claimSQLiteSQL = `UPDATE posts SET status = ?, updated_at = ?
WHERE status = ? AND id IN (
	SELECT id FROM posts
	WHERE status = ? AND scheduled_at <= ?
	ORDER BY scheduled_at ASC
	LIMIT ?
)
RETURNING id`

// ClaimDuePosts moves at most limit due posts from scheduled to processing and returns them
// ordered by scheduled time. A post is returned to at most one caller.
func (r *PublishGormRepository) ClaimDuePosts(ctx context.Context, now time.Time, limit int) ([]post.Post, error) {
	if limit <= 0 {
		return nil, nil
	}
	now = now.UTC()

	if r.strategy == ClaimStrategyConditional {
		return r.claimConditional(ctx, now, limit)
	}

	var query string
	var args []any
	switch r.db.Dialector.Name() {
	case "postgres":
		query = claimPostgresSQL
		args = []any{string(post.StatusScheduled), now, limit, string(post.StatusProcessing), now}
	case "sqlite":
		query = claimSQLiteSQL
		args = []any{string(post.StatusProcessing), now, string(post.StatusScheduled), string(post.StatusScheduled), now, limit}
	default:
		return r.claimConditional(ctx, now, limit)
	}

	var models []postModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := tx.Raw(query, args...).Rows()
		if err != nil {
			return err
		}
		defer rows.Close()

		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		rows.Close()

		if len(ids) == 0 {
			return nil
		}
		return tx.Where("id IN ?", ids).Order("scheduled_at ASC").Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("claim due posts: %w", err)
	}

	return fromPostModels(models)
}

// claimConditional is used when the dialect has no single-statement claim. Between the
// candidate select and each update another claimer may win the row; those rows are skipped.
func (r *PublishGormRepository) claimConditional(ctx context.Context, now time.Time, limit int) ([]post.Post, error) {
	logrus.WithField("dialect", r.db.Dialector.Name()).Debug("[CLAIM] Using conditional claim strategy")

	var candidates []postModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", string(post.StatusScheduled), now).
		Order("scheduled_at ASC").
		Limit(limit).
		Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("select due posts: %w", err)
	}

	claimed := make([]postModel, 0, len(candidates))
	for _, c := range candidates {
		res := r.db.WithContext(ctx).Model(&postModel{}).
			Where("id = ? AND status = ?", c.ID, string(post.StatusScheduled)).
			Updates(map[string]any{"status": string(post.StatusProcessing), "updated_at": now})
		if res.Error != nil {
			return nil, fmt.Errorf("claim post %s: %w", c.ID, res.Error)
		}
		if res.RowsAffected == 1 {
			c.Status = string(post.StatusProcessing)
			c.UpdatedAt = now
			claimed = append(claimed, c)
		}
	}

	return fromPostModels(claimed)
}

// Reads

func (r *PublishGormRepository) ListEligibleTargets(ctx context.Context, postID string) ([]post.Target, error) {
	var models []targetModel
	err := r.db.WithContext(ctx).
		Where("post_id = ? AND status IN ?", postID, []string{string(post.TargetScheduled), string(post.TargetPending)}).
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return fromTargetModels(models), nil
}

func (r *PublishGormRepository) ListTargets(ctx context.Context, postID string) ([]post.Target, error) {
	var models []targetModel
	if err := r.db.WithContext(ctx).Where("post_id = ?", postID).Order("created_at ASC, id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return fromTargetModels(models), nil
}

func (r *PublishGormRepository) ListAccounts(ctx context.Context, ownerID string) ([]account.ConnectedAccount, error) {
	var models []accountModel
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Find(&models).Error; err != nil {
		return nil, err
	}

	res := make([]account.ConnectedAccount, 0, len(models))
	for _, m := range models {
		acc, err := fromAccountModel(m)
		if err != nil {
			// One unreadable account must not hide the others from the dispatcher.
			logrus.WithError(err).WithField("account_id", m.ID).Warn("[REPO] Skipping unreadable connected account")
			continue
		}
		res = append(res, acc)
	}
	return res, nil
}

func (r *PublishGormRepository) GetTrackingLink(ctx context.Context, postID string) (tracking.Link, bool, error) {
	var m trackingLinkModel
	tx := r.db.WithContext(ctx).Where("post_id = ?", postID).Limit(1).Find(&m)
	if tx.Error != nil {
		return tracking.Link{}, false, tx.Error
	}
	if tx.RowsAffected == 0 {
		return tracking.Link{}, false, nil
	}
	return tracking.Link{PostID: m.PostID, Slug: m.Slug, DestinationURL: m.DestinationURL}, true, nil
}

func (r *PublishGormRepository) GetPost(ctx context.Context, id string) (post.Post, error) {
	var m postModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return post.Post{}, common.ErrPostNotFound
		}
		return post.Post{}, err
	}
	return fromPostModel(m)
}

func (r *PublishGormRepository) ListEvents(ctx context.Context, postID string) ([]event.PublishEvent, error) {
	var models []publishEventModel
	if err := r.db.WithContext(ctx).Where("post_id = ?", postID).Order("occurred_at ASC, id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]event.PublishEvent, len(models))
	for i, m := range models {
		res[i] = fromEventModel(m)
	}
	return res, nil
}

func (r *PublishGormRepository) CountPostsByStatus(ctx context.Context) (map[post.Status]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	if err := r.db.WithContext(ctx).Model(&postModel{}).Select("status, COUNT(*) AS total").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	res := make(map[post.Status]int64, len(rows))
	for _, row := range rows {
		res[post.Status(row.Status)] = row.Total
	}
	return res, nil
}

// Status transitions

// MarkTargetProcessing moves an eligible target to processing. It returns false when the
// target was no longer eligible.
func (r *PublishGormRepository) MarkTargetProcessing(ctx context.Context, targetID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&targetModel{}).
		Where("id = ? AND status IN ?", targetID, []string{string(post.TargetScheduled), string(post.TargetPending)}).
		Updates(map[string]any{"status": string(post.TargetProcessing), "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RecordOutcome moves the target to its terminal status and appends the matching event
// in one transaction.
func (r *PublishGormRepository) RecordOutcome(ctx context.Context, o Outcome) (event.PublishEvent, error) {
	if !post.CanAdvanceTarget(post.TargetProcessing, o.Status) {
		return event.PublishEvent{}, fmt.Errorf("%w: target processing -> %s", common.ErrInvalidStatus, o.Status)
	}

	occurred := o.OccurredAt.UTC()
	if o.OccurredAt.IsZero() {
		occurred = time.Now().UTC()
	}

	updates := map[string]any{
		"status":     string(o.Status),
		"updated_at": occurred,
	}
	kind := event.KindFailed
	if o.Status == post.TargetPublished {
		kind = event.KindPublished
		updates["remote_post_id"] = nullString(o.RemotePostID)
		updates["published_at"] = occurred
		updates["error_message"] = sql.NullString{}
	} else {
		updates["error_message"] = nullString(o.ErrorMessage)
	}

	ev := event.PublishEvent{
		ID:           uuid.NewString(),
		PostID:       o.Target.PostID,
		TargetID:     o.Target.ID,
		Channel:      o.Target.Channel,
		Kind:         kind,
		RemotePostID: o.RemotePostID,
		ErrorMessage: o.ErrorMessage,
		Payload:      o.Payload,
		OccurredAt:   occurred,
		CreatedAt:    time.Now().UTC(),
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&targetModel{}).
			Where("id = ? AND status = ?", o.Target.ID, string(post.TargetProcessing)).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: target %s is not processing", common.ErrStaleTransition, o.Target.ID)
		}
		model := toEventModel(ev)
		return tx.Create(&model).Error
	})
	if err != nil {
		return event.PublishEvent{}, err
	}
	return ev, nil
}

// FinalizePost moves a processing post to its final status. It returns false when the
// post was not processing anymore.
func (r *PublishGormRepository) FinalizePost(ctx context.Context, postID string, status post.Status) (bool, error) {
	if !post.CanAdvance(post.StatusProcessing, status) {
		return false, fmt.Errorf("%w: post processing -> %s", common.ErrInvalidStatus, status)
	}
	res := r.db.WithContext(ctx).Model(&postModel{}).
		Where("id = ? AND status = ?", postID, string(post.StatusProcessing)).
		Updates(map[string]any{"status": string(status), "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Authoring

func (r *PublishGormRepository) CreatePost(ctx context.Context, p post.Post, targets []post.Target) error {
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = post.StatusScheduled
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	pm, err := toPostModel(p)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&pm).Error; err != nil {
			return err
		}
		for i, t := range targets {
			t.PostID = p.ID
			if t.ID == "" {
				t.ID = uuid.NewString()
			}
			if t.Status == "" {
				t.Status = post.TargetScheduled
			}
			tm := toTargetModel(t)
			// Keep insertion order stable for dispatch.
			tm.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
			tm.UpdatedAt = now
			if err := tx.Create(&tm).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PublishGormRepository) CreateAccount(ctx context.Context, acc account.ConnectedAccount) error {
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	m, err := toAccountModel(acc)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *PublishGormRepository) CreateTrackingLink(ctx context.Context, link tracking.Link) error {
	m := trackingLinkModel{
		PostID:         link.PostID,
		Slug:           link.Slug,
		DestinationURL: link.DestinationURL,
		CreatedAt:      time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&m).Error
}

// --- Mappers ---

func toPostModel(p post.Post) (postModel, error) {
	media := sql.NullString{}
	if len(p.MediaPaths) > 0 {
		raw, err := json.Marshal(p.MediaPaths)
		if err != nil {
			return postModel{}, err
		}
		media = sql.NullString{String: string(raw), Valid: true}
	}
	return postModel{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Content:     p.Content,
		MediaPaths:  media,
		LinkURL:     nullString(p.LinkURL),
		ScheduledAt: p.ScheduledAt.UTC(),
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}, nil
}

func fromPostModel(m postModel) (post.Post, error) {
	var media []string
	if raw := nullStringValue(m.MediaPaths); raw != "" {
		if err := json.Unmarshal([]byte(raw), &media); err != nil {
			return post.Post{}, fmt.Errorf("decode media paths of post %s: %w", m.ID, err)
		}
	}
	return post.Post{
		ID:          m.ID,
		OwnerID:     m.OwnerID,
		Content:     m.Content,
		MediaPaths:  media,
		LinkURL:     nullStringValue(m.LinkURL),
		ScheduledAt: m.ScheduledAt,
		Status:      post.Status(m.Status),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

func fromPostModels(models []postModel) ([]post.Post, error) {
	res := make([]post.Post, 0, len(models))
	for _, m := range models {
		p, err := fromPostModel(m)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}

func toTargetModel(t post.Target) targetModel {
	return targetModel{
		ID:            t.ID,
		PostID:        t.PostID,
		Channel:       string(t.Channel),
		DestinationID: t.DestinationID,
		Status:        string(t.Status),
		RemotePostID:  nullString(t.RemotePostID),
		ErrorMessage:  nullString(t.ErrorMessage),
		PublishedAt:   t.PublishedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func fromTargetModels(models []targetModel) []post.Target {
	res := make([]post.Target, len(models))
	for i, m := range models {
		res[i] = post.Target{
			ID:            m.ID,
			PostID:        m.PostID,
			Channel:       channel.Kind(m.Channel),
			DestinationID: m.DestinationID,
			Status:        post.TargetStatus(m.Status),
			RemotePostID:  nullStringValue(m.RemotePostID),
			ErrorMessage:  nullStringValue(m.ErrorMessage),
			PublishedAt:   m.PublishedAt,
			UpdatedAt:     m.UpdatedAt,
		}
	}
	return res
}

func toAccountModel(a account.ConnectedAccount) (accountModel, error) {
	destinations, err := json.Marshal(a.DestinationIDs)
	if err != nil {
		return accountModel{}, err
	}
	token, err := crypto.Encrypt(a.Credentials.AccessToken)
	if err != nil {
		return accountModel{}, fmt.Errorf("encrypt access token: %w", err)
	}
	pageTokens := sql.NullString{}
	if len(a.Credentials.DestinationTokens) > 0 {
		raw, err := json.Marshal(a.Credentials.DestinationTokens)
		if err != nil {
			return accountModel{}, err
		}
		enc, err := crypto.Encrypt(string(raw))
		if err != nil {
			return accountModel{}, fmt.Errorf("encrypt destination tokens: %w", err)
		}
		pageTokens = sql.NullString{String: enc, Valid: true}
	}
	now := time.Now().UTC()
	return accountModel{
		ID:                a.ID,
		OwnerID:           a.OwnerID,
		Channel:           string(a.Channel),
		DisplayName:       nullString(a.DisplayName),
		DestinationIDs:    sql.NullString{String: string(destinations), Valid: true},
		AccessToken:       token,
		DestinationTokens: pageTokens,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func fromAccountModel(m accountModel) (account.ConnectedAccount, error) {
	var destinations []string
	if raw := nullStringValue(m.DestinationIDs); raw != "" {
		if err := json.Unmarshal([]byte(raw), &destinations); err != nil {
			return account.ConnectedAccount{}, fmt.Errorf("decode destinations: %w", err)
		}
	}
	token, err := crypto.Decrypt(m.AccessToken)
	if err != nil {
		return account.ConnectedAccount{}, fmt.Errorf("decrypt access token: %w", err)
	}
	var pageTokens map[string]string
	if raw := nullStringValue(m.DestinationTokens); raw != "" {
		plain, err := crypto.Decrypt(raw)
		if err != nil {
			return account.ConnectedAccount{}, fmt.Errorf("decrypt destination tokens: %w", err)
		}
		if err := json.Unmarshal([]byte(plain), &pageTokens); err != nil {
			return account.ConnectedAccount{}, fmt.Errorf("decode destination tokens: %w", err)
		}
	}
	return account.ConnectedAccount{
		ID:             m.ID,
		OwnerID:        m.OwnerID,
		Channel:        channel.Kind(m.Channel),
		DisplayName:    nullStringValue(m.DisplayName),
		DestinationIDs: destinations,
		Credentials: account.Credentials{
			AccessToken:       token,
			DestinationTokens: pageTokens,
		},
	}, nil
}

func toEventModel(e event.PublishEvent) publishEventModel {
	return publishEventModel{
		ID:           e.ID,
		PostID:       e.PostID,
		TargetID:     e.TargetID,
		Channel:      string(e.Channel),
		Kind:         string(e.Kind),
		RemotePostID: nullString(e.RemotePostID),
		ErrorMessage: nullString(e.ErrorMessage),
		Payload:      nullString(string(e.Payload)),
		OccurredAt:   e.OccurredAt,
		CreatedAt:    e.CreatedAt,
	}
}

func fromEventModel(m publishEventModel) event.PublishEvent {
	var payload json.RawMessage
	if m.Payload.Valid && m.Payload.String != "" {
		payload = json.RawMessage(m.Payload.String)
	}
	return event.PublishEvent{
		ID:           m.ID,
		PostID:       m.PostID,
		TargetID:     m.TargetID,
		Channel:      channel.Kind(m.Channel),
		Kind:         event.Kind(m.Kind),
		RemotePostID: nullStringValue(m.RemotePostID),
		ErrorMessage: nullStringValue(m.ErrorMessage),
		Payload:      payload,
		OccurredAt:   m.OccurredAt,
		CreatedAt:    m.CreatedAt,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullStringValue returns a trimmed string or empty if null.
func nullStringValue(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return strings.TrimSpace(ns.String)
}
