package usecase

import (
	"context"
	"errors"
	"fmt"

	domainPublish "github.com/AzielCF/az-publish/domains/publish"
	pkgError "github.com/AzielCF/az-publish/pkg/error"
	"github.com/AzielCF/az-publish/publishing/application"
	"github.com/AzielCF/az-publish/publishing/domain/common"
	"github.com/AzielCF/az-publish/publishing/domain/monitoring"
	"github.com/AzielCF/az-publish/publishing/repository"
	"github.com/AzielCF/az-publish/validations"
	"github.com/sirupsen/logrus"
)

type publishService struct {
	engine *application.Engine
	repo   repository.IPublishRepository
	stats  monitoring.StatsStore
}

func NewPublishService(engine *application.Engine, repo repository.IPublishRepository, stats monitoring.StatsStore) domainPublish.IPublishUsecase {
	return &publishService{
		engine: engine,
		repo:   repo,
		stats:  stats,
	}
}

func (s *publishService) Run(ctx context.Context, request domainPublish.RunRequest) (application.RunResult, error) {
	if err := validations.ValidateRunRequest(ctx, request); err != nil {
		return application.RunResult{}, err
	}
	if s.engine == nil {
		return application.RunResult{}, pkgError.ServiceUnavailableError("publish engine is not configured")
	}

	logrus.WithField("batch_size", request.BatchSize).Debug("[PUBLISH] Manual run requested")
	return s.engine.RunBatch(ctx, request.BatchSize)
}

func (s *publishService) Stats(ctx context.Context) (domainPublish.StatsResponse, error) {
	var res domainPublish.StatsResponse

	counts, err := s.repo.CountPostsByStatus(ctx)
	if err != nil {
		return res, fmt.Errorf("count posts: %w", err)
	}
	res.Posts = counts

	if s.stats == nil {
		return res, nil
	}
	global, err := s.stats.GetGlobalStats(ctx)
	if err != nil {
		// Counters are optional; post counts come from the database.
		logrus.WithError(err).Warn("[PUBLISH] Stats store unavailable")
		return res, nil
	}
	res.GlobalStats = global
	return res, nil
}

func (s *publishService) GetPost(ctx context.Context, postID string) (domainPublish.PostDetail, error) {
	var detail domainPublish.PostDetail

	p, err := s.repo.GetPost(ctx, postID)
	if errors.Is(err, common.ErrPostNotFound) {
		return detail, pkgError.NotFoundError(fmt.Sprintf("post %s not found", postID))
	}
	if err != nil {
		return detail, err
	}
	detail.Post = p

	if detail.Targets, err = s.repo.ListTargets(ctx, postID); err != nil {
		return detail, fmt.Errorf("list targets: %w", err)
	}
	if detail.Events, err = s.repo.ListEvents(ctx, postID); err != nil {
		return detail, fmt.Errorf("list events: %w", err)
	}
	return detail, nil
}
