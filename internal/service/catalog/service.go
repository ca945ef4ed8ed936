// Package catalog implements the admin-facing seed and assessment
// services.
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codetrial/broker-backend-go/internal/domain/assessment"
	"github.com/codetrial/broker-backend-go/internal/domain/seed"
	"github.com/google/uuid"
)

// SeedHeads resolves branch heads for seed repositories.
type SeedHeads interface {
	BranchHeadSHA(ctx context.Context, repoFullName, branch string) (string, error)
}

type seedService struct {
	seeds    seed.SeedRepository
	upstream SeedHeads
	logger   *slog.Logger
}

// NewSeedService creates a new seed service instance
func NewSeedService(seeds seed.SeedRepository, upstream SeedHeads, logger *slog.Logger) seed.SeedService {
	return &seedService{seeds: seeds, upstream: upstream, logger: logger}
}

// Create implements seed.SeedService.
func (s *seedService) Create(ctx context.Context, req seed.CreateRequest) (seed.Seed, error) {
	if err := req.Validate(); err != nil {
		return seed.Seed{}, err
	}

	sd := seed.Seed{
		ID:               uuid.New().String(),
		SourceRepoURL:    req.SourceRepoURL,
		SeedRepoFullName: req.SeedRepoFullName,
		DefaultBranch:    req.DefaultBranch,
		IsTemplate:       req.IsTemplate,
	}

	// Best effort: an unreachable upstream only delays the cache, the
	// provisioner falls back to a live lookup when the cache is empty.
	if sha, err := s.upstream.BranchHeadSHA(ctx, sd.SeedRepoFullName, sd.DefaultBranch); err == nil {
		sd.LatestMainSHA = &sha
	} else {
		s.logger.WarnContext(ctx, "could not cache seed head sha",
			slog.String("seed_repo", sd.SeedRepoFullName),
			slog.Any("error", err),
		)
	}

	created, err := s.seeds.Create(ctx, sd)
	if err != nil {
		return seed.Seed{}, fmt.Errorf("failed to create seed: %w", err)
	}

	s.logger.InfoContext(ctx, "seed registered",
		slog.String("seed_id", created.ID),
		slog.String("seed_repo", created.SeedRepoFullName),
	)
	return created, nil
}

// GetByID implements seed.SeedService.
func (s *seedService) GetByID(ctx context.Context, id string) (seed.Seed, error) {
	return s.seeds.GetByID(ctx, id)
}

// List implements seed.SeedService.
func (s *seedService) List(ctx context.Context) ([]seed.Seed, error) {
	return s.seeds.List(ctx)
}

// RefreshHeadSHA implements seed.SeedService.
func (s *seedService) RefreshHeadSHA(ctx context.Context, id string) (seed.Seed, error) {
	sd, err := s.seeds.GetByID(ctx, id)
	if err != nil {
		return seed.Seed{}, err
	}

	sha, err := s.upstream.BranchHeadSHA(ctx, sd.SeedRepoFullName, sd.DefaultBranch)
	if err != nil {
		return seed.Seed{}, err
	}

	if err := s.seeds.UpdateLatestSHA(ctx, sd.ID, sha); err != nil {
		return seed.Seed{}, err
	}
	sd.LatestMainSHA = &sha

	s.logger.InfoContext(ctx, "seed head refreshed",
		slog.String("seed_id", sd.ID),
		slog.String("sha", sha),
	)
	return sd, nil
}

type assessmentService struct {
	assessments assessment.AssessmentRepository
	seeds       seed.SeedRepository
	logger      *slog.Logger
}

// NewAssessmentService creates a new assessment service instance
func NewAssessmentService(assessments assessment.AssessmentRepository, seeds seed.SeedRepository, logger *slog.Logger) assessment.AssessmentService {
	return &assessmentService{assessments: assessments, seeds: seeds, logger: logger}
}

// Create implements assessment.AssessmentService.
func (s *assessmentService) Create(ctx context.Context, req assessment.CreateRequest) (assessment.Assessment, error) {
	timeToStart, timeToComplete, err := req.Validate()
	if err != nil {
		return assessment.Assessment{}, err
	}

	if _, err := s.seeds.GetByID(ctx, req.SeedID); err != nil {
		return assessment.Assessment{}, err
	}

	a := assessment.Assessment{
		ID:                    uuid.New().String(),
		SeedID:                req.SeedID,
		Title:                 req.Title,
		Description:           req.Description,
		Instructions:          req.Instructions,
		CandidateEmailSubject: req.CandidateEmailSubject,
		CandidateEmailBody:    req.CandidateEmailBody,
		TimeToStart:           timeToStart,
		TimeToComplete:        timeToComplete,
	}

	created, err := s.assessments.Create(ctx, a)
	if err != nil {
		return assessment.Assessment{}, fmt.Errorf("failed to create assessment: %w", err)
	}

	s.logger.InfoContext(ctx, "assessment created",
		slog.String("assessment_id", created.ID),
		slog.String("seed_id", created.SeedID),
	)
	return created, nil
}

// GetByID implements assessment.AssessmentService.
func (s *assessmentService) GetByID(ctx context.Context, id string) (assessment.Assessment, error) {
	return s.assessments.GetByID(ctx, id)
}

// List implements assessment.AssessmentService.
func (s *assessmentService) List(ctx context.Context) ([]assessment.Assessment, error) {
	return s.assessments.List(ctx)
}
