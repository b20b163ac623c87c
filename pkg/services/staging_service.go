package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phonologic/brain-engine/pkg/config"
	"github.com/phonologic/brain-engine/pkg/models"
	"github.com/phonologic/brain-engine/pkg/repositories"
)

// StagingService manages the queue of contributions waiting for a human
// decision. Expiry is lazy: pending contributions past the retention window
// are swept whenever the queue is listed.
type StagingService interface {
	// Stage parks a contribution with its claims and conflicts in the
	// pending queue.
	Stage(ctx context.Context, rawInput, submittedBy string, claims []models.Claim, conflicts []models.Conflict) (*models.Contribution, error)

	// ListPending returns pending contributions oldest first, after sweeping
	// out anything past the retention window.
	ListPending(ctx context.Context) ([]*models.Contribution, error)

	// Expire marks pending contributions older than the retention window as
	// expired and returns their IDs.
	Expire(ctx context.Context) ([]uuid.UUID, error)
}

// StagingServiceDeps holds the dependencies for the staging service.
type StagingServiceDeps struct {
	ContributionRepo repositories.ContributionRepository
	AuditService     AuditService
	Config           config.CurationConfig
	Logger           *zap.Logger

	// Now is overridable for tests. Defaults to time.Now.
	Now func() time.Time
}

type stagingService struct {
	contributionRepo repositories.ContributionRepository
	auditService     AuditService
	cfg              config.CurationConfig
	logger           *zap.Logger
	now              func() time.Time
}

// NewStagingService creates a new StagingService.
func NewStagingService(deps *StagingServiceDeps) StagingService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &stagingService{
		contributionRepo: deps.ContributionRepo,
		auditService:     deps.AuditService,
		cfg:              deps.Config,
		logger:           deps.Logger.Named("staging"),
		now:              now,
	}
}

var _ StagingService = (*stagingService)(nil)

func (s *stagingService) Stage(ctx context.Context, rawInput, submittedBy string, claims []models.Claim, conflicts []models.Conflict) (*models.Contribution, error) {
	contribution := &models.Contribution{
		RawInput:    rawInput,
		SubmittedBy: submittedBy,
		Claims:      claims,
		Conflicts:   conflicts,
	}

	if err := s.contributionRepo.Create(ctx, contribution); err != nil {
		return nil, fmt.Errorf("failed to stage contribution: %w", err)
	}

	s.auditService.RecordContribution(ctx, models.AuditActionCreate, contribution.ID, submittedBy)
	s.logger.Info("Staged contribution for review",
		zap.String("contribution_id", contribution.ID.String()),
		zap.Int("claims", len(claims)),
		zap.Int("conflicts", len(conflicts)))
	return contribution, nil
}

func (s *stagingService) ListPending(ctx context.Context) ([]*models.Contribution, error) {
	if _, err := s.Expire(ctx); err != nil {
		// A failed sweep should not hide the queue from reviewers.
		s.logger.Warn("Failed to expire stale contributions", zap.Error(err))
	}
	return s.contributionRepo.ListByStatus(ctx, models.ContributionStatusPending)
}

func (s *stagingService) Expire(ctx context.Context) ([]uuid.UUID, error) {
	cutoff := s.now().Add(-time.Duration(s.cfg.RetentionHours) * time.Hour)
	expired, err := s.contributionRepo.ExpireOlderThan(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to expire contributions: %w", err)
	}

	for _, id := range expired {
		s.auditService.RecordContribution(ctx, models.AuditActionExpire, id, models.UpdatedBySystem)
	}
	if len(expired) > 0 {
		s.logger.Info("Expired stale contributions", zap.Int("count", len(expired)))
	}
	return expired, nil
}
