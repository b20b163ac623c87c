package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phonologic/brain-engine/pkg/apperrors"
	"github.com/phonologic/brain-engine/pkg/models"
	"github.com/phonologic/brain-engine/pkg/repositories"
)

// FieldResolution reports the outcome of applying a resolution to a single
// conflicting field.
type FieldResolution struct {
	Category models.Category `json:"category"`
	Field    string          `json:"field"`
	OldValue *models.Value   `json:"old_value,omitempty"`
	NewValue *models.Value   `json:"new_value,omitempty"`
	Applied  bool            `json:"applied"`
	Error    string          `json:"error,omitempty"`
}

// ResolutionResult is the full outcome of resolving one contribution.
type ResolutionResult struct {
	ContributionID uuid.UUID         `json:"contribution_id"`
	Action         string            `json:"action"`
	Status         string            `json:"status"`
	Fields         []FieldResolution `json:"fields,omitempty"`
}

// ResolutionService applies human decisions to pending contributions. The
// contribution is claimed atomically before any entry is touched, so two
// concurrent resolvers can never both apply the same contribution.
type ResolutionService interface {
	// Resolve applies the given action to a pending contribution. Returns
	// apperrors.ErrNotFound when the contribution does not exist or is no
	// longer pending, apperrors.ErrValidation for unknown actions, and
	// apperrors.ErrStaleResolution when every targeted entry changed under
	// the resolver despite a retry. On a stale failure the result is still
	// returned so callers can report the per-field outcomes.
	Resolve(ctx context.Context, id uuid.UUID, action, resolvedBy string) (*ResolutionResult, error)
}

// ResolutionServiceDeps holds the dependencies for the resolution service.
type ResolutionServiceDeps struct {
	KnowledgeRepo    repositories.KnowledgeRepository
	ContributionRepo repositories.ContributionRepository
	AuditService     AuditService
	Logger           *zap.Logger
}

type resolutionService struct {
	knowledgeRepo    repositories.KnowledgeRepository
	contributionRepo repositories.ContributionRepository
	auditService     AuditService
	logger           *zap.Logger
}

// NewResolutionService creates a new ResolutionService.
func NewResolutionService(deps *ResolutionServiceDeps) ResolutionService {
	return &resolutionService{
		knowledgeRepo:    deps.KnowledgeRepo,
		contributionRepo: deps.ContributionRepo,
		auditService:     deps.AuditService,
		logger:           deps.Logger.Named("resolution"),
	}
}

var _ ResolutionService = (*resolutionService)(nil)

func (s *resolutionService) Resolve(ctx context.Context, id uuid.UUID, action, resolvedBy string) (*ResolutionResult, error) {
	status := models.TerminalStatusFor(action)
	if status == "" {
		return nil, fmt.Errorf("%w: unknown resolution action %q", apperrors.ErrValidation, action)
	}

	contribution, err := s.contributionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Claim the contribution first. Losing the claim means another resolver
	// got there, or the contribution expired.
	claimed, err := s.contributionRepo.MarkResolved(ctx, id, status, resolvedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to claim contribution: %w", err)
	}
	if !claimed {
		return nil, fmt.Errorf("%w: contribution %s is not pending", apperrors.ErrNotFound, id)
	}

	result := &ResolutionResult{
		ContributionID: id,
		Action:         action,
		Status:         status,
	}

	switch action {
	case models.ResolutionActionUpdate:
		fields, allStale := s.applyUpdates(ctx, contribution, resolvedBy)
		result.Fields = fields
		s.auditService.RecordContribution(ctx, models.AuditActionResolveUpdate, id, resolvedBy)
		if allStale {
			return result, fmt.Errorf("failed to apply contribution %s: %w", id, apperrors.ErrStaleResolution)
		}
	case models.ResolutionActionKeep:
		s.auditService.RecordContribution(ctx, models.AuditActionResolveKeep, id, resolvedBy)
	case models.ResolutionActionAddNote:
		result.Fields = s.addNotes(ctx, contribution, resolvedBy)
		s.auditService.RecordContribution(ctx, models.AuditActionResolveNote, id, resolvedBy)
	}

	s.logger.Info("Resolved contribution",
		zap.String("contribution_id", id.String()),
		zap.String("action", action),
		zap.String("resolved_by", resolvedBy))
	return result, nil
}

// applyUpdates writes each conflicting claim's value into the store. Every
// write is a compare-and-swap against the version read moments before; a
// stale swap gets exactly one retry against the fresh version. The second
// return value reports whether every single field failed as stale.
func (s *resolutionService) applyUpdates(ctx context.Context, contribution *models.Contribution, resolvedBy string) ([]FieldResolution, bool) {
	results := make([]FieldResolution, 0, len(contribution.Conflicts))
	allStale := len(contribution.Conflicts) > 0
	for _, conflict := range contribution.Conflicts {
		fr, stale := s.applyOne(ctx, conflict.Claim, contribution.ID, resolvedBy)
		if !stale {
			allStale = false
		}
		results = append(results, fr)
	}
	return results, allStale
}

func (s *resolutionService) applyOne(ctx context.Context, claim models.Claim, contributionID uuid.UUID, resolvedBy string) (FieldResolution, bool) {
	fr := FieldResolution{Category: claim.Category, Field: claim.Field}

	existing, err := s.knowledgeRepo.Get(ctx, claim.Category, claim.Field)
	if errors.Is(err, apperrors.ErrNotFound) {
		entry := &models.KnowledgeEntry{
			Category:  claim.Category,
			Field:     claim.Field,
			Value:     claim.Value,
			UpdatedBy: resolvedBy,
		}
		if err := s.knowledgeRepo.Insert(ctx, entry); err != nil {
			fr.Error = err.Error()
			return fr, false
		}
		fr.NewValue = &claim.Value
		fr.Applied = true
		s.auditService.RecordEntryChange(ctx, models.AuditActionCreate, claim.Category, claim.Field, nil, &claim.Value, &contributionID, resolvedBy)
		return fr, false
	}
	if err != nil {
		fr.Error = err.Error()
		return fr, false
	}

	fr.OldValue = &existing.Value
	if existing.Value.Equal(claim.Value) {
		// Someone already applied this value. Nothing to do.
		fr.NewValue = &existing.Value
		fr.Applied = true
		return fr, false
	}

	updated, err := s.knowledgeRepo.UpdateVersioned(ctx, claim.Category, claim.Field, claim.Value, resolvedBy, existing.Version)
	if errors.Is(err, apperrors.ErrStaleResolution) {
		updated, err = s.retryUpdate(ctx, claim, resolvedBy)
	}
	if err != nil {
		fr.Error = err.Error()
		return fr, errors.Is(err, apperrors.ErrStaleResolution)
	}
	if updated == nil {
		// Retry found the claimed value already in place.
		fr.NewValue = &claim.Value
		fr.Applied = true
		return fr, false
	}

	fr.NewValue = &updated.Value
	fr.Applied = true
	s.auditService.RecordEntryChange(ctx, models.AuditActionUpdate, claim.Category, claim.Field, fr.OldValue, &updated.Value, &contributionID, resolvedBy)
	return fr, false
}

// retryUpdate re-reads the entry and retries the swap once. A nil entry with
// nil error means the store already holds the claimed value.
func (s *resolutionService) retryUpdate(ctx context.Context, claim models.Claim, resolvedBy string) (*models.KnowledgeEntry, error) {
	fresh, err := s.knowledgeRepo.Get(ctx, claim.Category, claim.Field)
	if err != nil {
		return nil, err
	}
	if fresh.Value.Equal(claim.Value) {
		return nil, nil
	}

	s.logger.Warn("Entry changed during resolution, retrying once",
		zap.String("category", claim.Category.String()),
		zap.String("field", claim.Field),
		zap.Int("version", fresh.Version))
	return s.knowledgeRepo.UpdateVersioned(ctx, claim.Category, claim.Field, claim.Value, resolvedBy, fresh.Version)
}

// addNotes attaches the contribution's raw input as a note on each
// conflicting entry, leaving stored values and versions untouched.
func (s *resolutionService) addNotes(ctx context.Context, contribution *models.Contribution, resolvedBy string) []FieldResolution {
	results := make([]FieldResolution, 0, len(contribution.Conflicts))
	for _, conflict := range contribution.Conflicts {
		fr := FieldResolution{Category: conflict.Claim.Category, Field: conflict.Claim.Field}
		err := s.knowledgeRepo.AddNote(ctx, conflict.Claim.Category, conflict.Claim.Field, contribution.RawInput, resolvedBy)
		if err != nil {
			fr.Error = err.Error()
		} else {
			fr.Applied = true
			s.auditService.RecordEntryChange(ctx, models.AuditActionResolveNote, conflict.Claim.Category, conflict.Claim.Field, nil, nil, &contribution.ID, resolvedBy)
		}
		results = append(results, fr)
	}
	return results
}
