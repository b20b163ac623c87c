package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/phonologic/brain-engine/pkg/apperrors"
	"github.com/phonologic/brain-engine/pkg/config"
	"github.com/phonologic/brain-engine/pkg/extraction"
	"github.com/phonologic/brain-engine/pkg/models"
	"github.com/phonologic/brain-engine/pkg/repositories"
)

// ConflictDetector compares a claim against the knowledge store and the
// pending queue. It never mutates anything; callers decide what to do with
// the conflicts it reports.
type ConflictDetector interface {
	// Detect returns the conflict a claim raises, or nil when the claim can
	// be applied cleanly.
	Detect(ctx context.Context, claim models.Claim) (*models.Conflict, error)
}

// ConflictDetectorDeps holds the dependencies for the conflict detector.
type ConflictDetectorDeps struct {
	KnowledgeRepo    repositories.KnowledgeRepository
	ContributionRepo repositories.ContributionRepository
	Config           config.CurationConfig
	Logger           *zap.Logger

	// Now is overridable for tests. Defaults to time.Now.
	Now func() time.Time
}

type conflictDetector struct {
	knowledgeRepo    repositories.KnowledgeRepository
	contributionRepo repositories.ContributionRepository
	cfg              config.CurationConfig
	logger           *zap.Logger
	now              func() time.Time
}

// NewConflictDetector creates a new ConflictDetector.
func NewConflictDetector(deps *ConflictDetectorDeps) ConflictDetector {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &conflictDetector{
		knowledgeRepo:    deps.KnowledgeRepo,
		contributionRepo: deps.ContributionRepo,
		cfg:              deps.Config,
		logger:           deps.Logger.Named("conflict-detection"),
		now:              now,
	}
}

var _ ConflictDetector = (*conflictDetector)(nil)

func (d *conflictDetector) Detect(ctx context.Context, claim models.Claim) (*models.Conflict, error) {
	existing, err := d.knowledgeRepo.Get(ctx, claim.Category, claim.Field)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up existing entry: %w", err)
		}
		existing = nil
	}

	// A claim restating the stored value is clean regardless of what the
	// pending queue holds; the store is the authority.
	if existing != nil && existing.Value.Equal(claim.Value) {
		return nil, nil
	}

	// Among actual disagreements, duplicates against the pending queue
	// take precedence: a claim restating something already waiting for
	// review should not generate a second review item.
	dup, err := d.checkPendingDuplicate(ctx, claim)
	if err != nil {
		return nil, err
	}
	if dup != nil {
		return dup, nil
	}

	if existing == nil {
		return d.checkUnverifiable(ctx, claim)
	}

	conflict := &models.Conflict{
		Claim:         claim,
		ExistingValue: &existing.Value,
		Confidence:    d.mismatchConfidence(claim, existing),
		Explanation:   models.ConflictExplanation(claim, existing.Value),
		Kind:          models.ConflictKindValueMismatch,
	}
	d.logger.Debug("Detected value mismatch",
		zap.String("category", claim.Category.String()),
		zap.String("field", claim.Field),
		zap.Float64("confidence", conflict.Confidence))
	return conflict, nil
}

// checkPendingDuplicate reports a duplicate-candidate conflict when a pending
// contribution already carries a claim about the same field, or one whose
// source sentence overlaps the new claim's sentence past the configured
// threshold.
func (d *conflictDetector) checkPendingDuplicate(ctx context.Context, claim models.Claim) (*models.Conflict, error) {
	pending, err := d.contributionRepo.ListByStatus(ctx, models.ContributionStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending contributions: %w", err)
	}

	claimTokens := extraction.Tokenize(claim.SourceText)
	for _, contribution := range pending {
		for _, staged := range contribution.Claims {
			sameField := staged.Category == claim.Category && staged.Field == claim.Field
			overlap := extraction.Overlap(claimTokens, extraction.Tokenize(staged.SourceText))
			if !sameField && overlap < d.cfg.DuplicateThreshold {
				continue
			}

			value := staged.Value
			return &models.Conflict{
				Claim:         claim,
				ExistingValue: &value,
				Confidence:    overlap,
				Explanation: fmt.Sprintf("A pending contribution already covers %s/%s: %q",
					staged.Category, staged.Field, staged.SourceText),
				Kind: models.ConflictKindDuplicateCandidate,
			}, nil
		}
	}
	return nil, nil
}

// checkUnverifiable handles claims about fields the store has never seen.
// Boolean assertions about a category with related boolean entries holding
// the opposite value are flagged for review rather than merged silently.
func (d *conflictDetector) checkUnverifiable(ctx context.Context, claim models.Claim) (*models.Conflict, error) {
	if claim.Value.Kind != models.ValueKindBool {
		return nil, nil
	}

	category := claim.Category
	entries, err := d.knowledgeRepo.List(ctx, &category)
	if err != nil {
		return nil, fmt.Errorf("failed to list category entries: %w", err)
	}

	claimTokens := extraction.Tokenize(claim.Field)
	for _, entry := range entries {
		if entry.Value.Kind != models.ValueKindBool || entry.Value.Bool == claim.Value.Bool {
			continue
		}
		if extraction.Overlap(claimTokens, extraction.Tokenize(entry.Field)) < 0.5 {
			continue
		}
		return &models.Conflict{
			Claim:      claim,
			Confidence: 0.5 * claim.Confidence,
			Explanation: fmt.Sprintf("No record of %s/%s, but %s/%s says the opposite",
				claim.Category, claim.Field, entry.Category, entry.Field),
			Kind: models.ConflictKindUnverifiable,
		}, nil
	}
	return nil, nil
}

// mismatchConfidence weights how sure we are that a value mismatch needs a
// human decision. Extraction confidence carries half the weight, the rest
// comes from how specific the value type is plus a bump for entries updated
// recently enough that the stored value is unlikely to be stale.
func (d *conflictDetector) mismatchConfidence(claim models.Claim, existing *models.KnowledgeEntry) float64 {
	confidence := 0.5 * claim.Confidence

	switch claim.Value.Kind {
	case models.ValueKindNumber, models.ValueKindDate:
		confidence += 0.3
	case models.ValueKindBool:
		confidence += 0.2
	default:
		confidence += 0.1
	}

	recencyWindow := time.Duration(d.cfg.RecencyWindowHours) * time.Hour
	if d.now().Sub(existing.UpdatedAt) < recencyWindow {
		confidence += 0.2
	}

	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}
	return confidence
}
