package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phonologic/brain-engine/pkg/apperrors"
	"github.com/phonologic/brain-engine/pkg/audit"
	"github.com/phonologic/brain-engine/pkg/config"
	"github.com/phonologic/brain-engine/pkg/extraction"
	"github.com/phonologic/brain-engine/pkg/models"
	"github.com/phonologic/brain-engine/pkg/repositories"
)

// ContributeResult reports what happened to a submitted contribution.
type ContributeResult struct {
	// Accepted is true when every extracted claim merged cleanly.
	Accepted bool `json:"accepted"`

	// ContributionID is set only when conflicts forced the contribution
	// into the staging queue.
	ContributionID *uuid.UUID `json:"contribution_id,omitempty"`

	Conflicts []models.Conflict `json:"conflicts,omitempty"`

	// MergedFields lists the fields auto-merged into the store.
	MergedFields []string `json:"merged_fields,omitempty"`
}

// CurationService is the ingestion path: raw text in, either auto-merged
// facts or a staged contribution out.
type CurationService interface {
	// Contribute screens, extracts, and curates one piece of raw text.
	// Claims without conflicts merge immediately; a single contribution
	// carrying all claims is staged when any claim conflicts.
	Contribute(ctx context.Context, text, submittedBy string) (*ContributeResult, error)
}

// CurationServiceDeps holds the dependencies for the curation service.
type CurationServiceDeps struct {
	KnowledgeRepo    repositories.KnowledgeRepository
	Extractor        *extraction.Extractor
	ConflictDetector ConflictDetector
	StagingService   StagingService
	AuditService     AuditService
	SecurityAuditor  *audit.SecurityAuditor
	Config           config.CurationConfig
	Logger           *zap.Logger
}

type curationService struct {
	knowledgeRepo    repositories.KnowledgeRepository
	extractor        *extraction.Extractor
	conflictDetector ConflictDetector
	stagingService   StagingService
	auditService     AuditService
	securityAuditor  *audit.SecurityAuditor
	cfg              config.CurationConfig
	logger           *zap.Logger
}

// NewCurationService creates a new CurationService.
func NewCurationService(deps *CurationServiceDeps) CurationService {
	return &curationService{
		knowledgeRepo:    deps.KnowledgeRepo,
		extractor:        deps.Extractor,
		conflictDetector: deps.ConflictDetector,
		stagingService:   deps.StagingService,
		auditService:     deps.AuditService,
		securityAuditor:  deps.SecurityAuditor,
		cfg:              deps.Config,
		logger:           deps.Logger.Named("curation"),
	}
}

var _ CurationService = (*curationService)(nil)

func (s *curationService) Contribute(ctx context.Context, text, submittedBy string) (*ContributeResult, error) {
	if strings.TrimSpace(text) == "" {
		s.securityAuditor.LogValidationFailure("empty contribution", submittedBy)
		return nil, fmt.Errorf("%w: contribution text is empty", apperrors.ErrValidation)
	}
	if len(text) > s.cfg.MaxInputLength {
		s.securityAuditor.LogValidationFailure("contribution exceeds maximum length", submittedBy)
		return nil, fmt.Errorf("%w: contribution exceeds %d bytes", apperrors.ErrValidation, s.cfg.MaxInputLength)
	}

	// Contributions are stored as data and never executed, so a suspicious
	// payload is logged for the SIEM and then processed normally.
	s.securityAuditor.ScreenContribution(text, submittedBy)

	claims := s.extractor.Extract(text)
	if len(claims) == 0 {
		s.logger.Info("No claims extracted from contribution",
			zap.String("submitted_by", submittedBy))
		return &ContributeResult{Accepted: true}, nil
	}

	var conflicts []models.Conflict
	for _, claim := range claims {
		conflict, err := s.conflictDetector.Detect(ctx, claim)
		if err != nil {
			return nil, fmt.Errorf("failed to check claim %s/%s: %w", claim.Category, claim.Field, err)
		}
		if conflict != nil {
			conflicts = append(conflicts, *conflict)
		}
	}

	if len(conflicts) > 0 {
		contribution, err := s.stagingService.Stage(ctx, text, submittedBy, claims, conflicts)
		if err != nil {
			return nil, err
		}
		return &ContributeResult{
			ContributionID: &contribution.ID,
			Conflicts:      conflicts,
		}, nil
	}

	merged, err := s.autoMerge(ctx, claims, submittedBy)
	if err != nil {
		return nil, err
	}
	return &ContributeResult{Accepted: true, MergedFields: merged}, nil
}

// autoMerge applies conflict-free claims directly. New facts insert at
// version 1; claims matching the stored value are no-ops. A unique violation
// on insert means another contributor created the entry between detection and
// merge, in which case the claim is re-checked instead of forced through.
func (s *curationService) autoMerge(ctx context.Context, claims []models.Claim, submittedBy string) ([]string, error) {
	merged := make([]string, 0, len(claims))
	for _, claim := range claims {
		applied, err := s.mergeOne(ctx, claim, submittedBy)
		if err != nil {
			return merged, err
		}
		if applied {
			merged = append(merged, string(claim.Category)+"."+claim.Field)
		}
	}
	return merged, nil
}

func (s *curationService) mergeOne(ctx context.Context, claim models.Claim, submittedBy string) (bool, error) {
	existing, err := s.knowledgeRepo.Get(ctx, claim.Category, claim.Field)
	if err == nil {
		// Detection found no conflict, so the stored value matches the claim.
		if existing.Value.Equal(claim.Value) {
			return false, nil
		}
		// The entry changed between detection and merge. Stage instead of
		// silently overwriting.
		conflict, derr := s.conflictDetector.Detect(ctx, claim)
		if derr != nil {
			return false, derr
		}
		if conflict != nil {
			if _, serr := s.stagingService.Stage(ctx, claim.SourceText, submittedBy, []models.Claim{claim}, []models.Conflict{*conflict}); serr != nil {
				return false, serr
			}
		}
		return false, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return false, fmt.Errorf("failed to look up %s/%s: %w", claim.Category, claim.Field, err)
	}

	entry := &models.KnowledgeEntry{
		Category:  claim.Category,
		Field:     claim.Field,
		Value:     claim.Value,
		UpdatedBy: submittedBy,
	}
	if err := s.knowledgeRepo.Insert(ctx, entry); err != nil {
		if errors.Is(err, apperrors.ErrDuplicateEntry) {
			return s.recheckLostInsert(ctx, claim, submittedBy)
		}
		return false, fmt.Errorf("failed to auto-merge %s/%s: %w", claim.Category, claim.Field, err)
	}

	s.auditService.RecordEntryChange(ctx, models.AuditActionAutoMerge, claim.Category, claim.Field, nil, &claim.Value, nil, submittedBy)
	s.logger.Info("Auto-merged new fact",
		zap.String("category", claim.Category.String()),
		zap.String("field", claim.Field),
		zap.String("submitted_by", submittedBy))
	return true, nil
}

// recheckLostInsert handles a lost insert race: a concurrent contributor
// created the entry between detection and merge. The claim is detected
// again; an agreeing entry makes it a no-op, a disagreeing one stages it.
func (s *curationService) recheckLostInsert(ctx context.Context, claim models.Claim, submittedBy string) (bool, error) {
	s.logger.Info("Lost insert race, re-checking claim",
		zap.String("category", claim.Category.String()),
		zap.String("field", claim.Field))

	conflict, err := s.conflictDetector.Detect(ctx, claim)
	if err != nil {
		return false, fmt.Errorf("failed to re-check claim %s/%s: %w", claim.Category, claim.Field, err)
	}
	if conflict == nil {
		return false, nil
	}
	if _, err := s.stagingService.Stage(ctx, claim.SourceText, submittedBy, []models.Claim{claim}, []models.Conflict{*conflict}); err != nil {
		return false, err
	}
	return false, nil
}
