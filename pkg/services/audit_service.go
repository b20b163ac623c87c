package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phonologic/brain-engine/pkg/models"
	"github.com/phonologic/brain-engine/pkg/repositories"
)

// AuditService records every mutation of the knowledge base, including
// resolutions that change nothing. Audit failures are logged, never allowed
// to break the operation being audited.
type AuditService interface {
	// RecordEntryChange logs a value change on a knowledge entry. oldValue
	// is nil for creations, newValue is nil for deletions.
	RecordEntryChange(ctx context.Context, action string, category models.Category, field string, oldValue, newValue *models.Value, contributionID *uuid.UUID, actor string)

	// RecordContribution logs a status change on a contribution.
	RecordContribution(ctx context.Context, action string, contributionID uuid.UUID, actor string)

	// EntryTrail returns the audit trail for one knowledge entry, newest
	// first.
	EntryTrail(ctx context.Context, category models.Category, field string, limit int) ([]*models.AuditLogEntry, error)
}

type auditService struct {
	repo   repositories.AuditRepository
	logger *zap.Logger
}

// NewAuditService creates a new AuditService.
func NewAuditService(repo repositories.AuditRepository, logger *zap.Logger) AuditService {
	return &auditService{
		repo:   repo,
		logger: logger.Named("audit"),
	}
}

var _ AuditService = (*auditService)(nil)

func (s *auditService) RecordEntryChange(ctx context.Context, action string, category models.Category, field string, oldValue, newValue *models.Value, contributionID *uuid.UUID, actor string) {
	change := models.FieldChange{}
	if oldValue != nil {
		change.Old = oldValue.Display()
	}
	if newValue != nil {
		change.New = newValue.Display()
	}

	entry := &models.AuditLogEntry{
		EntityType:     models.AuditEntityTypeKnowledgeEntry,
		Action:         action,
		Category:       category,
		Field:          field,
		ContributionID: contributionID,
		Actor:          actor,
		ChangedFields:  map[string]models.FieldChange{"value": change},
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to write audit entry",
			zap.String("action", action),
			zap.String("category", category.String()),
			zap.String("field", field),
			zap.Error(err))
	}
}

func (s *auditService) RecordContribution(ctx context.Context, action string, contributionID uuid.UUID, actor string) {
	entry := &models.AuditLogEntry{
		EntityType:     models.AuditEntityTypeContribution,
		Action:         action,
		ContributionID: &contributionID,
		Actor:          actor,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to write audit entry",
			zap.String("action", action),
			zap.String("contribution_id", contributionID.String()),
			zap.Error(err))
	}
}

func (s *auditService) EntryTrail(ctx context.Context, category models.Category, field string, limit int) ([]*models.AuditLogEntry, error) {
	return s.repo.GetByEntry(ctx, category, field, limit)
}
