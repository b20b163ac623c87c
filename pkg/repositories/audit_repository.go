package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/phonologic/brain-engine/pkg/database"
	"github.com/phonologic/brain-engine/pkg/models"
)

// AuditRepository provides data access for the curation audit log.
type AuditRepository interface {
	// Create inserts a new audit log entry.
	Create(ctx context.Context, entry *models.AuditLogEntry) error

	// GetByEntry returns audit entries for one knowledge entry, newest
	// first.
	GetByEntry(ctx context.Context, category models.Category, field string, limit int) ([]*models.AuditLogEntry, error)

	// GetByContribution returns audit entries produced by one contribution.
	GetByContribution(ctx context.Context, contributionID uuid.UUID) ([]*models.AuditLogEntry, error)
}

type auditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *database.DB) AuditRepository {
	return &auditRepository{db: db}
}

var _ AuditRepository = (*auditRepository)(nil)

func (r *auditRepository) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()

	var changedFieldsJSON []byte
	var err error
	if len(entry.ChangedFields) > 0 {
		changedFieldsJSON, err = json.Marshal(entry.ChangedFields)
		if err != nil {
			return fmt.Errorf("failed to marshal changed_fields: %w", err)
		}
	}

	query := `
		INSERT INTO brain_audit_log (
			id, entity_type, action, category, field, contribution_id, actor, changed_fields, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.Exec(ctx, query,
		entry.ID,
		entry.EntityType,
		entry.Action,
		nullableString(string(entry.Category)),
		nullableString(entry.Field),
		entry.ContributionID,
		entry.Actor,
		changedFieldsJSON,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log entry: %w", err)
	}

	return nil
}

func (r *auditRepository) GetByEntry(ctx context.Context, category models.Category, field string, limit int) ([]*models.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, entity_type, action, category, field, contribution_id, actor, changed_fields, created_at
		FROM brain_audit_log
		WHERE category = $1 AND field = $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, category, field, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit entries: %w", err)
	}
	defer rows.Close()

	return scanAuditRows(rows)
}

func (r *auditRepository) GetByContribution(ctx context.Context, contributionID uuid.UUID) ([]*models.AuditLogEntry, error) {
	query := `
		SELECT id, entity_type, action, category, field, contribution_id, actor, changed_fields, created_at
		FROM brain_audit_log
		WHERE contribution_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, contributionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit entries: %w", err)
	}
	defer rows.Close()

	return scanAuditRows(rows)
}

func scanAuditRows(rows pgx.Rows) ([]*models.AuditLogEntry, error) {
	entries := make([]*models.AuditLogEntry, 0)
	for rows.Next() {
		var (
			entry             models.AuditLogEntry
			category          *string
			field             *string
			changedFieldsJSON []byte
		)
		if err := rows.Scan(
			&entry.ID, &entry.EntityType, &entry.Action, &category, &field,
			&entry.ContributionID, &entry.Actor, &changedFieldsJSON, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if category != nil {
			entry.Category = models.Category(*category)
		}
		if field != nil {
			entry.Field = *field
		}
		if len(changedFieldsJSON) > 0 {
			if err := json.Unmarshal(changedFieldsJSON, &entry.ChangedFields); err != nil {
				return nil, fmt.Errorf("failed to decode changed_fields: %w", err)
			}
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}
	return entries, nil
}

// nullableString maps "" to NULL for optional text columns.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
