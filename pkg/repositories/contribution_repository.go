package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/phonologic/brain-engine/pkg/apperrors"
	"github.com/phonologic/brain-engine/pkg/database"
	"github.com/phonologic/brain-engine/pkg/models"
)

// ContributionRepository provides data access for the staging queue.
type ContributionRepository interface {
	// Create inserts a new contribution in pending status.
	Create(ctx context.Context, c *models.Contribution) error

	// GetByID returns a contribution regardless of status.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contribution, error)

	// ListByStatus returns contributions in the given status, oldest first.
	ListByStatus(ctx context.Context, status string) ([]*models.Contribution, error)

	// MarkResolved atomically moves a contribution out of pending. Only
	// rows still pending match, so concurrent resolvers race safely: the
	// loser gets claimed=false. Status must be one of the terminal states.
	MarkResolved(ctx context.Context, id uuid.UUID, status, resolvedBy string) (claimed bool, err error)

	// ExpireOlderThan marks every pending contribution submitted before the
	// cutoff as expired and returns the affected IDs. Idempotent.
	ExpireOlderThan(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

type contributionRepository struct {
	db *database.DB
}

// NewContributionRepository creates a new ContributionRepository.
func NewContributionRepository(db *database.DB) ContributionRepository {
	return &contributionRepository{db: db}
}

var _ ContributionRepository = (*contributionRepository)(nil)

func (r *contributionRepository) Create(ctx context.Context, c *models.Contribution) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.SubmittedAt.IsZero() {
		c.SubmittedAt = time.Now()
	}
	c.Status = models.ContributionStatusPending

	claimsJSON, err := json.Marshal(c.Claims)
	if err != nil {
		return fmt.Errorf("failed to encode claims: %w", err)
	}
	conflictsJSON, err := json.Marshal(c.Conflicts)
	if err != nil {
		return fmt.Errorf("failed to encode conflicts: %w", err)
	}

	query := `
		INSERT INTO contributions (id, raw_input, submitted_by, submitted_at, claims, conflicts, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.db.Exec(ctx, query,
		c.ID, c.RawInput, c.SubmittedBy, c.SubmittedAt, claimsJSON, conflictsJSON, c.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to create contribution: %w", err)
	}
	return nil
}

func (r *contributionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Contribution, error) {
	query := `
		SELECT id, raw_input, submitted_by, submitted_at, claims, conflicts, status, resolved_by, resolved_at
		FROM contributions
		WHERE id = $1`

	c, err := scanContribution(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: contribution %s", apperrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get contribution: %w", err)
	}
	return c, nil
}

func (r *contributionRepository) ListByStatus(ctx context.Context, status string) ([]*models.Contribution, error) {
	query := `
		SELECT id, raw_input, submitted_by, submitted_at, claims, conflicts, status, resolved_by, resolved_at
		FROM contributions
		WHERE status = $1
		ORDER BY submitted_at ASC`

	rows, err := r.db.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list contributions: %w", err)
	}
	defer rows.Close()

	contributions := make([]*models.Contribution, 0)
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contribution: %w", err)
		}
		contributions = append(contributions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contributions: %w", err)
	}

	return contributions, nil
}

func (r *contributionRepository) MarkResolved(ctx context.Context, id uuid.UUID, status, resolvedBy string) (bool, error) {
	switch status {
	case models.ContributionStatusResolvedUpdate,
		models.ContributionStatusResolvedKeep,
		models.ContributionStatusResolvedNote,
		models.ContributionStatusExpired:
	default:
		return false, fmt.Errorf("%w: %q is not a terminal status", apperrors.ErrValidation, status)
	}

	// The status guard makes the transition one-way: resolved and expired
	// rows never match again.
	query := `
		UPDATE contributions
		SET status = $2, resolved_by = $3, resolved_at = now()
		WHERE id = $1 AND status = 'pending'`

	tag, err := r.db.Exec(ctx, query, id, status, resolvedBy)
	if err != nil {
		return false, fmt.Errorf("failed to resolve contribution: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *contributionRepository) ExpireOlderThan(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	query := `
		UPDATE contributions
		SET status = 'expired', resolved_at = now()
		WHERE status = 'pending' AND submitted_at < $1
		RETURNING id`

	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to expire contributions: %w", err)
	}
	defer rows.Close()

	var expired []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan expired id: %w", err)
		}
		expired = append(expired, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expired ids: %w", err)
	}
	return expired, nil
}

func scanContribution(row pgx.Row) (*models.Contribution, error) {
	var (
		c             models.Contribution
		claimsJSON    []byte
		conflictsJSON []byte
	)
	if err := row.Scan(
		&c.ID, &c.RawInput, &c.SubmittedBy, &c.SubmittedAt,
		&claimsJSON, &conflictsJSON, &c.Status, &c.ResolvedBy, &c.ResolvedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(claimsJSON, &c.Claims); err != nil {
		return nil, fmt.Errorf("failed to decode claims: %w", err)
	}
	if err := json.Unmarshal(conflictsJSON, &c.Conflicts); err != nil {
		return nil, fmt.Errorf("failed to decode conflicts: %w", err)
	}
	return &c, nil
}
