package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/phonologic/brain-engine/pkg/apperrors"
	"github.com/phonologic/brain-engine/pkg/database"
	"github.com/phonologic/brain-engine/pkg/models"
)

// KnowledgeRepository provides data access for curated knowledge entries.
type KnowledgeRepository interface {
	// Get returns the current entry for (category, field) without history.
	Get(ctx context.Context, category models.Category, field string) (*models.KnowledgeEntry, error)

	// GetWithHistory returns the entry including its full version history
	// (oldest first) and notes.
	GetWithHistory(ctx context.Context, category models.Category, field string) (*models.KnowledgeEntry, error)

	// List returns every entry, optionally restricted to one category.
	List(ctx context.Context, category *models.Category) ([]*models.KnowledgeEntry, error)

	// Insert creates a new entry at version 1 together with its first
	// history record.
	Insert(ctx context.Context, entry *models.KnowledgeEntry) error

	// UpdateVersioned applies a compare-and-swap update: the write succeeds
	// only if the stored version still equals expectedVersion. On success
	// the entry moves to expectedVersion+1 and a history record is
	// appended. Returns ErrStaleResolution when the version moved and
	// ErrNotFound when the entry no longer exists.
	UpdateVersioned(ctx context.Context, category models.Category, field string, value models.Value, updatedBy string, expectedVersion int) (*models.KnowledgeEntry, error)

	// Delete removes an entry and, via cascade, its history and notes.
	Delete(ctx context.Context, category models.Category, field string) error

	// AddNote attaches an annotation without touching value or version.
	AddNote(ctx context.Context, category models.Category, field, note, addedBy string) error

	// Count returns the total number of entries. Used by startup seeding.
	Count(ctx context.Context) (int, error)
}

type knowledgeRepository struct {
	db *database.DB
}

// NewKnowledgeRepository creates a new KnowledgeRepository.
func NewKnowledgeRepository(db *database.DB) KnowledgeRepository {
	return &knowledgeRepository{db: db}
}

var _ KnowledgeRepository = (*knowledgeRepository)(nil)

func (r *knowledgeRepository) Get(ctx context.Context, category models.Category, field string) (*models.KnowledgeEntry, error) {
	query := `
		SELECT id, category, field, value, version, updated_at, updated_by
		FROM knowledge_entries
		WHERE category = $1 AND field = $2`

	entry, err := scanEntry(r.db.QueryRow(ctx, query, category, field))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: entry %s/%s", apperrors.ErrNotFound, category, field)
		}
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return entry, nil
}

func (r *knowledgeRepository) GetWithHistory(ctx context.Context, category models.Category, field string) (*models.KnowledgeEntry, error) {
	entry, err := r.Get(ctx, category, field)
	if err != nil {
		return nil, err
	}

	historyQuery := `
		SELECT version, value, updated_at, updated_by
		FROM knowledge_entry_versions
		WHERE entry_id = $1
		ORDER BY version ASC`

	rows, err := r.db.Query(ctx, historyQuery, entry.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get entry history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			v        models.EntryVersion
			rawValue []byte
		)
		if err := rows.Scan(&v.Version, &rawValue, &v.UpdatedAt, &v.UpdatedBy); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if err := json.Unmarshal(rawValue, &v.Value); err != nil {
			return nil, fmt.Errorf("failed to decode history value: %w", err)
		}
		entry.History = append(entry.History, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	notesQuery := `
		SELECT id, note, added_by, created_at
		FROM knowledge_entry_notes
		WHERE entry_id = $1
		ORDER BY created_at ASC`

	noteRows, err := r.db.Query(ctx, notesQuery, entry.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get entry notes: %w", err)
	}
	defer noteRows.Close()

	for noteRows.Next() {
		var n models.EntryNote
		if err := noteRows.Scan(&n.ID, &n.Text, &n.AddedBy, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note row: %w", err)
		}
		entry.Notes = append(entry.Notes, n)
	}
	if err := noteRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", err)
	}

	return entry, nil
}

func (r *knowledgeRepository) List(ctx context.Context, category *models.Category) ([]*models.KnowledgeEntry, error) {
	query := `
		SELECT id, category, field, value, version, updated_at, updated_by
		FROM knowledge_entries`
	args := []any{}
	if category != nil {
		query += ` WHERE category = $1`
		args = append(args, *category)
	}
	query += ` ORDER BY category, field`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.KnowledgeEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}

	return entries, nil
}

func (r *knowledgeRepository) Insert(ctx context.Context, entry *models.KnowledgeEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.Version = 1
	entry.UpdatedAt = time.Now()

	rawValue, err := json.Marshal(entry.Value)
	if err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insertEntry := `
		INSERT INTO knowledge_entries (id, category, field, value, version, updated_at, updated_by)
		VALUES ($1, $2, $3, $4, 1, $5, $6)`
	if _, err := tx.Exec(ctx, insertEntry,
		entry.ID, entry.Category, entry.Field, rawValue, entry.UpdatedAt, entry.UpdatedBy,
	); err != nil {
		// Unique constraint violation (PostgreSQL error code 23505): a
		// concurrent writer created this (category, field) first.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s/%s", apperrors.ErrDuplicateEntry, entry.Category, entry.Field)
		}
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	insertVersion := `
		INSERT INTO knowledge_entry_versions (entry_id, version, value, updated_at, updated_by)
		VALUES ($1, 1, $2, $3, $4)`
	if _, err := tx.Exec(ctx, insertVersion,
		entry.ID, rawValue, entry.UpdatedAt, entry.UpdatedBy,
	); err != nil {
		return fmt.Errorf("failed to insert history record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit insert: %w", err)
	}
	return nil
}

func (r *knowledgeRepository) UpdateVersioned(ctx context.Context, category models.Category, field string, value models.Value, updatedBy string, expectedVersion int) (*models.KnowledgeEntry, error) {
	rawValue, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// The version guard in the WHERE clause is the compare-and-swap: a
	// concurrent writer that bumped the version makes this update match
	// zero rows.
	update := `
		UPDATE knowledge_entries
		SET value = $1, version = version + 1, updated_at = now(), updated_by = $2
		WHERE category = $3 AND field = $4 AND version = $5
		RETURNING id, version, updated_at`

	var (
		entryID   uuid.UUID
		version   int
		updatedAt time.Time
	)
	err = tx.QueryRow(ctx, update, rawValue, updatedBy, category, field, expectedVersion).
		Scan(&entryID, &version, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyCASFailure(ctx, category, field)
		}
		return nil, fmt.Errorf("failed to update entry: %w", err)
	}

	insertVersion := `
		INSERT INTO knowledge_entry_versions (entry_id, version, value, updated_at, updated_by)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.Exec(ctx, insertVersion, entryID, version, rawValue, updatedAt, updatedBy); err != nil {
		return nil, fmt.Errorf("failed to insert history record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}

	return &models.KnowledgeEntry{
		ID:        entryID,
		Category:  category,
		Field:     field,
		Value:     value,
		Version:   version,
		UpdatedAt: updatedAt,
		UpdatedBy: updatedBy,
	}, nil
}

// classifyCASFailure distinguishes a stale version from a vanished entry.
func (r *knowledgeRepository) classifyCASFailure(ctx context.Context, category models.Category, field string) error {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM knowledge_entries WHERE category = $1 AND field = $2)`,
		category, field,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to classify update failure: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: entry %s/%s", apperrors.ErrStaleResolution, category, field)
	}
	return fmt.Errorf("%w: entry %s/%s", apperrors.ErrNotFound, category, field)
}

func (r *knowledgeRepository) Delete(ctx context.Context, category models.Category, field string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_entries WHERE category = $1 AND field = $2`,
		category, field,
	)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: entry %s/%s", apperrors.ErrNotFound, category, field)
	}
	return nil
}

func (r *knowledgeRepository) AddNote(ctx context.Context, category models.Category, field, note, addedBy string) error {
	query := `
		INSERT INTO knowledge_entry_notes (entry_id, note, added_by)
		SELECT id, $3, $4 FROM knowledge_entries WHERE category = $1 AND field = $2`

	tag, err := r.db.Exec(ctx, query, category, field, note, addedBy)
	if err != nil {
		return fmt.Errorf("failed to add note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: entry %s/%s", apperrors.ErrNotFound, category, field)
	}
	return nil
}

func (r *knowledgeRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM knowledge_entries`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

// scanEntry scans one entry row from either a pgx.Row or pgx.Rows.
func scanEntry(row pgx.Row) (*models.KnowledgeEntry, error) {
	var (
		entry    models.KnowledgeEntry
		rawValue []byte
	)
	if err := row.Scan(
		&entry.ID, &entry.Category, &entry.Field, &rawValue,
		&entry.Version, &entry.UpdatedAt, &entry.UpdatedBy,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rawValue, &entry.Value); err != nil {
		return nil, fmt.Errorf("failed to decode entry value: %w", err)
	}
	return &entry, nil
}
