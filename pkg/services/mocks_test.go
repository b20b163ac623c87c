package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/phonologic/brain-engine/pkg/apperrors"
	"github.com/phonologic/brain-engine/pkg/models"
)

// mockKnowledgeRepo is an in-memory KnowledgeRepository with real CAS
// semantics, so resolution and auto-merge tests exercise the same version
// checks the database enforces.
type mockKnowledgeRepo struct {
	entries map[string]*models.KnowledgeEntry

	// getErr, when set, is returned by Get regardless of stored state.
	getErr error
	// updateErrs is consumed one per UpdateVersioned call, letting tests
	// inject a stale failure on the first attempt only.
	updateErrs []error
	// onInsert, when set, runs before each Insert and can mutate the store
	// to simulate a concurrent writer landing first.
	onInsert func()
}

func newMockKnowledgeRepo() *mockKnowledgeRepo {
	return &mockKnowledgeRepo{entries: make(map[string]*models.KnowledgeEntry)}
}

func entryKey(category models.Category, field string) string {
	return string(category) + "/" + field
}

func (m *mockKnowledgeRepo) Get(ctx context.Context, category models.Category, field string) (*models.KnowledgeEntry, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	entry, ok := m.entries[entryKey(category, field)]
	if !ok {
		return nil, fmt.Errorf("entry %s/%s: %w", category, field, apperrors.ErrNotFound)
	}
	clone := *entry
	return &clone, nil
}

func (m *mockKnowledgeRepo) GetWithHistory(ctx context.Context, category models.Category, field string) (*models.KnowledgeEntry, error) {
	return m.Get(ctx, category, field)
}

func (m *mockKnowledgeRepo) List(ctx context.Context, category *models.Category) ([]*models.KnowledgeEntry, error) {
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var result []*models.KnowledgeEntry
	for _, k := range keys {
		entry := m.entries[k]
		if category != nil && entry.Category != *category {
			continue
		}
		clone := *entry
		result = append(result, &clone)
	}
	return result, nil
}

func (m *mockKnowledgeRepo) Insert(ctx context.Context, entry *models.KnowledgeEntry) error {
	if m.onInsert != nil {
		m.onInsert()
	}
	key := entryKey(entry.Category, entry.Field)
	if _, exists := m.entries[key]; exists {
		return fmt.Errorf("%w: %s", apperrors.ErrDuplicateEntry, key)
	}
	entry.ID = uuid.New()
	entry.Version = 1
	entry.UpdatedAt = time.Now()
	clone := *entry
	m.entries[key] = &clone
	return nil
}

func (m *mockKnowledgeRepo) UpdateVersioned(ctx context.Context, category models.Category, field string, value models.Value, updatedBy string, expectedVersion int) (*models.KnowledgeEntry, error) {
	if len(m.updateErrs) > 0 {
		err := m.updateErrs[0]
		m.updateErrs = m.updateErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	entry, ok := m.entries[entryKey(category, field)]
	if !ok {
		return nil, fmt.Errorf("entry %s/%s: %w", category, field, apperrors.ErrNotFound)
	}
	if entry.Version != expectedVersion {
		return nil, fmt.Errorf("entry %s/%s at version %d, expected %d: %w",
			category, field, entry.Version, expectedVersion, apperrors.ErrStaleResolution)
	}
	entry.Value = value
	entry.Version++
	entry.UpdatedBy = updatedBy
	entry.UpdatedAt = time.Now()
	clone := *entry
	return &clone, nil
}

func (m *mockKnowledgeRepo) Delete(ctx context.Context, category models.Category, field string) error {
	key := entryKey(category, field)
	if _, ok := m.entries[key]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.entries, key)
	return nil
}

func (m *mockKnowledgeRepo) AddNote(ctx context.Context, category models.Category, field, note, addedBy string) error {
	entry, ok := m.entries[entryKey(category, field)]
	if !ok {
		return fmt.Errorf("entry %s/%s: %w", category, field, apperrors.ErrNotFound)
	}
	entry.Notes = append(entry.Notes, models.EntryNote{
		ID:        uuid.New(),
		Text:      note,
		AddedBy:   addedBy,
		CreatedAt: time.Now(),
	})
	return nil
}

func (m *mockKnowledgeRepo) Count(ctx context.Context) (int, error) {
	return len(m.entries), nil
}

// seed stores an entry at a given version without going through Insert.
func (m *mockKnowledgeRepo) seed(category models.Category, field string, value models.Value, version int, updatedAt time.Time) {
	m.entries[entryKey(category, field)] = &models.KnowledgeEntry{
		ID:        uuid.New(),
		Category:  category,
		Field:     field,
		Value:     value,
		Version:   version,
		UpdatedAt: updatedAt,
		UpdatedBy: "seed@example.com",
	}
}

// mockContributionRepo is an in-memory ContributionRepository enforcing the
// same one-way status transitions as the real table.
type mockContributionRepo struct {
	contributions map[uuid.UUID]*models.Contribution
	order         []uuid.UUID
}

func newMockContributionRepo() *mockContributionRepo {
	return &mockContributionRepo{contributions: make(map[uuid.UUID]*models.Contribution)}
}

func (m *mockContributionRepo) Create(ctx context.Context, c *models.Contribution) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.SubmittedAt.IsZero() {
		c.SubmittedAt = time.Now()
	}
	c.Status = models.ContributionStatusPending
	clone := *c
	m.contributions[c.ID] = &clone
	m.order = append(m.order, c.ID)
	return nil
}

func (m *mockContributionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Contribution, error) {
	c, ok := m.contributions[id]
	if !ok {
		return nil, fmt.Errorf("contribution %s: %w", id, apperrors.ErrNotFound)
	}
	clone := *c
	return &clone, nil
}

func (m *mockContributionRepo) ListByStatus(ctx context.Context, status string) ([]*models.Contribution, error) {
	var result []*models.Contribution
	for _, id := range m.order {
		c := m.contributions[id]
		if c.Status != status {
			continue
		}
		clone := *c
		result = append(result, &clone)
	}
	return result, nil
}

func (m *mockContributionRepo) MarkResolved(ctx context.Context, id uuid.UUID, status, resolvedBy string) (bool, error) {
	if models.TerminalStatusFor(models.ResolutionActionUpdate) != status &&
		models.TerminalStatusFor(models.ResolutionActionKeep) != status &&
		models.TerminalStatusFor(models.ResolutionActionAddNote) != status {
		return false, fmt.Errorf("%w: status %q is not terminal", apperrors.ErrValidation, status)
	}
	c, ok := m.contributions[id]
	if !ok || c.Status != models.ContributionStatusPending {
		return false, nil
	}
	now := time.Now()
	c.Status = status
	c.ResolvedBy = &resolvedBy
	c.ResolvedAt = &now
	return true, nil
}

func (m *mockContributionRepo) ExpireOlderThan(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	var expired []uuid.UUID
	for _, id := range m.order {
		c := m.contributions[id]
		if c.Status == models.ContributionStatusPending && c.SubmittedAt.Before(cutoff) {
			c.Status = models.ContributionStatusExpired
			expired = append(expired, id)
		}
	}
	return expired, nil
}

// mockAuditRepository records audit entries in memory.
type mockAuditRepository struct {
	entries []*models.AuditLogEntry

	createErr error
}

func (m *mockAuditRepository) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	if m.createErr != nil {
		return m.createErr
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepository) GetByEntry(ctx context.Context, category models.Category, field string, limit int) ([]*models.AuditLogEntry, error) {
	var result []*models.AuditLogEntry
	for _, e := range m.entries {
		if e.Category == category && e.Field == field {
			result = append(result, e)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockAuditRepository) GetByContribution(ctx context.Context, contributionID uuid.UUID) ([]*models.AuditLogEntry, error) {
	var result []*models.AuditLogEntry
	for _, e := range m.entries {
		if e.ContributionID != nil && *e.ContributionID == contributionID {
			result = append(result, e)
		}
	}
	return result, nil
}

// actions returns the recorded audit actions in order, for assertions.
func (m *mockAuditRepository) actions() []string {
	result := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		result = append(result, e.Action)
	}
	return result
}
