package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phonologic/brain-engine/pkg/auth"
	"github.com/phonologic/brain-engine/pkg/models"
	"github.com/phonologic/brain-engine/pkg/services"
)

// devMiddleware builds an auth middleware with verification disabled, so
// requests without an Authorization header act as an admin dev identity.
func devMiddleware() *auth.Middleware {
	authService := auth.NewAuthService(nil, false, "tester@example.com", zap.NewNop())
	return auth.NewMiddleware(authService, zap.NewNop())
}

// mockJWKSClient returns canned claims for token-based auth tests.
type mockJWKSClient struct {
	claims *auth.Claims
	err    error
}

func (m *mockJWKSClient) ValidateToken(tokenString string) (*auth.Claims, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.claims, nil
}

func (m *mockJWKSClient) Close() {}

// tokenMiddleware builds an auth middleware that validates bearer tokens
// against the given mock JWKS client.
func tokenMiddleware(jwks *mockJWKSClient) *auth.Middleware {
	authService := auth.NewAuthService(jwks, true, "", zap.NewNop())
	return auth.NewMiddleware(authService, zap.NewNop())
}

type mockCurationService struct {
	contributeFunc func(ctx context.Context, text, submittedBy string) (*services.ContributeResult, error)
	lastText       string
	lastActor      string
}

func (m *mockCurationService) Contribute(ctx context.Context, text, submittedBy string) (*services.ContributeResult, error) {
	m.lastText = text
	m.lastActor = submittedBy
	return m.contributeFunc(ctx, text, submittedBy)
}

type mockStagingService struct {
	pending []*models.Contribution
	err     error
}

func (m *mockStagingService) Stage(ctx context.Context, rawInput, submittedBy string, claims []models.Claim, conflicts []models.Conflict) (*models.Contribution, error) {
	return nil, nil
}

func (m *mockStagingService) ListPending(ctx context.Context) ([]*models.Contribution, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.pending, nil
}

func (m *mockStagingService) Expire(ctx context.Context) ([]uuid.UUID, error) {
	return nil, nil
}

type mockResolutionService struct {
	resolveFunc func(ctx context.Context, id uuid.UUID, action, resolvedBy string) (*services.ResolutionResult, error)
	lastID      uuid.UUID
	lastAction  string
	lastActor   string
}

func (m *mockResolutionService) Resolve(ctx context.Context, id uuid.UUID, action, resolvedBy string) (*services.ResolutionResult, error) {
	m.lastID = id
	m.lastAction = action
	m.lastActor = resolvedBy
	return m.resolveFunc(ctx, id, action, resolvedBy)
}

type mockQueryService struct {
	answerFunc   func(ctx context.Context, question string, category *models.Category) (*services.QueryAnswer, error)
	lastQuestion string
	lastCategory *models.Category
}

func (m *mockQueryService) Answer(ctx context.Context, question string, category *models.Category) (*services.QueryAnswer, error) {
	m.lastQuestion = question
	m.lastCategory = category
	return m.answerFunc(ctx, question, category)
}

type recordedEntryChange struct {
	action   string
	category models.Category
	field    string
	actor    string
}

type mockAuditService struct {
	entryChanges []recordedEntryChange
	trail        []*models.AuditLogEntry
	trailErr     error
}

func (m *mockAuditService) RecordEntryChange(ctx context.Context, action string, category models.Category, field string, oldValue, newValue *models.Value, contributionID *uuid.UUID, actor string) {
	m.entryChanges = append(m.entryChanges, recordedEntryChange{
		action:   action,
		category: category,
		field:    field,
		actor:    actor,
	})
}

func (m *mockAuditService) RecordContribution(ctx context.Context, action string, contributionID uuid.UUID, actor string) {
}

func (m *mockAuditService) EntryTrail(ctx context.Context, category models.Category, field string, limit int) ([]*models.AuditLogEntry, error) {
	if m.trailErr != nil {
		return nil, m.trailErr
	}
	return m.trail, nil
}

// mockEntriesRepo implements KnowledgeRepository with function fields for
// the methods the entries handler exercises.
type mockEntriesRepo struct {
	getWithHistoryFunc func(ctx context.Context, category models.Category, field string) (*models.KnowledgeEntry, error)
	listFunc           func(ctx context.Context, category *models.Category) ([]*models.KnowledgeEntry, error)
	deleteFunc         func(ctx context.Context, category models.Category, field string) error
}

func (m *mockEntriesRepo) Get(ctx context.Context, category models.Category, field string) (*models.KnowledgeEntry, error) {
	return m.getWithHistoryFunc(ctx, category, field)
}

func (m *mockEntriesRepo) GetWithHistory(ctx context.Context, category models.Category, field string) (*models.KnowledgeEntry, error) {
	return m.getWithHistoryFunc(ctx, category, field)
}

func (m *mockEntriesRepo) List(ctx context.Context, category *models.Category) ([]*models.KnowledgeEntry, error) {
	return m.listFunc(ctx, category)
}

func (m *mockEntriesRepo) Insert(ctx context.Context, entry *models.KnowledgeEntry) error {
	return nil
}

func (m *mockEntriesRepo) UpdateVersioned(ctx context.Context, category models.Category, field string, value models.Value, updatedBy string, expectedVersion int) (*models.KnowledgeEntry, error) {
	return nil, nil
}

func (m *mockEntriesRepo) Delete(ctx context.Context, category models.Category, field string) error {
	return m.deleteFunc(ctx, category, field)
}

func (m *mockEntriesRepo) AddNote(ctx context.Context, category models.Category, field, note, addedBy string) error {
	return nil
}

func (m *mockEntriesRepo) Count(ctx context.Context) (int, error) {
	return 0, nil
}

func pricingEntry() *models.KnowledgeEntry {
	return &models.KnowledgeEntry{
		ID:        uuid.New(),
		Category:  models.CategoryPricing,
		Field:     "parent_plan",
		Value:     models.StringValue("$25/month"),
		Version:   2,
		UpdatedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		UpdatedBy: "stephen@phonologic.ai",
	}
}
