package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/phonologic/brain-engine/pkg/apperrors"
	"github.com/phonologic/brain-engine/pkg/audit"
	"github.com/phonologic/brain-engine/pkg/extraction"
	"github.com/phonologic/brain-engine/pkg/models"
)

type curationFixture struct {
	knowledge     *mockKnowledgeRepo
	contributions *mockContributionRepo
	auditRepo     *mockAuditRepository
	svc           CurationService
}

func newCurationFixture(t *testing.T) *curationFixture {
	t.Helper()
	logger := zap.NewNop()
	knowledge := newMockKnowledgeRepo()
	contributions := newMockContributionRepo()
	auditRepo := &mockAuditRepository{}
	auditService := NewAuditService(auditRepo, logger)
	cfg := testCurationConfig()

	detector := NewConflictDetector(&ConflictDetectorDeps{
		KnowledgeRepo:    knowledge,
		ContributionRepo: contributions,
		Config:           cfg,
		Logger:           logger,
	})
	staging := NewStagingService(&StagingServiceDeps{
		ContributionRepo: contributions,
		AuditService:     auditService,
		Config:           cfg,
		Logger:           logger,
	})
	svc := NewCurationService(&CurationServiceDeps{
		KnowledgeRepo:    knowledge,
		Extractor:        extraction.NewExtractor(logger),
		ConflictDetector: detector,
		StagingService:   staging,
		AuditService:     auditService,
		SecurityAuditor:  audit.NewSecurityAuditor(logger),
		Config:           cfg,
		Logger:           logger,
	})

	return &curationFixture{
		knowledge:     knowledge,
		contributions: contributions,
		auditRepo:     auditRepo,
		svc:           svc,
	}
}

func TestContribute_EmptyInput(t *testing.T) {
	f := newCurationFixture(t)

	_, err := f.svc.Contribute(context.Background(), "   ", "alice@example.com")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestContribute_OversizedInput(t *testing.T) {
	f := newCurationFixture(t)

	_, err := f.svc.Contribute(context.Background(), strings.Repeat("a", 8193), "alice@example.com")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestContribute_UnparseableTextIsAccepted(t *testing.T) {
	f := newCurationFixture(t)

	result, err := f.svc.Contribute(context.Background(), "What a lovely day outside", "alice@example.com")
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Nil(t, result.ContributionID)
	assert.Empty(t, result.Conflicts)

	count, err := f.knowledge.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestContribute_NewFactAutoMerges(t *testing.T) {
	f := newCurationFixture(t)

	result, err := f.svc.Contribute(context.Background(), "Maria is our lead designer", "alice@example.com")
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Nil(t, result.ContributionID)
	require.Len(t, result.MergedFields, 1)
	assert.Equal(t, "team.maria_role", result.MergedFields[0])

	entry, err := f.knowledge.Get(context.Background(), models.CategoryTeam, "maria_role")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Version)
	assert.Equal(t, "alice@example.com", entry.UpdatedBy)
	assert.True(t, entry.Value.Equal(models.StringValue("lead designer")))

	assert.Contains(t, f.auditRepo.actions(), models.AuditActionAutoMerge)
}

func TestContribute_RestatementIsNoOp(t *testing.T) {
	f := newCurationFixture(t)
	f.knowledge.seed(models.CategoryTeam, "stephen_role", models.StringValue("CEO"), 1, time.Now())

	result, err := f.svc.Contribute(context.Background(), "Stephen is our CEO", "alice@example.com")
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Empty(t, result.MergedFields)

	entry, err := f.knowledge.Get(context.Background(), models.CategoryTeam, "stephen_role")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Version) // unchanged
}

func TestContribute_ConflictIsStaged(t *testing.T) {
	f := newCurationFixture(t)
	f.knowledge.seed(models.CategoryTeam, "stephen_role", models.StringValue("CEO"), 1, time.Now())

	result, err := f.svc.Contribute(context.Background(), "Stephen is our CTO", "alice@example.com")
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	require.NotNil(t, result.ContributionID)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, models.ConflictKindValueMismatch, result.Conflicts[0].Kind)

	// Stored value untouched until a human decides.
	entry, err := f.knowledge.Get(context.Background(), models.CategoryTeam, "stephen_role")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Version)
	assert.True(t, entry.Value.Equal(models.StringValue("CEO")))

	staged, err := f.contributions.GetByID(context.Background(), *result.ContributionID)
	require.NoError(t, err)
	assert.Equal(t, models.ContributionStatusPending, staged.Status)
	assert.Equal(t, "Stephen is our CTO", staged.RawInput)
}

func TestContribute_MixedClaimsAllStageTogether(t *testing.T) {
	f := newCurationFixture(t)
	f.knowledge.seed(models.CategoryTeam, "stephen_role", models.StringValue("CEO"), 1, time.Now())

	// One conflicting claim, one clean claim, one sentence each.
	result, err := f.svc.Contribute(context.Background(),
		"Stephen is our CTO. Maria is our lead designer.", "alice@example.com")
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	require.NotNil(t, result.ContributionID)

	staged, err := f.contributions.GetByID(context.Background(), *result.ContributionID)
	require.NoError(t, err)
	assert.Len(t, staged.Claims, 2)
	assert.Len(t, staged.Conflicts, 1)

	// The clean claim is held with the contribution, not merged early.
	_, err = f.knowledge.Get(context.Background(), models.CategoryTeam, "maria_role")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestContribute_DuplicateGoesToQueueOnce(t *testing.T) {
	f := newCurationFixture(t)
	f.knowledge.seed(models.CategoryPricing, "parent_plan",
		models.ObjectValue(map[string]any{"price_monthly": "$25/month"}), 1, time.Now())

	first, err := f.svc.Contribute(context.Background(), "The parent plan price is $30 per month", "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, first.ContributionID)

	second, err := f.svc.Contribute(context.Background(), "The parent plan price is $30 a month", "bob@example.com")
	require.NoError(t, err)
	require.NotNil(t, second.ContributionID)
	require.Len(t, second.Conflicts, 1)
	assert.Equal(t, models.ConflictKindDuplicateCandidate, second.Conflicts[0].Kind)
}

func TestContribute_LostInsertRaceWithEqualValueIsNoOp(t *testing.T) {
	f := newCurationFixture(t)

	// A concurrent contributor commits the same fact between detection and
	// merge. The insert hits the unique constraint and the re-check finds
	// an agreeing entry, so the contribution still succeeds.
	f.knowledge.onInsert = func() {
		f.knowledge.seed(models.CategoryTeam, "maria_role", models.StringValue("lead designer"), 1, time.Now())
	}

	result, err := f.svc.Contribute(context.Background(), "Maria is our lead designer", "alice@example.com")
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Nil(t, result.ContributionID)
	assert.Empty(t, result.MergedFields)

	entry, err := f.knowledge.Get(context.Background(), models.CategoryTeam, "maria_role")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Version)
}

func TestContribute_LostInsertRaceWithDifferentValueIsStaged(t *testing.T) {
	f := newCurationFixture(t)

	// The concurrent entry disagrees with the claim, so the re-check finds
	// a conflict and the claim lands in the staging queue instead of
	// failing the contribution.
	f.knowledge.onInsert = func() {
		f.knowledge.seed(models.CategoryTeam, "maria_role", models.StringValue("CTO"), 1, time.Now())
	}

	result, err := f.svc.Contribute(context.Background(), "Maria is our lead designer", "alice@example.com")
	require.NoError(t, err)
	assert.Empty(t, result.MergedFields)

	pending, err := f.contributions.ListByStatus(context.Background(), models.ContributionStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Len(t, pending[0].Conflicts, 1)
	assert.Equal(t, models.ConflictKindValueMismatch, pending[0].Conflicts[0].Kind)

	// The concurrent winner's value stays in place until resolution.
	entry, err := f.knowledge.Get(context.Background(), models.CategoryTeam, "maria_role")
	require.NoError(t, err)
	assert.True(t, entry.Value.Equal(models.StringValue("CTO")))
}

func TestContribute_InjectionPayloadStoredAsData(t *testing.T) {
	f := newCurationFixture(t)

	// Suspicious text is screened and logged but still treated as data.
	result, err := f.svc.Contribute(context.Background(),
		"Robert'; DROP TABLE knowledge_entries-- is our CFO", "mallory@example.com")
	require.NoError(t, err)
	assert.NotNil(t, result)
}
