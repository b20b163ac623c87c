package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/phonologic/brain-engine/pkg/config"
	"github.com/phonologic/brain-engine/pkg/models"
)

func testCurationConfig() config.CurationConfig {
	return config.CurationConfig{
		RetentionHours:     168,
		DuplicateThreshold: 0.8,
		RecencyWindowHours: 24,
		MaxInputLength:     8192,
	}
}

func newTestDetector(knowledge *mockKnowledgeRepo, contributions *mockContributionRepo, now time.Time) ConflictDetector {
	return NewConflictDetector(&ConflictDetectorDeps{
		KnowledgeRepo:    knowledge,
		ContributionRepo: contributions,
		Config:           testCurationConfig(),
		Logger:           zap.NewNop(),
		Now:              func() time.Time { return now },
	})
}

func TestDetect_NewFieldNoConflict(t *testing.T) {
	detector := newTestDetector(newMockKnowledgeRepo(), newMockContributionRepo(), time.Now())

	claim := models.Claim{
		Category:   models.CategoryTeam,
		Field:      "maria_role",
		Value:      models.StringValue("Head of Sales"),
		SourceText: "Maria is our Head of Sales",
		Confidence: 0.9,
	}

	conflict, err := detector.Detect(context.Background(), claim)
	require.NoError(t, err)
	assert.Nil(t, conflict)
}

func TestDetect_EqualValueNoConflict(t *testing.T) {
	knowledge := newMockKnowledgeRepo()
	knowledge.seed(models.CategoryTeam, "stephen_role", models.StringValue("CEO"), 1, time.Now().Add(-48*time.Hour))
	detector := newTestDetector(knowledge, newMockContributionRepo(), time.Now())

	claim := models.Claim{
		Category:   models.CategoryTeam,
		Field:      "stephen_role",
		Value:      models.StringValue("ceo"), // case-insensitive match
		SourceText: "Stephen is the ceo",
		Confidence: 0.9,
	}

	conflict, err := detector.Detect(context.Background(), claim)
	require.NoError(t, err)
	assert.Nil(t, conflict)
}

func TestDetect_EqualValueWinsOverPendingDuplicate(t *testing.T) {
	knowledge := newMockKnowledgeRepo()
	knowledge.seed(models.CategoryTeam, "stephen_role", models.StringValue("CEO"), 1, time.Now().Add(-48*time.Hour))

	// Someone already staged a disagreeing claim about the same field.
	contributions := newMockContributionRepo()
	err := contributions.Create(context.Background(), &models.Contribution{
		RawInput:    "Stephen is our CTO",
		SubmittedBy: "bob@example.com",
		Claims: []models.Claim{{
			Category:   models.CategoryTeam,
			Field:      "stephen_role",
			Value:      models.StringValue("CTO"),
			SourceText: "Stephen is our CTO",
			Confidence: 0.9,
		}},
	})
	require.NoError(t, err)

	detector := newTestDetector(knowledge, contributions, time.Now())

	// A claim agreeing with the store is clean even while that queue item
	// waits for review.
	claim := models.Claim{
		Category:   models.CategoryTeam,
		Field:      "stephen_role",
		Value:      models.StringValue("CEO"),
		SourceText: "Stephen is our CEO",
		Confidence: 0.9,
	}

	conflict, err := detector.Detect(context.Background(), claim)
	require.NoError(t, err)
	assert.Nil(t, conflict)
}

func TestDetect_ValueMismatch(t *testing.T) {
	now := time.Now()
	knowledge := newMockKnowledgeRepo()
	existing := models.StringValue("CEO")
	knowledge.seed(models.CategoryTeam, "stephen_role", existing, 3, now.Add(-72*time.Hour))
	detector := newTestDetector(knowledge, newMockContributionRepo(), now)

	claim := models.Claim{
		Category:   models.CategoryTeam,
		Field:      "stephen_role",
		Value:      models.StringValue("CTO"),
		SourceText: "Stephen is the CTO",
		Confidence: 0.9,
	}

	conflict, err := detector.Detect(context.Background(), claim)
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, models.ConflictKindValueMismatch, conflict.Kind)
	require.NotNil(t, conflict.ExistingValue)
	assert.True(t, conflict.ExistingValue.Equal(existing))
	assert.Contains(t, conflict.Explanation, "You said: CTO")
	assert.Contains(t, conflict.Explanation, "Brain says: CEO")

	// 0.5 * 0.9 extraction weight, string specificity 0.1, no recency bump.
	assert.InDelta(t, 0.55, conflict.Confidence, 0.001)
}

func TestDetect_RecencyBumpsConfidence(t *testing.T) {
	now := time.Now()
	knowledge := newMockKnowledgeRepo()
	knowledge.seed(models.CategoryOperations, "pilot_count", models.NumberValue(3), 1, now.Add(-1*time.Hour))
	detector := newTestDetector(knowledge, newMockContributionRepo(), now)

	claim := models.Claim{
		Category:   models.CategoryOperations,
		Field:      "pilot_count",
		Value:      models.NumberValue(5),
		SourceText: "We now have 5 pilot schools",
		Confidence: 0.75,
	}

	conflict, err := detector.Detect(context.Background(), claim)
	require.NoError(t, err)
	require.NotNil(t, conflict)

	// 0.5 * 0.75, number specificity 0.3, recency bump 0.2.
	assert.InDelta(t, 0.875, conflict.Confidence, 0.001)
}

func TestDetect_ConfidenceClampedToOne(t *testing.T) {
	now := time.Now()
	knowledge := newMockKnowledgeRepo()
	knowledge.seed(models.CategoryTimeline, "private_beta",
		models.DateValue(time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)), 1, now.Add(-time.Minute))
	detector := newTestDetector(knowledge, newMockContributionRepo(), now)

	claim := models.Claim{
		Category:   models.CategoryTimeline,
		Field:      "private_beta",
		Value:      models.DateValue(time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)),
		SourceText: "Private beta moves to February 15",
		Confidence: 1.0,
	}

	conflict, err := detector.Detect(context.Background(), claim)
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, 1.0, conflict.Confidence)
}

func TestDetect_DuplicateOfPendingSameField(t *testing.T) {
	contributions := newMockContributionRepo()
	staged := models.Claim{
		Category:   models.CategoryPricing,
		Field:      "parent_plan",
		Value:      models.StringValue("$30/month"),
		SourceText: "Parent plan is now $30/month",
		Confidence: 0.85,
	}
	err := contributions.Create(context.Background(), &models.Contribution{
		RawInput:    staged.SourceText,
		SubmittedBy: "alice@example.com",
		Claims:      []models.Claim{staged},
	})
	require.NoError(t, err)

	detector := newTestDetector(newMockKnowledgeRepo(), contributions, time.Now())

	claim := models.Claim{
		Category:   models.CategoryPricing,
		Field:      "parent_plan",
		Value:      models.StringValue("$35/month"),
		SourceText: "Actually the parent plan costs $35/month",
		Confidence: 0.85,
	}

	conflict, err := detector.Detect(context.Background(), claim)
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, models.ConflictKindDuplicateCandidate, conflict.Kind)
	require.NotNil(t, conflict.ExistingValue)
	assert.True(t, conflict.ExistingValue.Equal(staged.Value))
}

func TestDetect_DuplicateByTokenOverlap(t *testing.T) {
	contributions := newMockContributionRepo()
	staged := models.Claim{
		Category:   models.CategoryPricing,
		Field:      "parent_plan",
		Value:      models.StringValue("$30/month"),
		SourceText: "the parent plan price is $30 per month",
		Confidence: 0.85,
	}
	err := contributions.Create(context.Background(), &models.Contribution{
		RawInput:    staged.SourceText,
		SubmittedBy: "alice@example.com",
		Claims:      []models.Claim{staged},
	})
	require.NoError(t, err)

	detector := newTestDetector(newMockKnowledgeRepo(), contributions, time.Now())

	// Different field slug, near-identical sentence.
	claim := models.Claim{
		Category:   models.CategoryPricing,
		Field:      "parent_plan_price",
		Value:      models.StringValue("$30/month"),
		SourceText: "the parent plan price is $30 a month",
		Confidence: 0.85,
	}

	conflict, err := detector.Detect(context.Background(), claim)
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, models.ConflictKindDuplicateCandidate, conflict.Kind)
	assert.GreaterOrEqual(t, conflict.Confidence, 0.8)
}

func TestDetect_UnverifiableBoolAssertion(t *testing.T) {
	knowledge := newMockKnowledgeRepo()
	knowledge.seed(models.CategoryProduct, "features.lesson_planning", models.BoolValue(true), 1, time.Now().Add(-time.Hour))
	detector := newTestDetector(knowledge, newMockContributionRepo(), time.Now())

	claim := models.Claim{
		Category:   models.CategoryProduct,
		Field:      "features.lesson_planning_beta",
		Value:      models.BoolValue(false),
		SourceText: "We don't support lesson planning in beta",
		Confidence: 0.7,
	}

	conflict, err := detector.Detect(context.Background(), claim)
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, models.ConflictKindUnverifiable, conflict.Kind)
	assert.Nil(t, conflict.ExistingValue)
}

func TestDetect_UnrelatedBoolIsNotFlagged(t *testing.T) {
	knowledge := newMockKnowledgeRepo()
	knowledge.seed(models.CategoryProduct, "features.grading", models.BoolValue(true), 1, time.Now())
	detector := newTestDetector(knowledge, newMockContributionRepo(), time.Now())

	claim := models.Claim{
		Category:   models.CategoryProduct,
		Field:      "features.offline_mode",
		Value:      models.BoolValue(false),
		SourceText: "Offline mode is not supported",
		Confidence: 0.7,
	}

	conflict, err := detector.Detect(context.Background(), claim)
	require.NoError(t, err)
	assert.Nil(t, conflict)
}
