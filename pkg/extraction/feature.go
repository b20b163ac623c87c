package extraction

import (
	"regexp"
	"strings"

	"github.com/phonologic/brain-engine/pkg/models"
)

// featureMatcher recognizes assertions and denials about product features
// and produces boolean claims.
type featureMatcher struct{}

var (
	featureNegativePattern = regexp.MustCompile(`(?i)\b(?:we )?(?:don't have|do not have|don't support|do not support|doesn't support|no longer (?:have|support)|dropped|removed|there is no)\s+(?:a |an |the )?([a-z][a-z0-9 -]{2,40}?)(?:\s+(?:feature|yet|anymore|support))?\s*$`)
	featurePositivePattern = regexp.MustCompile(`(?i)\b(?:we (?:now )?(?:have|support|offer|ship|shipped|launched|added)|there is)\s+(?:a |an |the )?([a-z][a-z0-9 -]{2,40}?)(?:\s+(?:feature|now|support))?\s*$`)
)

func newFeatureMatcher() *featureMatcher {
	return &featureMatcher{}
}

func (m *featureMatcher) Name() string { return "feature" }

func (m *featureMatcher) Match(sentence string) []models.Claim {
	// Negation first: "we don't have X" also matches the positive pattern's
	// "we have" without the lookahead Go regexps lack.
	if match := featureNegativePattern.FindStringSubmatch(sentence); match != nil {
		return m.claim(sentence, match[1], false)
	}
	if match := featurePositivePattern.FindStringSubmatch(sentence); match != nil {
		return m.claim(sentence, match[1], true)
	}
	return nil
}

func (m *featureMatcher) claim(sentence, phrase string, present bool) []models.Claim {
	slug := featureSlug(phrase)
	if slug == "" {
		return nil
	}
	return []models.Claim{{
		Category:   models.CategoryProduct,
		Field:      "features." + slug,
		Value:      models.BoolValue(present),
		SourceText: sentence,
		Confidence: 0.7,
	}}
}

// featureSlug normalizes a feature phrase into a stable field suffix.
func featureSlug(phrase string) string {
	tokens := Tokenize(phrase)
	if len(tokens) == 0 {
		return ""
	}
	return strings.Join(tokens, "_")
}
