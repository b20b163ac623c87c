package extraction

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/phonologic/brain-engine/pkg/models"
)

// countMatcher recognizes "we have N <noun>" statements and maps them to
// operational counts.
type countMatcher struct{}

var countPattern = regexp.MustCompile(`(?i)\b(?:we (?:have|now have|signed|run)|there are|with)\s+(\d+)\s+([a-z][a-z ]{2,30}?)(?:\s+(?:now|so far|signed up|onboard|onboarded))?$`)

// countNouns maps noun phrases to count fields. Phrases not listed here map
// to "<noun>_count" with the noun singularized.
var countNouns = map[string]string{
	"pilot school": "pilot_count",
	"pilot":        "pilot_count",
	"school":       "school_count",
	"customer":     "customer_count",
	"user":         "user_count",
	"family":       "family_count",
	"employee":     "headcount",
}

func newCountMatcher() *countMatcher {
	return &countMatcher{}
}

func (m *countMatcher) Name() string { return "count" }

func (m *countMatcher) Match(sentence string) []models.Claim {
	match := countPattern.FindStringSubmatch(sentence)
	if match == nil {
		return nil
	}

	count, err := strconv.Atoi(match[1])
	if err != nil {
		return nil
	}

	noun := singularizePhrase(strings.TrimSpace(strings.ToLower(match[2])))
	field, ok := countNouns[noun]
	if !ok {
		field = strings.ReplaceAll(noun, " ", "_") + "_count"
	}

	return []models.Claim{{
		Category:   models.CategoryOperations,
		Field:      field,
		Value:      models.NumberValue(float64(count)),
		SourceText: sentence,
		Confidence: 0.75,
	}}
}

// singularizePhrase singularizes only the head noun of a phrase, so
// "pilot schools" becomes "pilot school".
func singularizePhrase(phrase string) string {
	words := strings.Fields(phrase)
	if len(words) == 0 {
		return phrase
	}
	words[len(words)-1] = inflection.Singular(words[len(words)-1])
	return strings.Join(words, " ")
}
