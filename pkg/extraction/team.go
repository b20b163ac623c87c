package extraction

import (
	"regexp"
	"strings"

	"github.com/phonologic/brain-engine/pkg/models"
)

// teamMatcher recognizes "Name is (our) ROLE" statements and records the
// person's role.
type teamMatcher struct{}

var (
	// "Stephen is our CEO", "Joey is the CTO", "Marysia joined as designer"
	roleAssertPattern = regexp.MustCompile(`\b([A-Z][a-z]+)\s+(?:is|will be|joined as|became)\s+(?:our\s+|the\s+|a\s+|an\s+)?([A-Za-z][A-Za-z /-]{1,40}?)(?:\s+(?:of|at|for)\b.*)?$`)

	roleKeywords = []string{
		"ceo", "cto", "coo", "cfo", "cpo",
		"founder", "co-founder", "cofounder",
		"engineer", "designer", "developer",
		"head of", "lead", "advisor", "teacher",
	}
)

func newTeamMatcher() *teamMatcher {
	return &teamMatcher{}
}

func (m *teamMatcher) Name() string { return "team" }

func (m *teamMatcher) Match(sentence string) []models.Claim {
	match := roleAssertPattern.FindStringSubmatch(sentence)
	if match == nil {
		return nil
	}

	name := match[1]
	role := strings.TrimSpace(match[2])
	if !isRole(role) {
		return nil
	}

	return []models.Claim{{
		Category:   models.CategoryTeam,
		Field:      strings.ToLower(name) + "_role",
		Value:      models.StringValue(normalizeRole(role)),
		SourceText: sentence,
		Confidence: 0.9,
	}}
}

func isRole(candidate string) bool {
	lower := strings.ToLower(candidate)
	for _, kw := range roleKeywords {
		if strings.HasPrefix(lower, kw) || strings.Contains(lower, " "+kw) {
			return true
		}
	}
	return false
}

// normalizeRole uppercases recognized acronyms and leaves everything else
// as written.
func normalizeRole(role string) string {
	switch strings.ToLower(role) {
	case "ceo", "cto", "coo", "cfo", "cpo":
		return strings.ToUpper(role)
	default:
		return role
	}
}
