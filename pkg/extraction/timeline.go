package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/phonologic/brain-engine/pkg/models"
)

// timelineMatcher recognizes concrete dates and attributes them to a named
// milestone when the sentence hints at one.
type timelineMatcher struct{}

var (
	// "January 28, 2026" / "Jan 28 2026"
	namedDatePattern = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,)?\s*(\d{4})?\b`)
	// "2026-01-28"
	isoDatePattern = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
)

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// milestone hints are checked in order; the first hit names the field.
var milestoneHints = []struct {
	keyword string
	field   string
}{
	{"private beta", "private_beta"},
	{"beta", "private_beta"},
	{"public launch", "public_launch"},
	{"launch", "public_launch"},
	{"ship", "public_launch"},
	{"fundrais", "fundraise"},
	{"demo", "demo_day"},
}

func newTimelineMatcher() *timelineMatcher {
	return &timelineMatcher{}
}

func (m *timelineMatcher) Name() string { return "timeline" }

func (m *timelineMatcher) Match(sentence string) []models.Claim {
	date, ok := parseDate(sentence)
	if !ok {
		return nil
	}

	field := "milestone"
	confidence := 0.6
	lower := strings.ToLower(sentence)
	for _, hint := range milestoneHints {
		if strings.Contains(lower, hint.keyword) {
			field = hint.field
			confidence = 0.8
			break
		}
	}

	return []models.Claim{{
		Category:   models.CategoryTimeline,
		Field:      field,
		Value:      models.DateValue(date),
		SourceText: sentence,
		Confidence: confidence,
	}}
}

func parseDate(sentence string) (time.Time, bool) {
	if m := isoDatePattern.FindStringSubmatch(sentence); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
		}
	}

	if m := namedDatePattern.FindStringSubmatch(sentence); m != nil {
		prefix := strings.ToLower(m[1])
		if len(prefix) > 3 {
			prefix = prefix[:3]
		}
		month, ok := monthsByPrefix[prefix]
		if !ok {
			return time.Time{}, false
		}
		day, _ := strconv.Atoi(m[2])
		if day < 1 || day > 31 {
			return time.Time{}, false
		}
		year := time.Now().UTC().Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
		}
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
	}

	return time.Time{}, false
}
