package extraction

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phonologic/brain-engine/pkg/models"
)

// pricingMatcher recognizes dollar amounts with an optional billing period
// and maps them onto a plan's pricing object.
type pricingMatcher struct {
	amount *regexp.Regexp
}

var (
	pricingAmountPattern = regexp.MustCompile(`\$(\d+(?:\.\d{1,2})?)\s*(?:/|per\s+)?\s*(month|mo|year|yr|annually|annual)?`)
	pricingHintPattern   = regexp.MustCompile(`(?i)\b(price|pricing|cost|costs|plan|charge|charges|subscription)\b`)
)

func newPricingMatcher() *pricingMatcher {
	return &pricingMatcher{amount: pricingAmountPattern}
}

func (m *pricingMatcher) Name() string { return "pricing" }

func (m *pricingMatcher) Match(sentence string) []models.Claim {
	if !strings.Contains(sentence, "$") {
		return nil
	}
	// Require a pricing word; a bare "$2M raised" is not a price.
	if !pricingHintPattern.MatchString(sentence) {
		return nil
	}

	matches := m.amount.FindAllStringSubmatch(sentence, -1)
	if len(matches) == 0 {
		return nil
	}

	plan := detectPlan(sentence)
	prices := make(map[string]any)
	confidence := 0.7

	for _, match := range matches {
		amount, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		period := normalizePeriod(match[2], sentence)
		if match[2] != "" {
			confidence = 0.85
		}
		prices["price_"+period] = formatPrice(amount, period)
	}
	if len(prices) == 0 {
		return nil
	}

	return []models.Claim{{
		Category:   models.CategoryPricing,
		Field:      plan,
		Value:      models.ObjectValue(prices),
		SourceText: sentence,
		Confidence: confidence,
	}}
}

// detectPlan picks the plan a price refers to. Unqualified prices go to the
// parent plan, the default consumer offering.
func detectPlan(sentence string) string {
	lower := strings.ToLower(sentence)
	switch {
	case strings.Contains(lower, "school plan"), strings.Contains(lower, "school pricing"):
		return "school_plan"
	case strings.Contains(lower, "enterprise"):
		return "enterprise_plan"
	default:
		return "parent_plan"
	}
}

func normalizePeriod(period, sentence string) string {
	switch period {
	case "year", "yr", "annual", "annually":
		return "annual"
	case "month", "mo":
		return "monthly"
	}
	// No explicit period on the amount itself; look at the sentence.
	lower := strings.ToLower(sentence)
	if strings.Contains(lower, "annual") || strings.Contains(lower, "year") {
		return "annual"
	}
	return "monthly"
}

func formatPrice(amount float64, period string) string {
	unit := "month"
	if period == "annual" {
		unit = "year"
	}
	return fmt.Sprintf("$%s/%s", strconv.FormatFloat(amount, 'f', -1, 64), unit)
}
