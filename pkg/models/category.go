package models

import (
	"fmt"

	"github.com/phonologic/brain-engine/pkg/apperrors"
)

// Category partitions the knowledge base. The set is closed: contributions
// and queries referencing anything else are rejected.
type Category string

const (
	CategoryCompany    Category = "company"
	CategoryPricing    Category = "pricing"
	CategoryTimeline   Category = "timeline"
	CategoryTeam       Category = "team"
	CategoryProduct    Category = "product"
	CategoryMilestone  Category = "milestone"
	CategoryCompetitor Category = "competitor"
	CategoryOperations Category = "operations"
	CategoryMarketing  Category = "marketing"
)

// AllCategories lists every valid category, in display order.
var AllCategories = []Category{
	CategoryCompany,
	CategoryPricing,
	CategoryTimeline,
	CategoryTeam,
	CategoryProduct,
	CategoryMilestone,
	CategoryCompetitor,
	CategoryOperations,
	CategoryMarketing,
}

// ParseCategory validates a raw category string.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	for _, known := range AllCategories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown category %q", apperrors.ErrValidation, s)
}

func (c Category) String() string {
	return string(c)
}
