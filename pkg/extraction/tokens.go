package extraction

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// stopwords are dropped before overlap and relevance comparisons. The list
// is intentionally small; keyword matching over curated fields does not need
// a full IR stopword inventory.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "of": {}, "to": {}, "in": {}, "on": {}, "at": {},
	"for": {}, "and": {}, "or": {}, "our": {}, "we": {}, "us": {}, "it": {},
	"its": {}, "that": {}, "this": {}, "with": {}, "as": {}, "by": {},
	"do": {}, "does": {}, "did": {}, "have": {}, "has": {}, "had": {},
	"what": {}, "when": {}, "who": {}, "how": {}, "much": {}, "many": {},
}

// Tokenize lowercases, strips punctuation, removes stopwords and
// singularizes each remaining token. Used both by duplicate detection and
// by query relevance scoring, so the two sides of any comparison normalize
// identically.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '$' && r != '.'
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".")
		if f == "" {
			continue
		}
		if _, skip := stopwords[f]; skip {
			continue
		}
		tokens = append(tokens, inflection.Singular(f))
	}
	return tokens
}

// Overlap computes the Jaccard overlap of two token sets in [0,1]. Two empty
// sets overlap fully.
func Overlap(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
