package extraction

import (
	"strings"

	"go.uber.org/zap"

	"github.com/phonologic/brain-engine/pkg/models"
)

// Matcher recognizes one shape of assertion in a sentence and produces the
// corresponding claims. Matchers must tolerate arbitrary input and return
// nothing rather than fail.
type Matcher interface {
	Name() string
	Match(sentence string) []models.Claim
}

// Extractor runs an ordered registry of matchers over contributed text.
// Extraction never fails: malformed or unrecognizable input produces an
// empty claim list, and a panicking matcher is logged and skipped.
type Extractor struct {
	matchers []Matcher
	logger   *zap.Logger
}

// NewExtractor creates an extractor with the default matcher registry.
func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{
		matchers: []Matcher{
			newPricingMatcher(),
			newTimelineMatcher(),
			newTeamMatcher(),
			newCountMatcher(),
			newFeatureMatcher(),
		},
		logger: logger.Named("extraction"),
	}
}

// NewExtractorWithMatchers creates an extractor with a custom registry.
// Matchers run in order; claims for a (category, field) already produced by
// an earlier matcher are dropped.
func NewExtractorWithMatchers(logger *zap.Logger, matchers ...Matcher) *Extractor {
	return &Extractor{matchers: matchers, logger: logger.Named("extraction")}
}

// Extract produces every claim the registry recognizes in the text.
func (e *Extractor) Extract(text string) []models.Claim {
	var claims []models.Claim
	seen := make(map[string]struct{})

	for _, sentence := range splitSentences(text) {
		for _, m := range e.matchers {
			for _, claim := range e.runMatcher(m, sentence) {
				key := claim.Category.String() + "/" + claim.Field
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				claims = append(claims, claim)
			}
		}
	}

	return claims
}

// runMatcher isolates a single matcher so one bad matcher cannot take down
// the whole extraction.
func (e *Extractor) runMatcher(m Matcher, sentence string) (claims []models.Claim) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Matcher panicked, skipping",
				zap.String("matcher", m.Name()),
				zap.Any("panic", r))
			claims = nil
		}
	}()
	return m.Match(sentence)
}

// splitSentences breaks text on sentence boundaries. A period followed by a
// digit is treated as a decimal point, not a boundary.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		switch r {
		case '\n', ';', '!', '?':
			flushSentence(&current, &sentences)
		case '.':
			next := byte(' ')
			if i+1 < len(runes) && runes[i+1] < 128 {
				next = byte(runes[i+1])
			}
			if next >= '0' && next <= '9' {
				current.WriteRune(r)
			} else {
				flushSentence(&current, &sentences)
			}
		default:
			current.WriteRune(r)
		}
	}
	flushSentence(&current, &sentences)

	return sentences
}

func flushSentence(b *strings.Builder, out *[]string) {
	s := strings.TrimSpace(b.String())
	if s != "" {
		*out = append(*out, s)
	}
	b.Reset()
}
