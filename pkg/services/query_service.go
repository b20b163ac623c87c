package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/phonologic/brain-engine/pkg/config"
	"github.com/phonologic/brain-engine/pkg/extraction"
	"github.com/phonologic/brain-engine/pkg/llm"
	"github.com/phonologic/brain-engine/pkg/models"
	"github.com/phonologic/brain-engine/pkg/repositories"
	"github.com/phonologic/brain-engine/pkg/retry"
)

// RefusalText is returned verbatim when no stored fact scores above the
// minimum. The engine never guesses.
const RefusalText = "I don't have enough information in the brain to answer that."

const phrasingSystemMessage = `You rephrase verified facts into a short, natural answer.
Use ONLY the facts provided. Do not add, infer, or qualify anything beyond them.
Answer in at most three sentences.`

// SourceField identifies one stored fact that contributed to an answer.
type SourceField struct {
	Category models.Category `json:"category"`
	Field    string          `json:"field"`
	Value    string          `json:"value"`
	Score    float64         `json:"score"`
}

// QueryAnswer is the engine's response to a question.
type QueryAnswer struct {
	Text         string        `json:"text"`
	Refused      bool          `json:"refused"`
	SourceFields []SourceField `json:"source_fields,omitempty"`
}

// QueryService answers questions from stored knowledge only. Retrieval is
// lexical; a language model, when configured, only rephrases what retrieval
// already found.
type QueryService interface {
	// Answer scores stored entries against the question and renders the best
	// matches, or refuses when nothing scores high enough.
	Answer(ctx context.Context, question string, category *models.Category) (*QueryAnswer, error)
}

// QueryServiceDeps holds the dependencies for the query service.
type QueryServiceDeps struct {
	KnowledgeRepo repositories.KnowledgeRepository
	Config        config.QueryConfig
	Logger        *zap.Logger

	// LLMClient is optional. When nil, template rendering is used.
	LLMClient llm.LLMClient
}

type queryService struct {
	knowledgeRepo repositories.KnowledgeRepository
	cfg           config.QueryConfig
	logger        *zap.Logger
	llmClient     llm.LLMClient
}

// NewQueryService creates a new QueryService.
func NewQueryService(deps *QueryServiceDeps) QueryService {
	return &queryService{
		knowledgeRepo: deps.KnowledgeRepo,
		cfg:           deps.Config,
		logger:        deps.Logger.Named("query"),
		llmClient:     deps.LLMClient,
	}
}

var _ QueryService = (*queryService)(nil)

var fieldSeparators = strings.NewReplacer(".", " ", "_", " ", "/", " ")

func (s *queryService) Answer(ctx context.Context, question string, category *models.Category) (*QueryAnswer, error) {
	questionTokens := extraction.Tokenize(question)
	if len(questionTokens) == 0 {
		return &QueryAnswer{Text: RefusalText, Refused: true}, nil
	}

	entries, err := s.knowledgeRepo.List(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	scored := s.score(questionTokens, entries)
	if len(scored) == 0 {
		s.logger.Info("Refusing query, no entry scored above minimum",
			zap.String("question", question))
		return &QueryAnswer{Text: RefusalText, Refused: true}, nil
	}

	answer := &QueryAnswer{SourceFields: make([]SourceField, 0, len(scored))}
	sentences := make([]string, 0, len(scored))
	for _, match := range scored {
		answer.SourceFields = append(answer.SourceFields, SourceField{
			Category: match.entry.Category,
			Field:    match.entry.Field,
			Value:    match.entry.Value.Display(),
			Score:    match.score,
		})
		sentences = append(sentences, renderFact(match.entry))
	}
	answer.Text = strings.Join(sentences, " ")

	if s.llmClient != nil {
		if phrased, err := s.phrase(ctx, question, sentences); err != nil {
			// Templates are always a valid answer. Never fail a query on
			// the phrasing layer.
			s.logger.Warn("LLM phrasing failed, using template answer", zap.Error(err))
		} else if phrased != "" {
			answer.Text = phrased
		}
	}
	return answer, nil
}

type scoredEntry struct {
	entry *models.KnowledgeEntry
	score float64
}

// score ranks entries by what fraction of the question's tokens each entry
// covers, keeping those at or above MinScore, best first.
func (s *queryService) score(questionTokens []string, entries []*models.KnowledgeEntry) []scoredEntry {
	question := make(map[string]struct{}, len(questionTokens))
	for _, t := range questionTokens {
		question[t] = struct{}{}
	}

	scored := make([]scoredEntry, 0, len(entries))
	for _, entry := range entries {
		text := fieldSeparators.Replace(entry.Category.String() + " " + entry.Field + " " + entry.Value.Display())
		covered := make(map[string]struct{})
		for _, t := range extraction.Tokenize(text) {
			if _, ok := question[t]; ok {
				covered[t] = struct{}{}
			}
		}
		score := float64(len(covered)) / float64(len(question))
		if score >= s.cfg.MinScore {
			scored = append(scored, scoredEntry{entry: entry, score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].entry.Field < scored[j].entry.Field
	})
	if len(scored) > s.cfg.MaxResults {
		scored = scored[:s.cfg.MaxResults]
	}
	return scored
}

// renderFact turns one entry into a category-appropriate sentence.
func renderFact(entry *models.KnowledgeEntry) string {
	display := entry.Value.Display()
	switch entry.Category {
	case models.CategoryPricing:
		return fmt.Sprintf("The %s pricing is %s.", humanizeField(entry.Field), display)
	case models.CategoryTeam:
		if name, ok := strings.CutSuffix(entry.Field, "_role"); ok {
			return fmt.Sprintf("%s is our %s.", capitalize(name), display)
		}
		return fmt.Sprintf("Team %s: %s.", humanizeField(entry.Field), display)
	case models.CategoryTimeline, models.CategoryMilestone:
		return fmt.Sprintf("The %s is scheduled for %s.", humanizeField(entry.Field), display)
	default:
		return fmt.Sprintf("%s: %s.", humanizeField(entry.Field), display)
	}
}

func humanizeField(field string) string {
	return strings.TrimSpace(fieldSeparators.Replace(field))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// phrase asks the configured model to restate the retrieved facts as prose.
func (s *queryService) phrase(ctx context.Context, question string, facts []string) (string, error) {
	var prompt strings.Builder
	prompt.WriteString("Question: ")
	prompt.WriteString(question)
	prompt.WriteString("\n\nFacts:\n")
	for _, fact := range facts {
		prompt.WriteString("- ")
		prompt.WriteString(fact)
		prompt.WriteString("\n")
	}

	// Phrasing providers throttle; transient failures get a short backoff
	// before the template fallback kicks in.
	answer, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (string, error) {
		return s.llmClient.GenerateResponse(ctx, prompt.String(), phrasingSystemMessage, 0.2)
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}
