package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/phonologic/brain-engine/pkg/models"
	"github.com/phonologic/brain-engine/pkg/services"
)

// QueryToolDeps contains dependencies for the query tool.
type QueryToolDeps struct {
	QueryService services.QueryService
	Logger       *zap.Logger
}

// RegisterQueryTool adds the query_brain tool for answering questions from
// stored knowledge. Answers come from the store only; when nothing relevant
// is found the tool returns a refusal rather than a guess.
func RegisterQueryTool(s *server.MCPServer, deps *QueryToolDeps) {
	tool := mcp.NewTool(
		"query_brain",
		mcp.WithDescription(
			"Ask the knowledge brain a question. Answers are grounded in "+
				"stored entries and include the source fields they were built "+
				"from. When the brain holds nothing relevant, the tool refuses "+
				"instead of guessing.",
		),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question to answer, e.g. 'How much does the parent plan cost?'"),
		),
		mcp.WithString("category",
			mcp.Description("Optional category to restrict retrieval to, e.g. 'pricing' or 'team'"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return NewErrorResult("validation_failed", "question parameter is required"), nil
		}

		var category *models.Category
		if raw := req.GetString("category", ""); raw != "" {
			parsed, err := models.ParseCategory(raw)
			if err != nil {
				return domainErrorResult(err), nil
			}
			category = &parsed
		}

		answer, err := deps.QueryService.Answer(ctx, question, category)
		if err != nil {
			deps.Logger.Error("Query failed", zap.Error(err))
			return nil, fmt.Errorf("failed to answer question: %w", err)
		}

		jsonBytes, err := json.Marshal(answer)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal query answer: %w", err)
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}
