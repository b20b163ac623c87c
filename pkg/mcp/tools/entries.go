package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/phonologic/brain-engine/pkg/models"
	"github.com/phonologic/brain-engine/pkg/repositories"
)

// EntryToolDeps contains dependencies for the knowledge-browsing tools.
type EntryToolDeps struct {
	KnowledgeRepo repositories.KnowledgeRepository
	Logger        *zap.Logger
}

// RegisterEntryTools registers tools for browsing the knowledge store
// directly, without going through retrieval scoring.
func RegisterEntryTools(s *server.MCPServer, deps *EntryToolDeps) {
	registerListEntriesTool(s, deps)
	registerGetEntryTool(s, deps)
}

type listEntriesResult struct {
	Entries []*models.KnowledgeEntry `json:"entries"`
	Count   int                      `json:"count"`
}

func registerListEntriesTool(s *server.MCPServer, deps *EntryToolDeps) {
	tool := mcp.NewTool(
		"list_entries",
		mcp.WithDescription(
			"List knowledge entries with their current values and versions. "+
				"Optionally restricted to one category. Use get_entry for the "+
				"full version history of a single field.",
		),
		mcp.WithString("category",
			mcp.Description("Optional category filter, e.g. 'pricing' or 'team'"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var category *models.Category
		if raw := req.GetString("category", ""); raw != "" {
			parsed, err := models.ParseCategory(raw)
			if err != nil {
				return domainErrorResult(err), nil
			}
			category = &parsed
		}

		entries, err := deps.KnowledgeRepo.List(ctx, category)
		if err != nil {
			deps.Logger.Error("Failed to list entries", zap.Error(err))
			return nil, fmt.Errorf("failed to list entries: %w", err)
		}

		result := listEntriesResult{Entries: entries, Count: len(entries)}
		jsonBytes, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal entries: %w", err)
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func registerGetEntryTool(s *server.MCPServer, deps *EntryToolDeps) {
	tool := mcp.NewTool(
		"get_entry",
		mcp.WithDescription(
			"Get a single knowledge entry including its full version history "+
				"and any notes attached by reviewers.",
		),
		mcp.WithString("category",
			mcp.Required(),
			mcp.Description("Category of the entry, e.g. 'pricing'"),
		),
		mcp.WithString("field",
			mcp.Required(),
			mcp.Description("Field name within the category, e.g. 'parent_plan'"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rawCategory, err := req.RequireString("category")
		if err != nil {
			return NewErrorResult("validation_failed", "category parameter is required"), nil
		}
		category, err := models.ParseCategory(rawCategory)
		if err != nil {
			return domainErrorResult(err), nil
		}

		field, err := req.RequireString("field")
		if err != nil {
			return NewErrorResult("validation_failed", "field parameter is required"), nil
		}

		entry, err := deps.KnowledgeRepo.GetWithHistory(ctx, category, field)
		if err != nil {
			if errResult := domainErrorResult(err); errResult != nil {
				return errResult, nil
			}
			deps.Logger.Error("Failed to get entry",
				zap.String("category", category.String()),
				zap.String("field", field),
				zap.Error(err))
			return nil, fmt.Errorf("failed to get entry: %w", err)
		}

		jsonBytes, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal entry: %w", err)
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}
