package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/phonologic/brain-engine/pkg/auth"
	"github.com/phonologic/brain-engine/pkg/services"
)

// ContributeToolDeps contains dependencies for the contribution tool.
type ContributeToolDeps struct {
	CurationService services.CurationService
	Logger          *zap.Logger
}

// RegisterContributeTool adds the contribute_knowledge tool, the MCP entry
// point into the curation pipeline.
func RegisterContributeTool(s *server.MCPServer, deps *ContributeToolDeps) {
	tool := mcp.NewTool(
		"contribute_knowledge",
		mcp.WithDescription(
			"Contribute a natural-language statement to the knowledge brain. "+
				"Statements that merge cleanly are applied immediately; statements "+
				"that conflict with stored knowledge are staged for human review. "+
				"Returns the extracted fields and any detected conflicts.",
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The statement to contribute, e.g. 'Pricing is $30/month'"),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		actor, err := auth.RequireActorFromContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("authentication required")
		}

		text, err := req.RequireString("text")
		if err != nil {
			return NewErrorResult("validation_failed", "text parameter is required"), nil
		}

		result, err := deps.CurationService.Contribute(ctx, text, actor)
		if err != nil {
			if errResult := domainErrorResult(err); errResult != nil {
				return errResult, nil
			}
			deps.Logger.Error("Contribution failed",
				zap.String("actor", actor),
				zap.Error(err))
			return nil, fmt.Errorf("failed to process contribution: %w", err)
		}

		jsonBytes, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal contribution result: %w", err)
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}
