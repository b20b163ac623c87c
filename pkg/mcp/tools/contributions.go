package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/phonologic/brain-engine/pkg/apperrors"
	"github.com/phonologic/brain-engine/pkg/auth"
	"github.com/phonologic/brain-engine/pkg/models"
	"github.com/phonologic/brain-engine/pkg/services"
)

// ContributionToolDeps contains dependencies for the review tools.
type ContributionToolDeps struct {
	StagingService    services.StagingService
	ResolutionService services.ResolutionService
	Logger            *zap.Logger
}

// RegisterContributionTools registers the staging-queue review tools.
func RegisterContributionTools(s *server.MCPServer, deps *ContributionToolDeps) {
	registerListPendingTool(s, deps)
	registerResolveTool(s, deps)
}

type pendingContributionsResult struct {
	Contributions []*models.Contribution `json:"contributions"`
	Count         int                    `json:"count"`
}

// registerListPendingTool adds the list_pending_contributions tool for
// inspecting the review queue.
func registerListPendingTool(s *server.MCPServer, deps *ContributionToolDeps) {
	tool := mcp.NewTool(
		"list_pending_contributions",
		mcp.WithDescription(
			"List contributions waiting for human review, oldest first. "+
				"Each includes the extracted claims and the conflicts that "+
				"kept it from merging automatically.",
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pending, err := deps.StagingService.ListPending(ctx)
		if err != nil {
			deps.Logger.Error("Failed to list pending contributions", zap.Error(err))
			return nil, fmt.Errorf("failed to list pending contributions: %w", err)
		}

		result := pendingContributionsResult{Contributions: pending, Count: len(pending)}
		jsonBytes, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal pending contributions: %w", err)
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

// registerResolveTool adds the resolve_contribution tool. Resolving is an
// admin operation: it applies or discards staged knowledge.
func registerResolveTool(s *server.MCPServer, deps *ContributionToolDeps) {
	tool := mcp.NewTool(
		"resolve_contribution",
		mcp.WithDescription(
			"Resolve a pending contribution. Action 'update' applies the "+
				"contributed values, 'keep' preserves the stored values, and "+
				"'add_note' keeps the stored values but attaches the "+
				"contribution as an annotation. Resolutions are final.",
		),
		mcp.WithString("contribution_id",
			mcp.Required(),
			mcp.Description("UUID of the pending contribution"),
		),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Description("One of: update, keep, add_note"),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		claims, ok := auth.GetClaims(ctx)
		if !ok {
			return nil, fmt.Errorf("authentication required")
		}
		if !claims.IsAdmin() {
			return nil, fmt.Errorf("admin role required to resolve contributions")
		}

		rawID, err := req.RequireString("contribution_id")
		if err != nil {
			return NewErrorResult("validation_failed", "contribution_id parameter is required"), nil
		}
		contributionID, err := uuid.Parse(rawID)
		if err != nil {
			return NewErrorResult("validation_failed", "contribution_id must be a UUID"), nil
		}

		action, err := req.RequireString("action")
		if err != nil {
			return NewErrorResult("validation_failed", "action parameter is required"), nil
		}

		result, err := deps.ResolutionService.Resolve(ctx, contributionID, action, claims.Actor())
		if err != nil {
			// A stale failure carries per-field outcomes showing which
			// writes lost the race; pass them along.
			if result != nil && errors.Is(err, apperrors.ErrStaleResolution) {
				return NewErrorResultWithDetails("stale_resolution", err.Error(), result), nil
			}
			if errResult := domainErrorResult(err); errResult != nil {
				return errResult, nil
			}
			deps.Logger.Error("Resolution failed",
				zap.String("contribution_id", contributionID.String()),
				zap.String("action", action),
				zap.Error(err))
			return nil, fmt.Errorf("failed to resolve contribution: %w", err)
		}

		jsonBytes, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal resolution result: %w", err)
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}
