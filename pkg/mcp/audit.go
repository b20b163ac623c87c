package mcp

import (
	"context"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/phonologic/brain-engine/pkg/auth"
	"github.com/phonologic/brain-engine/pkg/logging"
)

// maxLoggedArgLen caps how much of a string argument lands in the log.
// Contributions can be several kilobytes; the audit line only needs enough
// to identify the call.
const maxLoggedArgLen = 200

// AuditLogger records every MCP tool call with its caller, duration and
// outcome. Events go to the structured log; the knowledge-level audit trail
// is written by the services themselves.
type AuditLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewAuditLogger creates an AuditLogger that records MCP tool calls.
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger.Named("mcp-audit"),
	}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *AuditLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *AuditLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *AuditLogger) afterCallTool(ctx context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	startTime, _ := a.loadAndDeleteStart(id)

	fields := a.callFields(ctx, req, time.Since(startTime))
	if result != nil && result.IsError {
		fields = append(fields, zap.Bool("tool_error", true))
		a.logger.Warn("MCP tool call returned error result", fields...)
		return
	}
	a.logger.Info("MCP tool call completed", fields...)
}

func (a *AuditLogger) onError(ctx context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}

	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	startTime, _ := a.loadAndDeleteStart(id)

	fields := a.callFields(ctx, req, time.Since(startTime))
	fields = append(fields, zap.Error(err))
	a.logger.Error("MCP tool call failed", fields...)
}

func (a *AuditLogger) loadAndDeleteStart(id any) (time.Time, bool) {
	if v, ok := a.startTimes.LoadAndDelete(id); ok {
		return v.(time.Time), true
	}
	return time.Now(), false
}

func (a *AuditLogger) callFields(ctx context.Context, req *mcplib.CallToolRequest, duration time.Duration) []zap.Field {
	fields := []zap.Field{
		zap.String("tool", req.Params.Name),
		zap.Int64("duration_ms", duration.Milliseconds()),
		zap.Any("arguments", sanitizeArguments(req.Params.Arguments)),
	}

	if claims, ok := auth.GetClaims(ctx); ok {
		fields = append(fields, zap.String("actor", claims.Actor()))
	}

	return fields
}

// sanitizeArguments truncates long string arguments so audit lines stay
// bounded regardless of contribution size.
func sanitizeArguments(args any) map[string]any {
	params, ok := args.(map[string]any)
	if !ok || len(params) == 0 {
		return nil
	}

	sanitized := make(map[string]any, len(params))
	for key, value := range params {
		if s, ok := value.(string); ok {
			sanitized[key] = logging.TruncateString(s, maxLoggedArgLen)
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}
