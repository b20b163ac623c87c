// Package tools provides MCP tool implementations for brain-engine.
package tools

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/phonologic/brain-engine/pkg/apperrors"
)

// ErrorResponse represents a structured error in tool results.
// This is used to return actionable error information to the calling agent
// as a successful tool result, ensuring error details are visible
// rather than being swallowed by the MCP client.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for recoverable errors the agent can see and potentially fix
// (invalid parameters, unknown contribution, a lost resolution race).
//
// Do NOT use this for system failures (database connection errors,
// internal server errors); those should still return Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails is NewErrorResult with a structured payload
// attached, for errors where the agent needs more than a message (for
// example which fields a lost resolution failed on).
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// errorCodeFor maps domain sentinel errors to the codes surfaced in tool
// results. Returns empty string when the error is not a domain error the
// agent can act on.
func errorCodeFor(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return "validation_failed"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrStaleResolution):
		return "stale_resolution"
	default:
		return ""
	}
}

// domainErrorResult converts a domain sentinel error into a structured tool
// result. Returns nil for system failures, which callers should surface as
// Go errors instead.
func domainErrorResult(err error) *mcp.CallToolResult {
	code := errorCodeFor(err)
	if code == "" {
		return nil
	}
	return NewErrorResult(code, err.Error())
}
