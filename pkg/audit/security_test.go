package audit

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// setupTestLogger creates a test logger with an observer to capture log entries.
func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	return logger, recorded
}

func TestNewSecurityAuditor(t *testing.T) {
	logger, _ := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	assert.NotNil(t, auditor)
	assert.NotNil(t, auditor.logger)
}

func TestScreenContribution_CleanInput(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	result := auditor.ScreenContribution("Parent plan is now $30/month", "alice@example.com")

	assert.False(t, result.Suspicious)
	assert.Empty(t, result.Fingerprint)
	assert.Equal(t, 0, recorded.Len())
}

func TestScreenContribution_InjectionAttempt(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	result := auditor.ScreenContribution("'; DROP TABLE knowledge_entries--", "mallory@example.com")

	assert.True(t, result.Suspicious)
	assert.NotEmpty(t, result.Fingerprint)

	require.Equal(t, 1, recorded.Len())
	entry := recorded.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)

	fields := entry.ContextMap()
	assert.Equal(t, string(EventInjectionAttempt), fields["event_type"])
	assert.Equal(t, "mallory@example.com", fields["actor"])
	assert.Equal(t, "critical", fields["severity"])

	var event SecurityEvent
	require.NoError(t, json.Unmarshal([]byte(fields["event_json"].(string)), &event))
	assert.Equal(t, EventInjectionAttempt, event.EventType)
	assert.False(t, event.Timestamp.IsZero())
}

func TestLogValidationFailure(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	auditor.LogValidationFailure("input exceeds maximum length", "bob@example.com")

	require.Equal(t, 1, recorded.Len())
	entry := recorded.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)

	fields := entry.ContextMap()
	assert.Equal(t, string(EventInputValidation), fields["event_type"])
	assert.Equal(t, "warning", fields["severity"])
}
