// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"encoding/json"
	"time"

	libinjection "github.com/corazawaf/libinjection-go"
	"go.uber.org/zap"

	"github.com/phonologic/brain-engine/pkg/logging"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventInjectionAttempt is logged when libinjection detects SQL injection
	// patterns in contributed text.
	EventInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventInputValidation is logged when contribution validation fails.
	EventInputValidation SecurityEventType = "input_validation_failure"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	Actor     string            `json:"actor,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// InjectionDetails contains specifics of a detected injection attempt.
type InjectionDetails struct {
	Input       string `json:"input"`       // sanitized, truncated
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
}

// ScreenResult reports what the screener found in one piece of input.
type ScreenResult struct {
	Suspicious  bool
	Fingerprint string
}

// SecurityAuditor screens contributed text and logs security events for SIEM
// consumption. Contributions are stored as data, never executed, so a
// suspicious input is flagged and logged rather than rejected.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger
// namespace for easy filtering in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// ScreenContribution checks contributed text for SQL injection patterns and
// logs a critical event when one is found.
func (a *SecurityAuditor) ScreenContribution(input, actor string) ScreenResult {
	isSQLi, fingerprint := libinjection.IsSQLi(input)
	if !isSQLi {
		return ScreenResult{}
	}

	a.logEvent(EventInjectionAttempt, actor, "critical", InjectionDetails{
		Input:       logging.SanitizeContribution(input),
		Fingerprint: string(fingerprint),
	})
	return ScreenResult{Suspicious: true, Fingerprint: string(fingerprint)}
}

// LogValidationFailure records a rejected contribution, such as empty or
// oversized input.
func (a *SecurityAuditor) LogValidationFailure(reason, actor string) {
	a.logEvent(EventInputValidation, actor, "warning", map[string]string{"reason": reason})
}

func (a *SecurityAuditor) logEvent(eventType SecurityEventType, actor, severity string, details any) {
	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Actor:     actor,
		Details:   details,
		Severity:  severity,
	}

	// Ignoring error as marshaling known types should never fail
	eventJSON, _ := json.Marshal(event)

	log := a.logger.Warn
	if severity == "critical" {
		log = a.logger.Error
	}
	log("Security event",
		zap.String("event_type", string(eventType)),
		zap.String("event_json", string(eventJSON)),
		zap.String("actor", actor),
		zap.String("severity", severity),
	)
}
