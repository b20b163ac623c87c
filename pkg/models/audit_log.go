package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntityType represents the type of entity being audited.
const (
	AuditEntityTypeKnowledgeEntry = "knowledge_entry"
	AuditEntityTypeContribution   = "contribution"
)

// AuditAction represents the type of action being audited.
const (
	AuditActionCreate        = "create"
	AuditActionUpdate        = "update"
	AuditActionDelete        = "delete"
	AuditActionAutoMerge     = "auto-merge"
	AuditActionResolveUpdate = "resolve-update"
	AuditActionResolveKeep   = "resolve-keep"
	AuditActionResolveNote   = "resolve-note"
	AuditActionExpire        = "expire"
)

// AuditLogEntry represents a single entry in the curation audit log.
// Stored in the brain_audit_log table. Every mutation of the knowledge base
// appends exactly one, including keep decisions that change nothing.
type AuditLogEntry struct {
	ID         uuid.UUID `json:"id"`
	EntityType string    `json:"entity_type"` // 'knowledge_entry', 'contribution'
	Action     string    `json:"action"`

	// Category and Field address the affected entry, empty for
	// contribution-level actions such as expiry.
	Category Category `json:"category,omitempty"`
	Field    string   `json:"field,omitempty"`

	// ContributionID links the action back to the contribution that caused
	// it, when one did.
	ContributionID *uuid.UUID `json:"contribution_id,omitempty"`

	// Actor is the contributor or resolver email, or "system".
	Actor string `json:"actor"`

	// What changed (for updates)
	ChangedFields map[string]FieldChange `json:"changed_fields,omitempty"` // {"field": {"old": ..., "new": ...}}

	CreatedAt time.Time `json:"created_at"`
}

// FieldChange represents the old and new values for a changed field.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}
