package models

import (
	"time"

	"github.com/google/uuid"
)

// Contribution status constants. Transitions are one-way: a contribution
// leaves pending exactly once, into one of the terminal states, and terminal
// contributions are never mutated again.
const (
	ContributionStatusPending        = "pending"
	ContributionStatusResolvedUpdate = "resolved-update"
	ContributionStatusResolvedKeep   = "resolved-keep"
	ContributionStatusResolvedNote   = "resolved-note"
	ContributionStatusExpired        = "expired"
)

// Resolution action constants accepted by the resolver.
const (
	ResolutionActionUpdate  = "update"
	ResolutionActionKeep    = "keep"
	ResolutionActionAddNote = "add_note"
)

// Contribution is a submitted piece of raw input together with everything
// extracted from it. Contributions with conflicts wait in the staging queue;
// resolved and expired ones are retained for audit.
type Contribution struct {
	ID          uuid.UUID  `json:"id"`
	RawInput    string     `json:"raw_input"`
	SubmittedBy string     `json:"submitted_by"`
	SubmittedAt time.Time  `json:"submitted_at"`
	Claims      []Claim    `json:"claims"`
	Conflicts   []Conflict `json:"conflicts"`
	Status      string     `json:"status"`
	ResolvedBy  *string    `json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// IsPending reports whether the contribution can still be resolved.
func (c *Contribution) IsPending() bool {
	return c.Status == ContributionStatusPending
}

// TerminalStatusFor maps a resolution action to the contribution status it
// produces. Returns "" for unknown actions.
func TerminalStatusFor(action string) string {
	switch action {
	case ResolutionActionUpdate:
		return ContributionStatusResolvedUpdate
	case ResolutionActionKeep:
		return ContributionStatusResolvedKeep
	case ResolutionActionAddNote:
		return ContributionStatusResolvedNote
	default:
		return ""
	}
}
