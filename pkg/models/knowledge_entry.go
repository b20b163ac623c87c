package models

import (
	"time"

	"github.com/google/uuid"
)

// UpdatedBySystem marks entries written by startup seeding rather than a
// contributor.
const UpdatedBySystem = "system"

// KnowledgeEntry is a single curated fact, addressed by (category, field).
// Version starts at 1 and increments by exactly 1 on every accepted update;
// History holds one record per version, oldest first, so
// len(History) == Version always holds.
type KnowledgeEntry struct {
	ID        uuid.UUID `json:"id"`
	Category  Category  `json:"category"`
	Field     string    `json:"field"`
	Value     Value     `json:"value"`
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by"`

	// History is populated on detail reads, not on lookups.
	History []EntryVersion `json:"history,omitempty"`

	// Notes are side-channel annotations attached by add_note resolutions.
	Notes []EntryNote `json:"notes,omitempty"`
}

// EntryVersion is one record of an entry's append-only history.
type EntryVersion struct {
	Version   int       `json:"version"`
	Value     Value     `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by"`
}

// EntryNote is an annotation preserved alongside an entry without touching
// its value or version.
type EntryNote struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	AddedBy   string    `json:"added_by"`
	CreatedAt time.Time `json:"created_at"`
}
