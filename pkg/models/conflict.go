package models

import "fmt"

// Conflict kind constants.
const (
	ConflictKindValueMismatch      = "value-mismatch"
	ConflictKindDuplicateCandidate = "duplicate-candidate"
	ConflictKindUnverifiable       = "unverifiable-assertion"
)

// Conflict records a disagreement between an extracted claim and the stored
// knowledge. ExistingValue is nil for unverifiable assertions, where there is
// no stored counterpart to compare against.
type Conflict struct {
	Claim         Claim   `json:"claim"`
	ExistingValue *Value  `json:"existing_value,omitempty"`
	Confidence    float64 `json:"confidence"`
	Explanation   string  `json:"explanation"`
	Kind          string  `json:"kind"`
}

// ConflictExplanation builds the standard explanation embedding both the
// candidate and the stored value.
func ConflictExplanation(claim Claim, existing Value) string {
	return fmt.Sprintf("You said: %s — Brain says: %s", claim.Value.Display(), existing.Display())
}
