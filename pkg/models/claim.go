package models

// Claim is a single extracted assertion, produced by the extractor and
// consumed by conflict detection. Claims are ephemeral until staged as part
// of a contribution.
type Claim struct {
	Category Category `json:"category"`
	Field    string   `json:"field"`
	Value    Value    `json:"value"`

	// SourceText is the fragment of raw input the claim was extracted from.
	SourceText string `json:"source_text"`

	// Confidence is the extractor's confidence in [0,1] that the text
	// asserts this value.
	Confidence float64 `json:"confidence"`
}
