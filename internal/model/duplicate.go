package model

// MatchReason explains why a parsed transaction was flagged as a duplicate.
type MatchReason string

const (
	ReasonExactImportID  MatchReason = "exact_import_id"
	ReasonSameDateAmount MatchReason = "same_date_amount"
)

// ExistingTransaction is the subset of a stored row shown next to a duplicate.
type ExistingTransaction struct {
	ID     string `json:"id"`
	Date   string `json:"date"`
	Name   string `json:"name"`
	Amount string `json:"amount"`
	Source string `json:"source"`
}

// DuplicateMatch pairs a parsed transaction (by index) with the stored row it
// collides with.
type DuplicateMatch struct {
	ImportIndex         int                 `json:"importIndex"`
	ExistingTransaction ExistingTransaction `json:"existingTransaction"`
	Reason              MatchReason         `json:"reason"`
}
