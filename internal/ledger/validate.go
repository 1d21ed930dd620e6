package ledger

import (
	"fmt"

	"github.com/chrisrogers37/really-personal-finance/internal/id"
	"github.com/chrisrogers37/really-personal-finance/internal/model"
)

// ValidationError describes a row that cannot be stored.
type ValidationError struct {
	Row         int
	ID          string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("row %d [%s]: %s", e.Row, e.ID, e.Description)
}

// AccountChecker tests whether an account ID exists.
type AccountChecker interface {
	Exists(id string) bool
}

// ValidateRows checks rows before they are written. existingIDs holds row IDs
// already in the ledger. accounts may be nil to skip the account check.
func ValidateRows(rows []model.LedgerTransaction, accounts AccountChecker, existingIDs map[string]bool) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(rows))

	for i, r := range rows {
		fail := func(format string, args ...any) {
			errs = append(errs, ValidationError{Row: i, ID: r.ID, Description: fmt.Sprintf(format, args...)})
		}

		if r.ID == "" {
			fail("id is required")
		} else if existingIDs[r.ID] || seen[r.ID] {
			fail("duplicate id")
		}
		seen[r.ID] = true

		if r.AccountID == "" {
			fail("account_id is required")
		} else if accounts != nil && !accounts.Exists(r.AccountID) {
			fail("account %q does not exist", r.AccountID)
		}

		if r.Date.IsZero() {
			fail("date is required")
		}
		if r.Name == "" {
			fail("name is required")
		}
		if r.ImportID != "" && !id.Valid(r.ImportID) {
			fail("invalid import_id %q", r.ImportID)
		}
	}
	return errs
}
