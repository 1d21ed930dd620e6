package imports

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chrisrogers37/really-personal-finance/internal/id"
	"github.com/chrisrogers37/really-personal-finance/internal/model"
)

// SourceImport marks ledger rows created from a file import.
const SourceImport = "import"

// ConfirmTransaction is one previewed row the user chose to import.
type ConfirmTransaction struct {
	Date         string `json:"date"`
	Description  string `json:"description"`
	Amount       string `json:"amount"`
	MerchantName string `json:"merchantName,omitempty"`
	ImportID     string `json:"importId"`
}

// ConfirmInput is the selection submitted for import.
type ConfirmInput struct {
	AccountID    string               `json:"accountId"`
	Transactions []ConfirmTransaction `json:"transactions"`
	// FileName and Format describe the source file for the import log.
	FileName string `json:"fileName,omitempty"`
	Format   string `json:"format,omitempty"`
}

// ConfirmResult reports how many submitted rows were written and how many
// the ledger already held.
type ConfirmResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// ValidationError describes a rejected confirm payload.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ParseConfirmInput decodes and validates a JSON confirm payload.
func ParseConfirmInput(body []byte) (ConfirmInput, error) {
	var raw any
	if len(strings.TrimSpace(string(body))) == 0 || json.Unmarshal(body, &raw) != nil {
		return ConfirmInput{}, invalid("body", "Request body is required")
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return ConfirmInput{}, invalid("body", "Request body is required")
	}

	accountID, _ := obj["accountId"].(string)
	if accountID == "" {
		return ConfirmInput{}, invalid("accountId", "accountId is required")
	}

	list, _ := obj["transactions"].([]any)
	if len(list) == 0 {
		return ConfirmInput{}, invalid("transactions", "transactions array is required and must not be empty")
	}

	in := ConfirmInput{AccountID: accountID, Transactions: make([]ConfirmTransaction, 0, len(list))}
	in.FileName, _ = obj["fileName"].(string)
	in.Format, _ = obj["format"].(string)
	for i, item := range list {
		t, ok := item.(map[string]any)
		if !ok {
			return ConfirmInput{}, invalid(fmt.Sprintf("transactions[%d]", i), "Transaction at index %d is invalid", i)
		}
		txn := ConfirmTransaction{}
		for _, f := range []struct {
			name string
			dst  *string
		}{
			{"date", &txn.Date},
			{"description", &txn.Description},
			{"amount", &txn.Amount},
			{"importId", &txn.ImportID},
		} {
			v, _ := t[f.name].(string)
			if v == "" {
				return ConfirmInput{}, invalid(fmt.Sprintf("transactions[%d].%s", i, f.name), "Transaction at index %d: %s is required", i, f.name)
			}
			*f.dst = v
		}
		if m, ok := t["merchantName"].(string); ok {
			txn.MerchantName = strings.TrimSpace(m)
		}
		in.Transactions = append(in.Transactions, txn)
	}

	if err := in.Validate(); err != nil {
		return ConfirmInput{}, err
	}
	return in, nil
}

// Validate checks required fields and value formats.
func (in ConfirmInput) Validate() error {
	if in.AccountID == "" {
		return invalid("accountId", "accountId is required")
	}
	if len(in.Transactions) == 0 {
		return invalid("transactions", "transactions array is required and must not be empty")
	}
	for i, t := range in.Transactions {
		field := func(name string) string { return fmt.Sprintf("transactions[%d].%s", i, name) }
		switch {
		case t.Date == "":
			return invalid(field("date"), "Transaction at index %d: date is required", i)
		case !validDate(t.Date):
			return invalid(field("date"), "Transaction at index %d: date must be YYYY-MM-DD", i)
		case t.Description == "":
			return invalid(field("description"), "Transaction at index %d: description is required", i)
		case t.Amount == "":
			return invalid(field("amount"), "Transaction at index %d: amount is required", i)
		case !validAmount(t.Amount):
			return invalid(field("amount"), "Transaction at index %d: amount must be a decimal number", i)
		case t.ImportID == "":
			return invalid(field("importId"), "Transaction at index %d: importId is required", i)
		case !id.Valid(t.ImportID):
			return invalid(field("importId"), "Transaction at index %d: importId must be a fitid: or hash: identifier", i)
		}
	}
	return nil
}

func validDate(s string) bool {
	_, err := time.Parse(time.DateOnly, s)
	return err == nil && len(s) == len(time.DateOnly)
}

func validAmount(s string) bool {
	_, err := decimal.NewFromString(s)
	return err == nil
}

// Confirm writes the selected rows to the ledger in batches. Rows whose
// import ID is already stored are skipped by the ledger and counted in
// ConfirmResult.Skipped.
func (s *Service) Confirm(ctx context.Context, in ConfirmInput) (ConfirmResult, error) {
	if err := in.Validate(); err != nil {
		return ConfirmResult{}, err
	}
	if !s.accounts.Exists(in.AccountID) {
		return ConfirmResult{}, fmt.Errorf("%w: %s", ErrAccountNotFound, in.AccountID)
	}

	now := s.now().UTC()
	rows := make([]model.LedgerTransaction, 0, len(in.Transactions))
	for _, t := range in.Transactions {
		date, err := time.Parse(time.DateOnly, t.Date)
		if err != nil {
			return ConfirmResult{}, fmt.Errorf("parsing date %q: %w", t.Date, err)
		}
		amount, err := decimal.NewFromString(t.Amount)
		if err != nil {
			return ConfirmResult{}, fmt.Errorf("parsing amount %q: %w", t.Amount, err)
		}
		rows = append(rows, model.LedgerTransaction{
			ID:           uuid.NewString(),
			AccountID:    in.AccountID,
			Date:         date,
			Amount:       amount,
			Name:         t.Description,
			MerchantName: t.MerchantName,
			ImportID:     t.ImportID,
			Source:       SourceImport,
			CreatedAt:    now,
		})
	}

	var res ConfirmResult
	for start := 0; start < len(rows); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		end := min(start+s.batchSize, len(rows))
		n, err := s.ledger.Insert(ctx, rows[start:end])
		if err != nil {
			return res, fmt.Errorf("inserting rows %d-%d: %w", start, end-1, err)
		}
		res.Imported += n
		res.Skipped += end - start - n
		s.logger.Debug("batch inserted", "from", start, "to", end-1, "written", n)
	}

	s.logger.Info("import confirmed", "account", in.AccountID, "imported", res.Imported, "skipped", res.Skipped)
	return res, nil
}
