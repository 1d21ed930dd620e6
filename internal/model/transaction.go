package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Format identifies the source layout a file was parsed as.
type Format string

const (
	FormatAmexCSV       Format = "amex-csv"
	FormatBofACSV       Format = "bofa-csv"
	FormatHeaderlessCSV Format = "headerless-csv"
	FormatOFX           Format = "ofx"
	FormatUnknownCSV    Format = "unknown-csv"
)

// Transaction is the canonical shape every parser emits.
//
// Amount is a two-digit decimal string in ledger convention: positive is
// money leaving the account, negative is money coming in. Date is YYYY-MM-DD.
type Transaction struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	ExternalID  string `json:"externalId,omitempty"`
	Memo        string `json:"memo,omitempty"`
	Type        string `json:"type,omitempty"`
}

// ParseResult is the output of parsing one file. Errors are row-level
// diagnostics; a result can carry both transactions and errors.
type ParseResult struct {
	Format       Format        `json:"format"`
	AccountHint  string        `json:"accountHint,omitempty"`
	Transactions []Transaction `json:"transactions"`
	SkippedRows  int           `json:"skippedRows,omitempty"`
	Errors       []string      `json:"errors"`
}

// LedgerTransaction is a row already stored in the ledger.
type LedgerTransaction struct {
	ID           string
	AccountID    string
	Date         time.Time
	Amount       decimal.Decimal // positive = outflow
	Name         string
	MerchantName string
	ImportID     string // empty for rows that did not come from a file import
	Source       string // "import", "manual", ...
	Pending      bool
	CreatedAt    time.Time
}

// DateString returns Date as YYYY-MM-DD.
func (t LedgerTransaction) DateString() string {
	return t.Date.Format(time.DateOnly)
}
