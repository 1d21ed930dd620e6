package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chrisrogers37/really-personal-finance/internal/model"
)

// Header is the CSV header for transactions.csv.
const Header = "id,account_id,date,amount,name,merchant_name,import_id,source,pending,created_at"

const (
	numFields     = 10
	dateFormat    = "2006-01-02"
	colID         = 0
	colAcctID     = 1
	colDate       = 2
	colAmount     = 3
	colName       = 4
	colMerchant   = 5
	colImportID   = 6
	colSource     = 7
	colPending    = 8
	colCreatedAt  = 9
	createdFormat = time.RFC3339
)

// ReadTransactions reads all rows from a transactions.csv reader.
func ReadTransactions(r io.Reader) ([]model.LedgerTransaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading ledger CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var txns []model.LedgerTransaction
	for i, rec := range records[1:] {
		txn, err := Unmarshal(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// WriteTransactions writes rows to a transactions.csv writer (including header).
func WriteTransactions(w io.Writer, txns []model.LedgerTransaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, txn := range txns {
		if err := cw.Write(Marshal(txn)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// AppendTransactions appends rows to an existing transactions.csv writer (no header).
func AppendTransactions(w io.Writer, txns []model.LedgerTransaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	for i, txn := range txns {
		if err := cw.Write(Marshal(txn)); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	return cw.Error()
}

// Marshal converts a LedgerTransaction to a CSV row.
func Marshal(txn model.LedgerTransaction) []string {
	row := make([]string, numFields)
	row[colID] = txn.ID
	row[colAcctID] = txn.AccountID
	row[colDate] = txn.Date.Format(dateFormat)
	row[colAmount] = txn.Amount.StringFixed(2)
	row[colName] = txn.Name
	row[colMerchant] = txn.MerchantName
	row[colImportID] = txn.ImportID
	row[colSource] = txn.Source
	row[colPending] = strconv.FormatBool(txn.Pending)
	if !txn.CreatedAt.IsZero() {
		row[colCreatedAt] = txn.CreatedAt.UTC().Format(createdFormat)
	}
	return row
}

// Unmarshal converts a CSV row to a LedgerTransaction.
func Unmarshal(record []string) (model.LedgerTransaction, error) {
	if len(record) != numFields {
		return model.LedgerTransaction{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	date, err := time.Parse(dateFormat, record[colDate])
	if err != nil {
		return model.LedgerTransaction{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}

	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return model.LedgerTransaction{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}

	pending := false
	if record[colPending] != "" {
		pending, err = strconv.ParseBool(record[colPending])
		if err != nil {
			return model.LedgerTransaction{}, fmt.Errorf("parsing pending %q: %w", record[colPending], err)
		}
	}

	var created time.Time
	if record[colCreatedAt] != "" {
		created, err = time.Parse(createdFormat, record[colCreatedAt])
		if err != nil {
			return model.LedgerTransaction{}, fmt.Errorf("parsing created_at %q: %w", record[colCreatedAt], err)
		}
	}

	return model.LedgerTransaction{
		ID:           record[colID],
		AccountID:    record[colAcctID],
		Date:         date,
		Amount:       amount,
		Name:         record[colName],
		MerchantName: record[colMerchant],
		ImportID:     record[colImportID],
		Source:       record[colSource],
		Pending:      pending,
		CreatedAt:    created,
	}, nil
}
