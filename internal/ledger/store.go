// Package ledger stores transactions as month-partitioned CSV files under
// the workspace root: YYYY/MM/transactions.csv.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chrisrogers37/really-personal-finance/internal/model"
)

const fileName = "transactions.csv"

// Store is a file-backed ledger.
type Store struct {
	repoRoot string
	accounts AccountChecker

	mu sync.Mutex
}

// NewStore creates a Store rooted at repoRoot. accounts may be nil.
func NewStore(repoRoot string, accounts AccountChecker) *Store {
	return &Store{repoRoot: repoRoot, accounts: accounts}
}

// TransactionsBetween returns rows dated from..to inclusive, reading only the
// month files in that range.
func (s *Store) TransactionsBetween(ctx context.Context, from, to string) ([]model.LedgerTransaction, error) {
	start, err := time.Parse(dateFormat, from)
	if err != nil {
		return nil, fmt.Errorf("parsing from date %q: %w", from, err)
	}
	end, err := time.Parse(dateFormat, to)
	if err != nil {
		return nil, fmt.Errorf("parsing to date %q: %w", to, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("invalid range %s..%s", from, to)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.LedgerTransaction
	for m := monthStart(start); !m.After(end); m = m.AddDate(0, 1, 0) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		txns, err := s.readMonth(m.Year(), int(m.Month()))
		if err != nil {
			return nil, err
		}
		for _, t := range txns {
			if !t.Date.Before(start) && !t.Date.After(end) {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

// Insert appends rows to their month files. Rows whose import ID is already
// stored (or repeated within rows) are skipped. Returns the number written.
func (s *Store) Insert(ctx context.Context, rows []model.LedgerTransaction) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readAll(ctx)
	if err != nil {
		return 0, err
	}
	importIDs := make(map[string]bool, len(existing))
	rowIDs := make(map[string]bool, len(existing))
	for _, t := range existing {
		rowIDs[t.ID] = true
		if t.ImportID != "" {
			importIDs[t.ImportID] = true
		}
	}

	var keep []model.LedgerTransaction
	for _, r := range rows {
		if r.ImportID != "" {
			if importIDs[r.ImportID] {
				continue
			}
			importIDs[r.ImportID] = true
		}
		keep = append(keep, r)
	}

	if verrs := ValidateRows(keep, s.accounts, rowIDs); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, ve := range verrs {
			msgs[i] = ve.Error()
		}
		return 0, fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
	}

	byMonth := make(map[string][]model.LedgerTransaction)
	var order []string
	for _, r := range keep {
		key := r.Date.Format("2006/01")
		if _, ok := byMonth[key]; !ok {
			order = append(order, key)
		}
		byMonth[key] = append(byMonth[key], r)
	}
	sort.Strings(order)

	for _, key := range order {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		first := byMonth[key][0].Date
		if err := s.appendMonth(first.Year(), int(first.Month()), byMonth[key]); err != nil {
			return 0, err
		}
	}
	return len(keep), nil
}

// All returns every stored row, oldest month first.
func (s *Store) All(ctx context.Context) ([]model.LedgerTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll(ctx)
}

// ReadMonth reads all rows for a given year/month.
func (s *Store) ReadMonth(year, month int) ([]model.LedgerTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readMonth(year, month)
}

func (s *Store) readAll(ctx context.Context) ([]model.LedgerTransaction, error) {
	paths, err := filepath.Glob(filepath.Join(s.repoRoot, "[0-9][0-9][0-9][0-9]", "[0-9][0-9]", fileName))
	if err != nil {
		return nil, fmt.Errorf("listing ledger files: %w", err)
	}
	sort.Strings(paths)

	var out []model.LedgerTransaction
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		txns, err := readFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, txns...)
	}
	return out, nil
}

func (s *Store) readMonth(year, month int) ([]model.LedgerTransaction, error) {
	return readFile(s.monthPath(year, month))
}

func readFile(path string) ([]model.LedgerTransaction, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	defer f.Close()

	txns, err := ReadTransactions(f)
	if err != nil {
		return nil, fmt.Errorf("reading ledger %s: %w", path, err)
	}
	return txns, nil
}

func (s *Store) appendMonth(year, month int, rows []model.LedgerTransaction) error {
	path := s.monthPath(year, month)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating ledger dir: %w", err)
	}

	isNew := false
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		isNew = true
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	if isNew {
		if _, err := fmt.Fprintln(f, Header); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	if err := AppendTransactions(f, rows); err != nil {
		return fmt.Errorf("appending rows: %w", err)
	}
	return nil
}

func (s *Store) monthPath(year, month int) string {
	return filepath.Join(s.repoRoot, fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", month), fileName)
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
