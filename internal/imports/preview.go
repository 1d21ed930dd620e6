package imports

import (
	"context"
	"fmt"

	"github.com/chrisrogers37/really-personal-finance/internal/dedup"
	"github.com/chrisrogers37/really-personal-finance/internal/id"
	"github.com/chrisrogers37/really-personal-finance/internal/model"
)

// File is a statement download submitted for preview.
type File struct {
	Name    string
	Content string
	// Format forces a registered parser by name instead of detection.
	Format string
}

// PreviewTransaction is a parsed transaction annotated for review.
type PreviewTransaction struct {
	model.Transaction
	ImportID        string            `json:"importId"`
	IsDuplicate     bool              `json:"isDuplicate"`
	DuplicateReason model.MatchReason `json:"duplicateReason,omitempty"`
	// Selected is the default choice: everything except exact duplicates.
	Selected bool `json:"selected"`
}

// Preview is the annotated result of parsing a file against the ledger.
type Preview struct {
	Format             model.Format           `json:"format"`
	AccountHint        string                 `json:"accountHint,omitempty"`
	SuggestedAccountID string                 `json:"suggestedAccountId,omitempty"`
	TotalCount         int                    `json:"totalCount"`
	NewCount           int                    `json:"newCount"`
	DuplicateCount     int                    `json:"duplicateCount"`
	SkippedRows        int                    `json:"skippedRows,omitempty"`
	Transactions       []PreviewTransaction   `json:"transactions"`
	Duplicates         []model.DuplicateMatch `json:"duplicates"`
	ParseErrors        []string               `json:"parseErrors"`
}

// Preview parses f, fingerprints every transaction and classifies each one
// against the ledger rows in the file's date range. When nothing parses it
// returns the preview (with parse errors) and ErrNoTransactions.
func (s *Service) Preview(ctx context.Context, f File) (*Preview, error) {
	res, err := s.parse(f)
	if err != nil {
		return nil, err
	}

	p := &Preview{
		Format:       res.Format,
		AccountHint:  res.AccountHint,
		SkippedRows:  res.SkippedRows,
		TotalCount:   len(res.Transactions),
		Transactions: []PreviewTransaction{},
		Duplicates:   []model.DuplicateMatch{},
		ParseErrors:  res.Errors,
	}
	if p.ParseErrors == nil {
		p.ParseErrors = []string{}
	}
	if res.AccountHint != "" {
		if acct, ok := s.accounts.MatchHint(res.AccountHint); ok {
			p.SuggestedAccountID = acct.ID
		}
	}

	from, to, ok := dedup.DateRange(res.Transactions)
	if !ok {
		s.logger.Warn("no transactions parsed", "file", f.Name, "format", res.Format, "errors", len(res.Errors))
		return p, ErrNoTransactions
	}

	importIDs := make([]string, len(res.Transactions))
	for i, txn := range res.Transactions {
		importIDs[i] = id.ForTransaction(txn)
	}

	existing, err := s.ledger.TransactionsBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("loading ledger %s..%s: %w", from, to, err)
	}

	matches := dedup.Classify(res.Transactions, importIDs, existing, s.tolerance)
	reasons := dedup.Indexes(matches)
	if matches != nil {
		p.Duplicates = matches
	}

	for i, txn := range res.Transactions {
		reason, dup := reasons[i]
		p.Transactions = append(p.Transactions, PreviewTransaction{
			Transaction:     txn,
			ImportID:        importIDs[i],
			IsDuplicate:     dup,
			DuplicateReason: reason,
			Selected:        reason != model.ReasonExactImportID,
		})
	}
	p.DuplicateCount = len(reasons)
	p.NewCount = p.TotalCount - p.DuplicateCount

	s.logger.Info("preview built",
		"file", f.Name,
		"format", p.Format,
		"total", p.TotalCount,
		"new", p.NewCount,
		"duplicates", p.DuplicateCount,
		"parse_errors", len(p.ParseErrors),
	)
	return p, nil
}

func (s *Service) parse(f File) (model.ParseResult, error) {
	if f.Format != "" {
		return s.registry.ParseAs(f.Format, f.Content)
	}
	return s.registry.DetectAndParse(f.Content, f.Name), nil
}

// Selection returns the rows to confirm for account. With includeDuplicates
// exact duplicates are included too; the ledger still skips them by import ID.
func (p *Preview) Selection(accountID string, includeDuplicates bool) ConfirmInput {
	in := ConfirmInput{AccountID: accountID, Format: string(p.Format)}
	for _, t := range p.Transactions {
		if !t.Selected && !includeDuplicates {
			continue
		}
		in.Transactions = append(in.Transactions, ConfirmTransaction{
			Date:        t.Date,
			Description: t.Description,
			Amount:      t.Amount,
			ImportID:    t.ImportID,
		})
	}
	return in
}
