// Package dedup labels freshly parsed transactions against rows already in
// the ledger.
package dedup

import (
	"github.com/shopspring/decimal"

	"github.com/chrisrogers37/really-personal-finance/internal/model"
)

// DefaultTolerance is the absolute amount difference below which two rows on
// the same date are reported as a probable duplicate.
var DefaultTolerance = decimal.New(1, -2)

// Classify compares txns[i] (fingerprinted as importIDs[i]) with existing
// and returns one match per flagged transaction, in import order.
//
// An import ID already in existing is an exact duplicate. Otherwise a row
// with the same date and an amount closer than tolerance is a probable
// duplicate. Two genuinely distinct same-day, same-amount charges are
// indistinguishable here and are left for the reviewer.
func Classify(txns []model.Transaction, importIDs []string, existing []model.LedgerTransaction, tolerance decimal.Decimal) []model.DuplicateMatch {
	if len(importIDs) != len(txns) {
		panic("dedup: importIDs and txns differ in length")
	}

	byImportID := make(map[string]model.LedgerTransaction, len(existing))
	byDate := make(map[string][]model.LedgerTransaction)
	for _, e := range existing {
		if e.ImportID != "" {
			if _, ok := byImportID[e.ImportID]; !ok {
				byImportID[e.ImportID] = e
			}
		}
		d := e.DateString()
		byDate[d] = append(byDate[d], e)
	}

	var matches []model.DuplicateMatch
	for i, txn := range txns {
		if e, ok := byImportID[importIDs[i]]; ok {
			matches = append(matches, newMatch(i, e, model.ReasonExactImportID))
			continue
		}

		amount, err := decimal.NewFromString(txn.Amount)
		if err != nil {
			continue
		}
		for _, e := range byDate[txn.Date] {
			if e.Amount.Sub(amount).Abs().LessThan(tolerance) {
				matches = append(matches, newMatch(i, e, model.ReasonSameDateAmount))
				break
			}
		}
	}
	return matches
}

func newMatch(i int, e model.LedgerTransaction, reason model.MatchReason) model.DuplicateMatch {
	return model.DuplicateMatch{
		ImportIndex: i,
		ExistingTransaction: model.ExistingTransaction{
			ID:     e.ID,
			Date:   e.DateString(),
			Name:   e.Name,
			Amount: e.Amount.StringFixed(2),
			Source: e.Source,
		},
		Reason: reason,
	}
}

// DateRange returns the earliest and latest dates in txns. ok is false when
// txns is empty. Dates are YYYY-MM-DD, so string order is date order.
func DateRange(txns []model.Transaction) (from, to string, ok bool) {
	if len(txns) == 0 {
		return "", "", false
	}
	from, to = txns[0].Date, txns[0].Date
	for _, t := range txns[1:] {
		if t.Date < from {
			from = t.Date
		}
		if t.Date > to {
			to = t.Date
		}
	}
	return from, to, true
}

// Indexes returns the set of import indexes present in matches.
func Indexes(matches []model.DuplicateMatch) map[int]model.MatchReason {
	idx := make(map[int]model.MatchReason, len(matches))
	for _, m := range matches {
		idx[m.ImportIndex] = m.Reason
	}
	return idx
}
