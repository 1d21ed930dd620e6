package imports

import (
	"context"

	"github.com/chrisrogers37/really-personal-finance/internal/model"
)

// Ledger is the transaction store previews are checked against and
// confirmed rows are written to.
//
//go:generate mockgen -destination=mocks/mock_imports.go -source=interface.go
type Ledger interface {
	// TransactionsBetween returns stored rows dated from..to inclusive (YYYY-MM-DD).
	TransactionsBetween(ctx context.Context, from, to string) ([]model.LedgerTransaction, error)
	// Insert stores rows, ignoring any whose import ID is already present,
	// and returns how many were written.
	Insert(ctx context.Context, rows []model.LedgerTransaction) (int, error)
}

// AccountDirectory resolves the local accounts an import can target.
type AccountDirectory interface {
	Exists(id string) bool
	MatchHint(hint string) (model.Account, bool)
}
