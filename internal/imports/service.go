// Package imports builds import previews and applies confirmed selections
// to the ledger.
package imports

import (
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/chrisrogers37/really-personal-finance/internal/dedup"
	"github.com/chrisrogers37/really-personal-finance/internal/importer"
)

// DefaultBatchSize caps the rows passed to one Ledger.Insert call.
const DefaultBatchSize = 100

var (
	// ErrNoTransactions is returned by Preview when the file parsed to zero
	// transactions. The returned Preview still carries the parse errors.
	ErrNoTransactions = errors.New("no transactions found in file")

	// ErrAccountNotFound is returned by Confirm for an unknown account.
	ErrAccountNotFound = errors.New("account not found")
)

// Options configures a Service. Zero values select defaults.
type Options struct {
	Registry  *importer.Registry
	BatchSize int
	Tolerance decimal.Decimal
	Logger    *log.Logger
	Now       func() time.Time
}

// Service previews statement files against the ledger and applies confirmed
// selections.
type Service struct {
	registry  *importer.Registry
	ledger    Ledger
	accounts  AccountDirectory
	batchSize int
	tolerance decimal.Decimal
	logger    *log.Logger
	now       func() time.Time
}

// NewService creates a Service.
func NewService(ledger Ledger, accounts AccountDirectory, opts Options) *Service {
	s := &Service{
		registry:  opts.Registry,
		ledger:    ledger,
		accounts:  accounts,
		batchSize: opts.BatchSize,
		tolerance: opts.Tolerance,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if s.registry == nil {
		s.registry = importer.DefaultRegistry()
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}
	if !s.tolerance.IsPositive() {
		s.tolerance = dedup.DefaultTolerance
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Registry returns the parser registry used for detection.
func (s *Service) Registry() *importer.Registry { return s.registry }
