package importer

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/chrisrogers37/really-personal-finance/internal/model"
)

// SignRule maps a source format's native amount sign onto the ledger
// convention (positive = outflow).
type SignRule int

const (
	// KeepSign: the source already reports charges as positive.
	KeepSign SignRule = iota
	// Negate: the source reports charges as negative.
	Negate
)

func (r SignRule) String() string {
	switch r {
	case KeepSign:
		return "keep"
	case Negate:
		return "negate"
	default:
		return fmt.Sprintf("SignRule(%d)", int(r))
	}
}

// signTable is the only place that knows each format's sign convention.
var signTable = map[model.Format]SignRule{
	model.FormatAmexCSV:       KeepSign, // charges positive, payments/credits negative
	model.FormatBofACSV:       Negate,   // withdrawals negative, deposits positive
	model.FormatHeaderlessCSV: Negate,   // withdrawals negative, deposits positive
	model.FormatOFX:           Negate,   // TRNAMT debits negative
}

// SignRuleFor returns the sign rule registered for format.
func SignRuleFor(format model.Format) (SignRule, bool) {
	r, ok := signTable[format]
	return r, ok
}

// ToLedger converts a source-native amount into a ledger-convention string
// with two fraction digits. Panics if format has no sign rule.
func ToLedger(format model.Format, amount decimal.Decimal) string {
	r, ok := signTable[format]
	if !ok {
		panic("no sign rule for format: " + string(format))
	}
	if r == Negate {
		amount = amount.Neg()
	}
	return amount.StringFixed(2)
}
