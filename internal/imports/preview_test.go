package imports_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisrogers37/really-personal-finance/internal/id"
	"github.com/chrisrogers37/really-personal-finance/internal/imports"
	mock_imports "github.com/chrisrogers37/really-personal-finance/internal/imports/mocks"
	"github.com/chrisrogers37/really-personal-finance/internal/model"
)

const amexCSV = "Date,Description,Amount\n" +
	"01/15/2026,AMAZON.COM,42.99\n" +
	"01/16/2026,UBER TRIP,18.40\n" +
	"01/17/2026,STARBUCKS,4.50\n"

func TestService_Preview(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mock_imports.NewMockLedger(ctrl)
	accounts := mock_imports.NewMockAccountDirectory(ctrl)

	ledger.EXPECT().
		TransactionsBetween(gomock.Any(), "2026-01-15", "2026-01-17").
		Return([]model.LedgerTransaction{
			{
				ID:       "e1",
				Date:     time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
				Amount:   decimal.RequireFromString("42.99"),
				Name:     "AMAZON.COM",
				ImportID: id.Hash("2026-01-15", "AMAZON.COM", "42.99"),
				Source:   "import",
			},
			{
				ID:     "e2",
				Date:   time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC),
				Amount: decimal.RequireFromString("18.40"),
				Name:   "Uber",
				Source: "manual",
			},
		}, nil)

	svc := imports.NewService(ledger, accounts, imports.Options{})
	p, err := svc.Preview(context.Background(), imports.File{Name: "activity.csv", Content: amexCSV})
	require.NoError(t, err)

	assert.Equal(t, model.FormatAmexCSV, p.Format)
	assert.Equal(t, 3, p.TotalCount)
	assert.Equal(t, 1, p.NewCount)
	assert.Equal(t, 2, p.DuplicateCount)
	assert.Empty(t, p.SuggestedAccountID)
	assert.Empty(t, p.ParseErrors)
	require.Len(t, p.Duplicates, 2)
	require.Len(t, p.Transactions, 3)

	exact := p.Transactions[0]
	assert.True(t, exact.IsDuplicate)
	assert.Equal(t, model.ReasonExactImportID, exact.DuplicateReason)
	assert.False(t, exact.Selected)

	fuzzy := p.Transactions[1]
	assert.True(t, fuzzy.IsDuplicate)
	assert.Equal(t, model.ReasonSameDateAmount, fuzzy.DuplicateReason)
	assert.True(t, fuzzy.Selected)
	assert.Equal(t, "e2", p.Duplicates[1].ExistingTransaction.ID)

	fresh := p.Transactions[2]
	assert.False(t, fresh.IsDuplicate)
	assert.True(t, fresh.Selected)
	assert.Equal(t, id.Hash("2026-01-17", "STARBUCKS", "4.50"), fresh.ImportID)
}

func TestService_Preview_SuggestsAccountFromHint(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mock_imports.NewMockLedger(ctrl)
	accounts := mock_imports.NewMockAccountDirectory(ctrl)

	ofx := "<OFX><ACCTID>XXXX1004</ACCTID><STMTTRN><DTPOSTED>20260115</DTPOSTED><TRNAMT>-42.99</TRNAMT><FITID>A1</FITID><NAME>AMAZON</NAME></STMTTRN></OFX>"

	accounts.EXPECT().MatchHint("XXXX1004").Return(model.Account{ID: "acct-1", Mask: "1004"}, true)
	ledger.EXPECT().TransactionsBetween(gomock.Any(), "2026-01-15", "2026-01-15").Return(nil, nil)

	svc := imports.NewService(ledger, accounts, imports.Options{})
	p, err := svc.Preview(context.Background(), imports.File{Name: "activity.qfx", Content: ofx})
	require.NoError(t, err)

	assert.Equal(t, model.FormatOFX, p.Format)
	assert.Equal(t, "XXXX1004", p.AccountHint)
	assert.Equal(t, "acct-1", p.SuggestedAccountID)
	require.Len(t, p.Transactions, 1)
	assert.Equal(t, "fitid:A1", p.Transactions[0].ImportID)
	assert.Equal(t, "42.99", p.Transactions[0].Amount)
	assert.Empty(t, p.Duplicates)
}

func TestService_Preview_NoTransactions(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mock_imports.NewMockLedger(ctrl)
	accounts := mock_imports.NewMockAccountDirectory(ctrl)

	svc := imports.NewService(ledger, accounts, imports.Options{})
	p, err := svc.Preview(context.Background(), imports.File{Name: "junk.csv", Content: "a,b,c\n1,2,3\n"})
	require.ErrorIs(t, err, imports.ErrNoTransactions)
	require.NotNil(t, p)
	assert.Equal(t, model.FormatUnknownCSV, p.Format)
	assert.Equal(t, []string{`Unknown CSV format. Headers: "a,b,c"`}, p.ParseErrors)
}

func TestService_Preview_FormatOverride(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mock_imports.NewMockLedger(ctrl)
	accounts := mock_imports.NewMockAccountDirectory(ctrl)
	ledger.EXPECT().TransactionsBetween(gomock.Any(), "2026-01-03", "2026-01-03").Return(nil, nil)

	svc := imports.NewService(ledger, accounts, imports.Options{})
	p, err := svc.Preview(context.Background(), imports.File{
		Name:    "savings.txt",
		Content: "2026-01-03,PAYROLL,2500.00\n",
		Format:  "headerless-csv",
	})
	require.NoError(t, err)
	assert.Equal(t, model.FormatHeaderlessCSV, p.Format)
	assert.Equal(t, "-2500.00", p.Transactions[0].Amount)

	_, err = svc.Preview(context.Background(), imports.File{Content: "x", Format: "quicken"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestService_Preview_LedgerError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mock_imports.NewMockLedger(ctrl)
	accounts := mock_imports.NewMockAccountDirectory(ctrl)
	ledger.EXPECT().TransactionsBetween(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("disk gone"))

	svc := imports.NewService(ledger, accounts, imports.Options{})
	_, err := svc.Preview(context.Background(), imports.File{Name: "a.csv", Content: amexCSV})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
	assert.NotErrorIs(t, err, imports.ErrNoTransactions)
}

func TestPreview_Selection(t *testing.T) {
	p := &imports.Preview{Transactions: []imports.PreviewTransaction{
		{Transaction: model.Transaction{Date: "2026-01-15", Description: "A", Amount: "1.00"}, ImportID: "hash:a", Selected: false, IsDuplicate: true},
		{Transaction: model.Transaction{Date: "2026-01-16", Description: "B", Amount: "2.00"}, ImportID: "hash:b", Selected: true},
	}}

	sel := p.Selection("acct-1", false)
	assert.Equal(t, "acct-1", sel.AccountID)
	require.Len(t, sel.Transactions, 1)
	assert.Equal(t, imports.ConfirmTransaction{Date: "2026-01-16", Description: "B", Amount: "2.00", ImportID: "hash:b"}, sel.Transactions[0])

	assert.Len(t, p.Selection("acct-1", true).Transactions, 2)
}
