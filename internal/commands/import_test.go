package commands_test

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisrogers37/really-personal-finance/internal/accounts"
	"github.com/chrisrogers37/really-personal-finance/internal/importlog"
	"github.com/chrisrogers37/really-personal-finance/internal/imports"
	"github.com/chrisrogers37/really-personal-finance/internal/ledger"
	"github.com/chrisrogers37/really-personal-finance/internal/model"
)

func fixturePath(name string) string {
	return filepath.Join("..", "..", "testdata", name)
}

func addAccount(t *testing.T, dir, name, accountType, mask string) model.Account {
	t.Helper()
	out, err := runRPF(t, "account", "add", "--repo", dir, "--name", name, "--type", accountType, "--mask", mask)
	require.NoError(t, err, out)

	svc, err := accounts.Load(dir)
	require.NoError(t, err)
	for _, a := range svc.All() {
		if a.Name == name {
			return a
		}
	}
	t.Fatalf("account %s not saved", name)
	return model.Account{}
}

func ledgerRows(t *testing.T, dir string) []model.LedgerTransaction {
	t.Helper()
	rows, err := ledger.NewStore(dir, nil).All(context.Background())
	require.NoError(t, err)
	return rows
}

func lastCommit(t *testing.T, dir string) string {
	t.Helper()
	log := exec.Command("git", "log", "--format=%s", "-1")
	log.Dir = dir
	out, err := log.Output()
	require.NoError(t, err)
	return strings.TrimSpace(string(out))
}

func TestAccount_AddAndList(t *testing.T) {
	dir := initWorkspace(t)
	acct := addAccount(t, dir, "Amex Platinum", "credit", "21004")
	assert.Equal(t, model.AccountTypeCredit, acct.Type)
	assert.Equal(t, "account: add Amex Platinum", lastCommit(t, dir))

	out, err := runRPFStdout(t, "account", "list", "--repo", dir)
	require.NoError(t, err)
	assert.Contains(t, out, acct.ID)
	assert.Contains(t, out, "Amex Platinum")
	assert.Contains(t, out, "21004")
}

func TestAccount_AddRejectsBadType(t *testing.T) {
	dir := initWorkspace(t)
	out, err := runRPF(t, "account", "add", "--repo", dir, "--name", "X", "--type", "brokerage")
	require.Error(t, err)
	assert.Contains(t, out, "invalid account type")
}

func TestPreview_Text(t *testing.T) {
	dir := initWorkspace(t)
	addAccount(t, dir, "Amex Platinum", "credit", "21004")

	out, err := runRPFStdout(t, "preview", "--repo", dir, fixturePath("american_express/activity.qfx"))
	require.NoError(t, err)
	assert.Contains(t, out, "activity.qfx: ofx, account XXXXXXXXXXX21004 -> Amex Platinum")
	assert.Contains(t, out, "+ 2026-02-14 | DELTA AIR LINES")
	assert.Contains(t, out, "40 transaction(s): 40 new, 0 duplicate(s)")
}

func TestPreview_JSON(t *testing.T) {
	dir := initWorkspace(t)

	out, err := runRPFStdout(t, "preview", "--repo", dir, "--json", fixturePath("headerless/savings.csv"))
	require.NoError(t, err)

	var p imports.Preview
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, model.FormatHeaderlessCSV, p.Format)
	assert.Equal(t, 5, p.TotalCount)
	assert.Equal(t, "-2500.00", p.Transactions[0].Amount)
	assert.True(t, strings.HasPrefix(p.Transactions[0].ImportID, "hash:"))
}

func TestPreview_FormatOverride(t *testing.T) {
	dir := initWorkspace(t)

	out, err := runRPF(t, "preview", "--repo", dir, "--format", "quicken", fixturePath("headerless/savings.csv"))
	require.Error(t, err)
	assert.Contains(t, out, "unknown format")
}

func TestPreview_NoTransactions(t *testing.T) {
	dir := initWorkspace(t)
	path := filepath.Join(t.TempDir(), "notes.csv")
	require.NoError(t, os.WriteFile(path, []byte("Foo,Bar\n1,2\n"), 0o644))

	out, err := runRPF(t, "preview", "--repo", dir, path)
	require.Error(t, err)
	assert.Contains(t, out, "Unknown CSV format")
	assert.Contains(t, out, "no transactions found in file")
}

func TestImport_ExplicitFile(t *testing.T) {
	dir := initWorkspace(t)
	acct := addAccount(t, dir, "BofA Checking", "checking", "")

	out, err := runRPFStdout(t, "import", "--repo", dir, "--account", acct.ID, fixturePath("bank_of_america/stmt.csv"))
	require.NoError(t, err)
	assert.Contains(t, out, "stmt.csv: Imported 16 transaction(s), skipped 0")
	assert.Equal(t, "import: stmt.csv (16 imported, 0 skipped)", lastCommit(t, dir))

	rows := ledgerRows(t, dir)
	require.Len(t, rows, 16)
	for _, r := range rows {
		assert.Equal(t, acct.ID, r.AccountID)
		assert.Equal(t, "import", r.Source)
	}

	// Re-import: exact duplicates are not submitted.
	out, err = runRPFStdout(t, "import", "--repo", dir, "--account", acct.ID, fixturePath("bank_of_america/stmt.csv"))
	require.NoError(t, err)
	assert.Contains(t, out, "stmt.csv: Imported 0 transaction(s), skipped 16")
	assert.Len(t, ledgerRows(t, dir), 16)

	entries, err := importlog.Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "bofa-csv", entries[1].Format)
	assert.Equal(t, 16, entries[1].Skipped)
}

func TestImport_DryRun(t *testing.T) {
	dir := initWorkspace(t)
	acct := addAccount(t, dir, "Savings", "savings", "")

	out, err := runRPFStdout(t, "import", "--repo", dir, "--account", acct.ID, "--dry-run", fixturePath("headerless/savings.csv"))
	require.NoError(t, err)
	assert.Contains(t, out, "savings.csv: Would import 5 transaction(s), skipped 0")
	assert.Empty(t, ledgerRows(t, dir))

	entries, err := importlog.Read(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestImport_NoAccount(t *testing.T) {
	dir := initWorkspace(t)

	out, err := runRPF(t, "import", "--repo", dir, fixturePath("headerless/savings.csv"))
	require.Error(t, err)
	assert.Contains(t, out, "pass --account")
}

func TestImport_Inbox(t *testing.T) {
	dir := initWorkspace(t)
	addAccount(t, dir, "Amex Platinum", "credit", "21004")

	data, err := os.ReadFile(fixturePath("american_express/activity.qfx"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "activity.qfx"), data, 0o644))

	out, err := runRPFStdout(t, "import", "--repo", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "activity.qfx: Imported 40 transaction(s), skipped 0")

	_, err = os.Stat(filepath.Join(dir, "import", "processed", "activity.qfx"))
	require.NoError(t, err, "file should be moved to processed/")
	_, err = os.Stat(filepath.Join(dir, "import", "activity.qfx"))
	assert.True(t, os.IsNotExist(err))

	assert.Equal(t, "import: activity.qfx (40 imported, 0 skipped)", lastCommit(t, dir))
	assert.Len(t, ledgerRows(t, dir), 40)

	out, err = runRPFStdout(t, "import", "--repo", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to import")
}

func TestImport_CrossFormatDuplicates(t *testing.T) {
	dir := initWorkspace(t)
	acct := addAccount(t, dir, "Amex Platinum", "credit", "21004")

	_, err := runRPFStdout(t, "import", "--repo", dir, fixturePath("american_express/activity.qfx"))
	require.NoError(t, err)

	out, err := runRPFStdout(t, "preview", "--repo", dir, fixturePath("american_express/activity.csv"))
	require.NoError(t, err)
	assert.Contains(t, out, "~ 2026-02-14 | DELTA AIR LINES")
	assert.Contains(t, out, "40 transaction(s): 0 new, 40 duplicate(s)")

	// Probable duplicates stay selected; the hash import ids differ, so the ledger accepts them.
	out, err = runRPFStdout(t, "import", "--repo", dir, "--account", acct.ID, "--dry-run", fixturePath("american_express/activity.csv"))
	require.NoError(t, err)
	assert.Contains(t, out, "Would import 40 transaction(s)")
}
