package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisrogers37/really-personal-finance/internal/imports"
	"github.com/chrisrogers37/really-personal-finance/internal/importlog"
	"github.com/chrisrogers37/really-personal-finance/internal/model"
	"github.com/chrisrogers37/really-personal-finance/internal/workspace"
)

func setupTestServer(t *testing.T) (*Server, *workspace.Workspace) {
	t.Helper()
	dir := t.TempDir()
	_, err := workspace.Init(context.Background(), dir, "Household")
	require.NoError(t, err)
	ws, err := workspace.Open(dir, nil)
	require.NoError(t, err)
	return New(ws, nil), ws
}

func do(t *testing.T, s *Server, req *http.Request) (int, []byte) {
	t.Helper()
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func uploadRequest(t *testing.T, name string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if name != "" {
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import/preview", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("../../testdata/" + name)
	require.NoError(t, err)
	return data
}

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()
	var e errorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	return e.Error
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := setupTestServer(t)

	status, body := do(t, s, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, fiber.StatusOK, status)

	var result map[string]string
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, "ok", result["status"])
	assert.NotEmpty(t, result["version"])
}

func TestAccountsEndpoint(t *testing.T) {
	s, ws := setupTestServer(t)

	status, body := do(t, s, httptest.NewRequest(http.MethodGet, "/api/accounts", nil))
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"accounts":[]}`, string(body))

	acct, err := ws.AddAccount(context.Background(), "Checking", model.AccountTypeChecking, "4821")
	require.NoError(t, err)

	_, body = do(t, s, httptest.NewRequest(http.MethodGet, "/api/accounts", nil))
	var result struct {
		Accounts []model.Account `json:"accounts"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, []model.Account{acct}, result.Accounts)
}

func TestPreview_NoFile(t *testing.T) {
	s, _ := setupTestServer(t)

	status, body := do(t, s, uploadRequest(t, "", nil, map[string]string{"format": "ofx"}))
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "No file provided", errorMessage(t, body))
}

func TestPreview_TooLarge(t *testing.T) {
	s, _ := setupTestServer(t)

	big := bytes.Repeat([]byte("x"), 5<<20+1)
	status, body := do(t, s, uploadRequest(t, "big.csv", big, nil))
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "File too large (max 5MB)", errorMessage(t, body))
}

func TestPreview_NoTransactions(t *testing.T) {
	s, _ := setupTestServer(t)

	status, body := do(t, s, uploadRequest(t, "notes.csv", []byte("Foo,Bar\n1,2\n"), nil))
	assert.Equal(t, fiber.StatusBadRequest, status)

	var e errorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "No transactions found in file", e.Error)
	require.Len(t, e.ParseErrors, 1)
	assert.Contains(t, e.ParseErrors[0], "Unknown CSV format")
}

func TestPreview_UnknownFormat(t *testing.T) {
	s, _ := setupTestServer(t)

	status, body := do(t, s, uploadRequest(t, "a.csv", []byte("x"), map[string]string{"format": "quicken"}))
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, errorMessage(t, body), "unknown format")
}

func TestPreview_OFX(t *testing.T) {
	s, ws := setupTestServer(t)
	acct, err := ws.AddAccount(context.Background(), "Amex", model.AccountTypeCredit, "21004")
	require.NoError(t, err)

	status, body := do(t, s, uploadRequest(t, "activity.qfx", fixture(t, "american_express/activity.qfx"), nil))
	require.Equal(t, fiber.StatusOK, status, string(body))

	var p imports.Preview
	require.NoError(t, json.Unmarshal(body, &p))
	assert.Equal(t, model.FormatOFX, p.Format)
	assert.Equal(t, acct.ID, p.SuggestedAccountID)
	assert.Equal(t, 40, p.TotalCount)
	assert.Equal(t, 40, p.NewCount)
	assert.Empty(t, p.ParseErrors)
	assert.True(t, strings.HasPrefix(p.Transactions[0].ImportID, "fitid:"))
}

func confirmRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/import/confirm", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestConfirm_Validation(t *testing.T) {
	s, _ := setupTestServer(t)

	tests := []struct {
		body string
		want string
	}{
		{"", "Request body is required"},
		{`{"transactions":[]}`, "accountId is required"},
		{`{"accountId":"a","transactions":[]}`, "transactions array is required and must not be empty"},
		{`{"accountId":"a","transactions":[{"date":"2026-01-15","amount":"1.00","importId":"fitid:A"}]}`, "Transaction at index 0: description is required"},
	}
	for _, tt := range tests {
		status, body := do(t, s, confirmRequest(tt.body))
		assert.Equal(t, fiber.StatusBadRequest, status, tt.body)
		assert.Equal(t, tt.want, errorMessage(t, body), tt.body)
	}
}

func TestConfirm_AccountNotFound(t *testing.T) {
	s, _ := setupTestServer(t)

	status, body := do(t, s, confirmRequest(`{"accountId":"missing","transactions":[{"date":"2026-01-15","description":"X","amount":"1.00","importId":"fitid:A"}]}`))
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "Account not found", errorMessage(t, body))
}

func TestPreviewThenConfirm(t *testing.T) {
	s, ws := setupTestServer(t)
	acct, err := ws.AddAccount(context.Background(), "BofA Checking", model.AccountTypeChecking, "4821")
	require.NoError(t, err)

	_, body := do(t, s, uploadRequest(t, "stmt.csv", fixture(t, "bank_of_america/stmt.csv"), nil))
	var p imports.Preview
	require.NoError(t, json.Unmarshal(body, &p))
	require.Equal(t, 16, p.TotalCount)

	in := p.Selection(acct.ID, false)
	in.FileName = "stmt.csv"
	payload, err := json.Marshal(in)
	require.NoError(t, err)

	status, body := do(t, s, confirmRequest(string(payload)))
	require.Equal(t, fiber.StatusOK, status, string(body))
	assert.JSONEq(t, `{"success":true,"imported":16,"skipped":0}`, string(body))

	status, body = do(t, s, confirmRequest(string(payload)))
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"success":true,"imported":0,"skipped":16}`, string(body))

	entries, err := importlog.Read(ws.Root)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "stmt.csv", entries[0].File)
	assert.Equal(t, string(model.FormatBofACSV), entries[0].Format)
}
