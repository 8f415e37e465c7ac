package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/core"
	"tally/internal/ledger"
	"tally/internal/memory"
)

func newTestServer(t *testing.T) (http.Handler, string) {
	t.Helper()
	engine := ledger.NewEngine(memory.New(), nil)
	account, err := engine.CreateAccount(context.Background(), "test account")
	require.NoError(t, err)
	return NewServer(":0", engine, nil).Handler, account.ID
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func createTx(t *testing.T, handler http.Handler, accountID string, amount, kind string) string {
	t.Helper()
	w := doJSON(t, handler, http.MethodPost, "/api/accounts/"+accountID+"/transactions", map[string]any{
		"amount":      json.RawMessage(amount),
		"kind":        kind,
		"description": "test entry",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decodeResponse(t, w)
	data := resp["data"].(map[string]any)
	tx := data["transaction"].(map[string]any)
	return tx["id"].(string)
}

func TestCreateTransactionEndpoint(t *testing.T) {
	handler, accountID := newTestServer(t)

	w := doJSON(t, handler, http.MethodPost, "/api/accounts/"+accountID+"/transactions", map[string]any{
		"amount":      200,
		"kind":        "credit",
		"description": "initial deposit",
		"category":    "salary",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decodeResponse(t, w)
	assert.Equal(t, true, resp["success"])
	data := resp["data"].(map[string]any)
	assert.Equal(t, float64(200), data["newBalance"])
	tx := data["transaction"].(map[string]any)
	assert.Equal(t, float64(200), tx["balanceAfter"])
	assert.Equal(t, "credit", tx["kind"])
}

func TestCreateTransactionInvalidAmount(t *testing.T) {
	handler, accountID := newTestServer(t)

	for _, amount := range []string{"0", "-5"} {
		w := doJSON(t, handler, http.MethodPost, "/api/accounts/"+accountID+"/transactions", map[string]any{
			"amount":      json.RawMessage(amount),
			"kind":        "credit",
			"description": "bad",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "amount %s", amount)
	}

	// The failed creates must not have moved the balance.
	w := doJSON(t, handler, http.MethodGet, "/api/accounts/"+accountID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	account := decodeResponse(t, w)["data"].(map[string]any)
	assert.Equal(t, float64(0), account["balance"])
}

func TestCreateTransactionUnknownKind(t *testing.T) {
	handler, accountID := newTestServer(t)

	w := doJSON(t, handler, http.MethodPost, "/api/accounts/"+accountID+"/transactions", map[string]any{
		"amount":      10,
		"kind":        "transfer",
		"description": "bad",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCreateTransactionUnknownAccount(t *testing.T) {
	handler, _ := newTestServer(t)

	w := doJSON(t, handler, http.MethodPost, "/api/accounts/missing/transactions", map[string]any{
		"amount":      10,
		"kind":        "credit",
		"description": "orphan",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateTransactionEndpoint(t *testing.T) {
	handler, accountID := newTestServer(t)

	createTx(t, handler, accountID, "200", "credit")
	txID := createTx(t, handler, accountID, "50", "debit")

	w := doJSON(t, handler, http.MethodPut, fmt.Sprintf("/api/accounts/%s/transactions/%s", accountID, txID), map[string]any{
		"amount":      75,
		"kind":        "debit",
		"description": "bigger debit",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decodeResponse(t, w)["data"].(map[string]any)
	assert.Equal(t, float64(125), data["newBalance"])
}

func TestDeleteTransactionEndpoint(t *testing.T) {
	handler, accountID := newTestServer(t)

	createTx(t, handler, accountID, "200", "credit")
	txID := createTx(t, handler, accountID, "50", "debit")

	w := doJSON(t, handler, http.MethodDelete, fmt.Sprintf("/api/accounts/%s/transactions/%s", accountID, txID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w)["data"].(map[string]any)
	assert.Equal(t, float64(200), data["newBalance"])
	deleted := data["deletedTransaction"].(map[string]any)
	assert.Equal(t, txID, deleted["id"])

	w = doJSON(t, handler, http.MethodDelete, fmt.Sprintf("/api/accounts/%s/transactions/%s", accountID, txID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCrossAccountLooksMissing(t *testing.T) {
	engine := ledger.NewEngine(memory.New(), nil)
	ctx := context.Background()
	owner, err := engine.CreateAccount(ctx, "owner")
	require.NoError(t, err)
	other, err := engine.CreateAccount(ctx, "other")
	require.NoError(t, err)
	handler := NewServer(":0", engine, nil).Handler

	txID := createTx(t, handler, owner.ID, "100", "credit")

	w := doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/accounts/%s/transactions/%s", other.ID, txID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Transaction not found")
}

func TestListTransactionsEndpoint(t *testing.T) {
	handler, accountID := newTestServer(t)
	for i := 0; i < 15; i++ {
		createTx(t, handler, accountID, "10", "credit")
	}

	w := doJSON(t, handler, http.MethodGet, "/api/accounts/"+accountID+"/transactions?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w)["data"].(map[string]any)
	assert.Len(t, data["transactions"].([]any), 10)

	page := data["pagination"].(map[string]any)
	assert.Equal(t, float64(1), page["currentPage"])
	assert.Equal(t, float64(2), page["totalPages"])
	assert.Equal(t, float64(15), page["totalItems"])
	assert.Equal(t, true, page["hasNextPage"])
	assert.Equal(t, false, page["hasPrevPage"])

	w = doJSON(t, handler, http.MethodGet, "/api/accounts/"+accountID+"/transactions?limit=10&page=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data = decodeResponse(t, w)["data"].(map[string]any)
	assert.Len(t, data["transactions"].([]any), 5)
}

func TestListTransactionsBadDate(t *testing.T) {
	handler, accountID := newTestServer(t)

	w := doJSON(t, handler, http.MethodGet, "/api/accounts/"+accountID+"/transactions?startDate=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatsEndpoint(t *testing.T) {
	handler, accountID := newTestServer(t)

	createTx(t, handler, accountID, "100", "credit")
	createTx(t, handler, accountID, "50", "debit")
	createTx(t, handler, accountID, "75", "credit")

	w := doJSON(t, handler, http.MethodGet, "/api/accounts/"+accountID+"/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeResponse(t, w)["data"].(map[string]any)
	summary := data["summary"].(map[string]any)
	assert.Equal(t, float64(3), summary["totalTransactions"])
	assert.Equal(t, float64(175), summary["totalCredit"])
	assert.Equal(t, float64(50), summary["totalDebit"])
	assert.Equal(t, float64(125), summary["netAmount"])
	assert.Equal(t, float64(75), summary["averageAmount"])
}

func TestCreateAccountEndpoint(t *testing.T) {
	handler, _ := newTestServer(t)

	w := doJSON(t, handler, http.MethodPost, "/api/accounts", map[string]any{"name": "savings"})
	require.Equal(t, http.StatusCreated, w.Code)
	account := decodeResponse(t, w)["data"].(map[string]any)
	assert.Equal(t, "savings", account["name"])
	assert.Equal(t, float64(0), account["balance"])
	assert.NotEmpty(t, account["id"])

	w = doJSON(t, handler, http.MethodPost, "/api/accounts", map[string]any{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthz(t *testing.T) {
	handler, _ := newTestServer(t)
	w := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConflictMapsTo409(t *testing.T) {
	engine := ledger.NewEngine(alwaysConflict{}, nil)
	handler := NewServer(":0", engine, nil).Handler

	w := doJSON(t, handler, http.MethodPost, "/api/accounts/acct/transactions", map[string]any{
		"amount":      10,
		"kind":        "credit",
		"description": "contended",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

// alwaysConflict satisfies ledger.Store with a permanently contended
// balance.
type alwaysConflict struct{ ledger.Store }

func (alwaysConflict) GetAccount(context.Context, string) (core.Account, error) {
	return core.Account{ID: "acct"}, nil
}

func (alwaysConflict) ApplyCreate(context.Context, core.Transaction, core.Money) (core.Money, error) {
	return core.Money{}, core.ErrConflict
}
