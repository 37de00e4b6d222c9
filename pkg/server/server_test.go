package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jqrs/finance-app/pkg/config"
	"github.com/jqrs/finance-app/pkg/models"
	"github.com/jqrs/finance-app/pkg/store"
)

func newTestServer() (*Server, *store.Store) {
	st := store.New()
	cfg := &config.Config{
		ListenAddr:     "127.0.0.1:0",
		MinOccurrences: 3,
		MonthsAhead:    3,
		DaysAhead:      30,
	}
	s := New(cfg, st, log.New(io.Discard))
	s.setupRoutes()
	return s, st
}

// doJSON performs a request against the server mux and decodes the JSON body.
func doJSON(t *testing.T, s *Server, method, target string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&decoded))
	return rec.Code, decoded
}

// seedFiller inserts n one-off transactions with distinct merchants, one per
// day, so they count toward volume thresholds without forming recurring groups.
func seedFiller(t *testing.T, st *store.Store, accountID string, n int) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		txn := models.Transaction{
			Date:        base.AddDate(0, 0, i),
			Amount:      -float64(10 + i),
			Description: fmt.Sprintf("FILLER SHOP %d", i),
			AccountID:   accountID,
		}
		_, err := st.InsertTransaction(txn, fmt.Sprintf("fill-%d", i))
		require.NoError(t, err)
	}
}

func TestRecurringBelowGate(t *testing.T) {
	s, st := newTestServer()
	account := st.CreateAccount("Checking", "checking", "", 0)
	seedFiller(t, st, account.ID, 5)

	code, body := doJSON(t, s, http.MethodGet, "/api/predictions/recurring", nil)

	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 10, body["required"])
	assert.EqualValues(t, 5, body["current"])
	assert.Empty(t, body["recurring"])
	assert.NotEmpty(t, body["message"])
}

func TestRecurringAboveGate(t *testing.T) {
	s, st := newTestServer()
	account := st.CreateAccount("Checking", "checking", "", 0)
	seedFiller(t, st, account.ID, 8)

	start := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		txn := models.Transaction{
			Date:        start.AddDate(0, 0, i*30),
			Amount:      -9.99,
			Description: "NETFLIX.COM",
			AccountID:   account.ID,
		}
		_, err := st.InsertTransaction(txn, fmt.Sprintf("nflx-%d", i))
		require.NoError(t, err)
	}

	code, body := doJSON(t, s, http.MethodGet, "/api/predictions/recurring", nil)

	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 12, body["total_transactions"])
	assert.EqualValues(t, 1, body["recurring_count"])

	found := body["recurring"].([]any)
	require.Len(t, found, 1)
	assert.Equal(t, "Netflix", found[0].(map[string]any)["merchant"])
}

func TestSpendingForecastBelowGate(t *testing.T) {
	s, st := newTestServer()
	account := st.CreateAccount("Checking", "checking", "", 0)
	cat := st.CreateCategory("Groceries")

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		txn := models.Transaction{
			Date:        base.AddDate(0, 0, i),
			Amount:      -20,
			Description: fmt.Sprintf("STORE %d", i),
			AccountID:   account.ID,
			CategoryID:  cat.ID,
		}
		_, err := st.InsertTransaction(txn, fmt.Sprintf("sp-%d", i))
		require.NoError(t, err)
	}

	code, body := doJSON(t, s, http.MethodGet, "/api/predictions/spending-forecast", nil)

	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 20, body["required"])
	assert.EqualValues(t, 10, body["current"])
	assert.Empty(t, body["predictions"])
}

func TestSpendingForecastAboveGate(t *testing.T) {
	s, st := newTestServer()
	account := st.CreateAccount("Checking", "checking", "", 0)
	cat := st.CreateCategory("Groceries")

	start := time.Date(2022, 1, 15, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 24; i++ {
		txn := models.Transaction{
			Date:        start.AddDate(0, i, 0),
			Amount:      -(100 + float64(i)),
			Description: "GROCERY RUN",
			AccountID:   account.ID,
			CategoryID:  cat.ID,
		}
		_, err := st.InsertTransaction(txn, fmt.Sprintf("sp-%d", i))
		require.NoError(t, err)
	}

	code, body := doJSON(t, s, http.MethodGet, "/api/predictions/spending-forecast", nil)

	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 3, body["months_ahead"])

	predictions := body["predictions"].(map[string]any)
	require.Contains(t, predictions, cat.ID)
	entry := predictions[cat.ID].(map[string]any)
	assert.Equal(t, "Groceries", entry["category_name"])
	assert.Len(t, entry["forecasts"].([]any), 3)
}

func TestCashflowBelowGate(t *testing.T) {
	s, st := newTestServer()
	account := st.CreateAccount("Checking", "checking", "", 500)
	seedFiller(t, st, account.ID, 20)

	code, body := doJSON(t, s, http.MethodGet, "/api/predictions/cashflow", nil)

	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 30, body["required"])
	assert.EqualValues(t, 20, body["current"])
	assert.Empty(t, body["predictions"])
}

func TestCashflowAboveGate(t *testing.T) {
	s, st := newTestServer()
	account := st.CreateAccount("Checking", "checking", "", 1000)
	seedFiller(t, st, account.ID, 35)

	code, body := doJSON(t, s, http.MethodGet, "/api/predictions/cashflow?account_id="+account.ID, nil)

	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1000, body["current_balance"])
	assert.EqualValues(t, 30, body["days_ahead"])
	assert.Len(t, body["predictions"].([]any), 30)
}

func TestCategorizeTransaction(t *testing.T) {
	s, st := newTestServer()
	account := st.CreateAccount("Checking", "checking", "", 0)
	cat := st.CreateCategory("Dining")

	stored, err := st.InsertTransaction(models.Transaction{
		Date:        time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Amount:      -25,
		Description: "CORNER BISTRO",
		AccountID:   account.ID,
	}, "hash-1")
	require.NoError(t, err)

	code, _ := doJSON(t, s, http.MethodPost, "/api/transactions/categorize", map[string]string{
		"transaction_id": stored.ID,
		"category_id":    cat.ID,
	})
	assert.Equal(t, http.StatusOK, code)

	code, body := doJSON(t, s, http.MethodGet, "/api/transactions?account_id="+account.ID+"&categorized=true", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["total"])

	code, _ = doJSON(t, s, http.MethodPost, "/api/transactions/categorize", map[string]string{
		"transaction_id": "missing",
		"category_id":    cat.ID,
	})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPreviewFlagsAlreadyImportedRows(t *testing.T) {
	s, st := newTestServer()
	account := st.CreateAccount("Checking", "checking", "", 0)

	content := "Date,Amount,Description\n03/15/2024,-42.00,GROCERY STORE\n"
	importBody := map[string]any{
		"content":         content,
		"account_id":      account.ID,
		"column_mapping":  map[string]string{"date": "Date", "amount": "Amount", "description": "Description"},
		"amount_handling": "signed",
	}

	code, _ := doJSON(t, s, http.MethodPost, "/api/import", importBody)
	require.Equal(t, http.StatusOK, code)

	previewBody := map[string]any{
		"content":         content + "03/16/2024,-10.00,NEW PURCHASE\n",
		"account_id":      account.ID,
		"column_mapping":  map[string]string{"date": "Date", "amount": "Amount", "description": "Description"},
		"amount_handling": "signed",
	}
	code, body := doJSON(t, s, http.MethodPost, "/api/import/preview", previewBody)
	require.Equal(t, http.StatusOK, code)

	preview := body["preview"].([]any)
	require.Len(t, preview, 2)
	assert.Equal(t, true, preview[0].(map[string]any)["duplicate"])
	assert.Equal(t, false, preview[1].(map[string]any)["duplicate"])
}

func TestSummaryFeatureAvailability(t *testing.T) {
	s, st := newTestServer()
	account := st.CreateAccount("Checking", "checking", "", 0)
	seedFiller(t, st, account.ID, 35)

	code, body := doJSON(t, s, http.MethodGet, "/api/predictions/summary", nil)
	assert.Equal(t, http.StatusOK, code)

	summary := body["data_summary"].(map[string]any)
	assert.EqualValues(t, 35, summary["total_transactions"])
	assert.EqualValues(t, 34, summary["days_of_data"])

	features := body["feature_availability"].(map[string]any)
	recurringFeature := features["recurring_detection"].(map[string]any)
	assert.Equal(t, true, recurringFeature["available"])
	spendingFeature := features["spending_forecast"].(map[string]any)
	assert.Equal(t, false, spendingFeature["available"])
	cashflowFeature := features["cashflow_forecast"].(map[string]any)
	assert.Equal(t, true, cashflowFeature["available"])
}
