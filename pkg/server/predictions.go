package server

import (
	"net/http"
	"strconv"

	"github.com/jqrs/finance-app/pkg/forecast"
	"github.com/jqrs/finance-app/pkg/models"
	"github.com/jqrs/finance-app/pkg/recurring"
	"github.com/jqrs/finance-app/pkg/store"
)

// handleRecurring detects subscriptions and bills in the full transaction
// history.
func (s *Server) handleRecurring(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	minOccurrences := clampQueryInt(r, "min_occurrences", s.config.MinOccurrences, 2, 10)
	txns := s.store.Snapshot(store.Filter{})

	if len(txns) < minRecurringTxns {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"message":   "Not enough transactions for recurring detection",
			"required":  minRecurringTxns,
			"current":   len(txns),
			"recurring": []any{},
		})
		return
	}

	found := recurring.Detect(txns, minOccurrences)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"total_transactions": len(txns),
		"recurring_count":    len(found),
		"recurring":          found,
	})
}

// handleSpendingForecast trains the per-category spending models and
// forecasts the requested horizon.
func (s *Server) handleSpendingForecast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	categoryID := r.URL.Query().Get("category_id")
	monthsAhead := clampQueryInt(r, "months_ahead", s.config.MonthsAhead, 1, 12)

	txns := s.store.Snapshot(store.Filter{CategorizedOnly: true})
	if len(txns) < minCategorizedTxns {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"message":     "Not enough categorized transactions for forecasting",
			"required":    minCategorizedTxns,
			"current":     len(txns),
			"predictions": map[string]any{},
		})
		return
	}

	forecaster := forecast.NewSpendingForecaster()
	training := forecaster.Train(txns)

	predictions := forecaster.PredictAll(monthsAhead)
	if categoryID != "" {
		predictions = map[string][]models.SpendingForecast{categoryID: forecaster.Predict(categoryID, monthsAhead)}
	}

	names := make(map[string]string)
	for _, c := range s.store.ListCategories() {
		names[c.ID] = c.Name
	}

	withNames := make(map[string]any, len(predictions))
	for catID, preds := range predictions {
		name, ok := names[catID]
		if !ok {
			name = "Unknown"
		}
		withNames[catID] = map[string]any{
			"category_name": name,
			"forecasts":     preds,
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"training":     training,
		"months_ahead": monthsAhead,
		"predictions":  withNames,
	})
}

// handleCashflow projects account balances, folding detected recurring
// expenses into the daily flow.
func (s *Server) handleCashflow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	daysAhead := clampQueryInt(r, "days_ahead", s.config.DaysAhead, 7, 90)
	accountID := r.URL.Query().Get("account_id")

	var balance float64
	filter := store.Filter{}
	if accountID != "" {
		account, ok := s.store.GetAccount(accountID)
		if !ok {
			s.respondError(w, r, http.StatusNotFound, "account not found", nil)
			return
		}
		balance = account.CurrentBalance
		filter.AccountID = accountID
	} else {
		for _, a := range s.store.ListAccounts() {
			balance += a.CurrentBalance
		}
	}

	txns := s.store.Snapshot(filter)
	if len(txns) < minCashflowTxns {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"message":     "Not enough transactions for cashflow forecasting",
			"required":    minCashflowTxns,
			"current":     len(txns),
			"predictions": []any{},
		})
		return
	}

	recurringExpenses := recurring.Detect(txns, recurring.DefaultMinOccurrences)

	forecaster := forecast.NewCashflowForecaster()
	training := forecaster.Train(txns, recurringExpenses)
	predictions := forecaster.Predict(balance, daysAhead)

	s.writeJSON(w, http.StatusOK, map[string]any{
		"current_balance": balance,
		"training":        training,
		"days_ahead":      daysAhead,
		"predictions":     predictions,
	})
}

// handleSummary reports data volumes and which predictions they unlock.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	total := len(s.store.Snapshot(store.Filter{}))
	categorized := len(s.store.Snapshot(store.Filter{CategorizedOnly: true}))

	daysOfData := 0
	dateRange := map[string]any{"start": nil, "end": nil}
	if first, last, ok := s.store.DateSpan(); ok {
		daysOfData = int(last.Sub(first).Hours() / 24)
		dateRange["start"] = first.Format("2006-01-02")
		dateRange["end"] = last.Format("2006-01-02")
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"data_summary": map[string]any{
			"total_transactions":       total,
			"categorized_transactions": categorized,
			"days_of_data":             daysOfData,
			"date_range":               dateRange,
		},
		"feature_availability": map[string]any{
			"recurring_detection": map[string]any{
				"available":   total >= minRecurringTxns,
				"requirement": "10+ transactions",
			},
			"spending_forecast": map[string]any{
				"available":   categorized >= minCategorizedTxns && daysOfData >= minSpendingForecastDays,
				"requirement": "20+ categorized transactions, 60+ days of data",
			},
			"cashflow_forecast": map[string]any{
				"available":   total >= minCashflowTxns && daysOfData >= minCashflowDays,
				"requirement": "30+ transactions, 30+ days of data",
			},
		},
	})
}

func clampQueryInt(r *http.Request, key string, def, lo, hi int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
