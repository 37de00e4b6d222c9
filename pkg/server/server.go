// Package server exposes the ingestion and prediction pipeline over HTTP.
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/jqrs/finance-app/pkg/config"
	"github.com/jqrs/finance-app/pkg/dedup"
	"github.com/jqrs/finance-app/pkg/formats"
	"github.com/jqrs/finance-app/pkg/importer"
	"github.com/jqrs/finance-app/pkg/models"
	"github.com/jqrs/finance-app/pkg/normalizer"
	"github.com/jqrs/finance-app/pkg/store"
)

// Minimum-data gates for the prediction endpoints. Below these the
// endpoints answer with an explanatory payload and empty results.
const (
	minRecurringTxns        = 10
	minCategorizedTxns      = 20
	minCashflowTxns         = 30
	minCashflowDays         = 30
	minSpendingForecastDays = 60
)

// Server handles HTTP requests for imports and predictions.
type Server struct {
	config   *config.Config
	logger   *log.Logger
	mux      *http.ServeMux
	store    *store.Store
	importer *importer.Importer
}

// New creates a new HTTP server around the given store.
func New(cfg *config.Config, st *store.Store, logger *log.Logger) *Server {
	return &Server{
		config:   cfg,
		logger:   logger,
		mux:      http.NewServeMux(),
		store:    st,
		importer: importer.New(st, logger),
	}
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	s.setupRoutes()
	return http.ListenAndServe(addr, s.mux)
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/formats", s.withLogging(s.handleFormats))
	s.mux.HandleFunc("/api/accounts", s.withLogging(s.handleAccounts))
	s.mux.HandleFunc("/api/categories", s.withLogging(s.handleCategories))
	s.mux.HandleFunc("/api/transactions", s.withLogging(s.handleTransactions))
	s.mux.HandleFunc("/api/transactions/categorize", s.withLogging(s.handleCategorize))
	s.mux.HandleFunc("/api/import/detect", s.withLogging(s.handleDetect))
	s.mux.HandleFunc("/api/import/preview", s.withLogging(s.handlePreview))
	s.mux.HandleFunc("/api/import", s.withLogging(s.handleImport))
	s.mux.HandleFunc("/api/predictions/recurring", s.withLogging(s.handleRecurring))
	s.mux.HandleFunc("/api/predictions/spending-forecast", s.withLogging(s.handleSpendingForecast))
	s.mux.HandleFunc("/api/predictions/cashflow", s.withLogging(s.handleCashflow))
	s.mux.HandleFunc("/api/predictions/summary", s.withLogging(s.handleSummary))
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"formats": formats.List()})
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, map[string]any{"accounts": s.store.ListAccounts()})
	case http.MethodPost:
		var req struct {
			Name        string  `json:"name"`
			Type        string  `json:"type"`
			Institution string  `json:"institution"`
			Balance     float64 `json:"balance"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, r, http.StatusBadRequest, "invalid json body", err)
			return
		}
		if req.Name == "" {
			s.respondError(w, r, http.StatusBadRequest, "name required", nil)
			return
		}
		account := s.store.CreateAccount(req.Name, req.Type, req.Institution, req.Balance)
		s.writeJSON(w, http.StatusCreated, account)
	default:
		s.respondError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
	}
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, map[string]any{"categories": s.store.ListCategories()})
	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, r, http.StatusBadRequest, "invalid json body", err)
			return
		}
		if req.Name == "" {
			s.respondError(w, r, http.StatusBadRequest, "name required", nil)
			return
		}
		s.writeJSON(w, http.StatusCreated, s.store.CreateCategory(req.Name))
	default:
		s.respondError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
	}
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}
	filter := store.Filter{
		AccountID:       r.URL.Query().Get("account_id"),
		CategorizedOnly: r.URL.Query().Get("categorized") == "true",
	}
	txns := s.store.ListTransactions(filter)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"total":        len(txns),
		"transactions": txns,
	})
}

// handleCategorize assigns a category to a stored transaction.
func (s *Server) handleCategorize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	var req struct {
		TransactionID string `json:"transaction_id"`
		CategoryID    string `json:"category_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid json body", err)
		return
	}
	if req.TransactionID == "" || req.CategoryID == "" {
		s.respondError(w, r, http.StatusBadRequest, "transaction_id and category_id required", nil)
		return
	}

	if err := s.store.AssignCategory(req.TransactionID, req.CategoryID); err != nil {
		s.respondError(w, r, http.StatusNotFound, err.Error(), nil)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// handleDetect inspects an uploaded file and reports the detected format,
// the observed columns and per-role suggestions.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "file required", err)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "failed to read file", err)
		return
	}

	headers, rows, err := formats.Sample(data, 10)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "failed to parse file", err)
		return
	}

	suggestions := formats.InferColumns(headers, rows)

	response := map[string]any{
		"columns":            headers,
		"column_suggestions": suggestions,
		"sample_rows":        sampleRows(headers, rows, 5),
	}
	if detected, ok := formats.Detect(headers); ok {
		response["detected_format"] = detected.Name
		response["suggested_mapping"] = detected.Mapping
		response["account_info"] = map[string]string{
			"account_type": detected.AccountType,
			"institution":  detected.Institution,
			"default_name": detected.DefaultName,
		}
	} else if mapping, ok := formats.Suggest(headers, rows); ok {
		response["suggested_mapping"] = mapping
	}

	s.writeJSON(w, http.StatusOK, response)
}

// importRequest is the JSON body shared by preview and import.
type importRequest struct {
	Content        string               `json:"content"`
	AccountID      string               `json:"account_id"`
	Mapping        models.ColumnMapping `json:"column_mapping"`
	DateFormat     string               `json:"date_format"`
	AmountHandling string               `json:"amount_handling"`
	DebitColumn    string               `json:"debit_column"`
	CreditColumn   string               `json:"credit_column"`
	TypeColumn     string               `json:"type_column"`
	CategoryColumn string               `json:"category_column"`
	SkipRows       int                  `json:"skip_rows"`
}

func (r importRequest) options() normalizer.Options {
	return normalizer.Options{
		Mapping:        r.Mapping,
		DateFormat:     r.DateFormat,
		AmountHandling: normalizer.Mode(r.AmountHandling),
		DebitColumn:    r.DebitColumn,
		CreditColumn:   r.CreditColumn,
		TypeColumn:     r.TypeColumn,
		CategoryColumn: r.CategoryColumn,
		SkipRows:       r.SkipRows,
	}
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid json body", err)
		return
	}

	n := normalizer.New(s.logger)
	txns, report, err := n.Normalize([]byte(req.Content), req.options())
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "failed to parse document", err)
		return
	}

	preview := make([]map[string]any, 0, 10)
	for _, t := range txns {
		if len(preview) == 10 {
			break
		}
		row := map[string]any{
			"date":        t.DateString(),
			"amount":      t.Amount,
			"description": t.Description,
			"merchant":    t.Merchant,
		}
		// With a target account the preview can flag rows the store has
		// already seen.
		if req.AccountID != "" {
			hash := dedup.Fingerprint(t.DateString(), t.Amount, t.Description, req.AccountID)
			row["duplicate"] = s.store.HasFingerprint(hash)
		}
		preview = append(preview, row)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"total_rows": report.Parsed,
		"dropped":    report.Dropped,
		"preview":    preview,
	})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid json body", err)
		return
	}
	if _, ok := s.store.GetAccount(req.AccountID); !ok {
		s.respondError(w, r, http.StatusNotFound, "account not found", nil)
		return
	}

	result, err := s.importer.Import([]byte(req.Content), req.AccountID, req.options())
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "import failed", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"result": result,
	})
}

// --- helpers ---

func sampleRows(headers []string, rows [][]string, n int) []map[string]string {
	out := make([]map[string]string, 0, n)
	for _, row := range rows {
		if len(out) == n {
			break
		}
		m := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(row) {
				m[h] = row[i]
			}
		}
		out = append(out, m)
	}
	return out
}

// writeJSON encodes v as JSON with the given status and writes headers.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

// respondError logs the error and returns a minimal JSON error body.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	if err != nil {
		s.logger.Warn("request error", "status", status, "msg", message, "err", err, "method", r.Method, "path", r.URL.Path)
	} else {
		s.logger.Warn("request error", "status", status, "msg", message, "method", r.Method, "path", r.URL.Path)
	}
	s.writeJSON(w, status, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// withLogging wraps a handler to log requests and recover panics.
func (s *Server) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", "panic", rec, "method", r.Method, "path", r.URL.Path)
				s.respondError(w, r, http.StatusInternalServerError, "internal server error", fmt.Errorf("panic: %v", rec))
			}
		}()
		next(w, r)
	}
}
