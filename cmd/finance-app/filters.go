package main

import (
	"strings"
	"time"

	"github.com/jqrs/finance-app/pkg/models"
)

// filters narrow the transaction set the CLI commands operate on.
type filters struct {
	startDate string
	endDate   string
	minAmount float64
	maxAmount float64
	merchant  string
}

func (f *filters) keep(t models.Transaction) bool {
	if f.startDate != "" {
		start, _ := time.Parse("2006-01-02", f.startDate)
		if t.Date.Before(start) {
			return false
		}
	}
	if f.endDate != "" {
		end, _ := time.Parse("2006-01-02", f.endDate)
		if t.Date.After(end) {
			return false
		}
	}
	if f.minAmount != 0 && t.Amount < f.minAmount {
		return false
	}
	if f.maxAmount != 0 && t.Amount > f.maxAmount {
		return false
	}
	if f.merchant != "" && !strings.Contains(strings.ToLower(t.Merchant), strings.ToLower(f.merchant)) {
		return false
	}
	return true
}

func (f *filters) apply(txns []models.Transaction) []models.Transaction {
	out := txns[:0]
	for _, t := range txns {
		if f.keep(t) {
			out = append(out, t)
		}
	}
	return out
}
