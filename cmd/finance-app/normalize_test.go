package main

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/jqrs/finance-app/pkg/models"
)

func TestWriteCanonicalCSVQuotesSpecialCharacters(t *testing.T) {
	txns := []models.Transaction{
		{
			Date:        time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			Amount:      -42.5,
			Description: `ACME, INC. "SUPPLIES"`,
			Merchant:    "Acme",
		},
	}

	var buf bytes.Buffer
	if err := writeCanonicalCSV(&buf, txns); err != nil {
		t.Fatalf("writeCanonicalCSV failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header + 1 row, got %d records", len(records))
	}

	row := records[1]
	if row[0] != "2024-03-15" || row[1] != "-42.50" {
		t.Errorf("unexpected date/amount: %v", row)
	}
	if row[2] != `ACME, INC. "SUPPLIES"` {
		t.Errorf("description not round-tripped: %q", row[2])
	}
}
