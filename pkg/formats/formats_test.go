package formats

import "testing"

func TestDetectKnownFormats(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		want    string
	}{
		{
			name:    "chase credit",
			headers: []string{"Transaction Date", "Post Date", "Description", "Category", "Type", "Amount"},
			want:    "chase_credit",
		},
		{
			name:    "chase checking",
			headers: []string{"Details", "Posting Date", "Description", "Amount", "Type", "Balance"},
			want:    "chase_checking",
		},
		{
			name:    "bank of america",
			headers: []string{"Date", "Description", "Amount", "Running Bal."},
			want:    "bank_of_america",
		},
		{
			name:    "capital one",
			headers: []string{"Transaction Date", "Posted Date", "Card No.", "Description", "Category", "Debit", "Credit"},
			want:    "capital_one",
		},
	}

	for _, tt := range tests {
		got, ok := Detect(tt.headers)
		if !ok {
			t.Errorf("%s: no format detected", tt.name)
			continue
		}
		if got.Name != tt.want {
			t.Errorf("%s: detected %s, want %s", tt.name, got.Name, tt.want)
		}
	}
}

// A Mint export's headers are a superset of the wells_fargo identifiers, so
// catalog order makes wells_fargo win. The order is intentional.
func TestDetectFirstMatchWins(t *testing.T) {
	headers := []string{"Date", "Description", "Original Description", "Amount", "Transaction Type", "Category"}
	got, ok := Detect(headers)
	if !ok {
		t.Fatal("no format detected")
	}
	if got.Name != "wells_fargo" {
		t.Errorf("detected %s, want wells_fargo", got.Name)
	}
}

func TestDetectUnknown(t *testing.T) {
	if f, ok := Detect([]string{"Foo", "Bar"}); ok {
		t.Errorf("expected no match, got %s", f.Name)
	}
}

func TestGet(t *testing.T) {
	f, ok := Get("mint_export")
	if !ok {
		t.Fatal("mint_export not in catalog")
	}
	if f.TypeColumn != "Transaction Type" || f.CategoryColumn != "Category" {
		t.Errorf("unexpected mint_export columns: %+v", f)
	}
	if _, ok := Get("nope"); ok {
		t.Error("expected miss for unknown name")
	}
}

func TestInferColumns(t *testing.T) {
	headers := []string{"When", "Memo", "Value", "Ref"}
	rows := [][]string{
		{"03/15/2024", "STARBUCKS COFFEE #4821 SEATTLE", "-5.75", "A1"},
		{"03/16/2024", "WHOLE FOODS MARKET GROCERIES", "-82.13", "A2"},
		{"03/17/2024", "DIRECT DEPOSIT EMPLOYER PAYROLL", "2500.00", "A3"},
		{"03/18/2024", "NETFLIX.COM SUBSCRIPTION CHARGE", "-15.49", "A4"},
	}

	s := InferColumns(headers, rows)
	if len(s.Date) != 1 || s.Date[0] != "When" {
		t.Errorf("date candidates = %v, want [When]", s.Date)
	}
	if len(s.Amount) != 1 || s.Amount[0] != "Value" {
		t.Errorf("amount candidates = %v, want [Value]", s.Amount)
	}
	if len(s.Description) != 1 || s.Description[0] != "Memo" {
		t.Errorf("description candidates = %v, want [Memo]", s.Description)
	}
}

func TestSuggest(t *testing.T) {
	headers := []string{"When", "Memo", "Value"}
	rows := [][]string{
		{"03/15/2024", "STARBUCKS COFFEE #4821 SEATTLE", "-5.75"},
		{"03/16/2024", "WHOLE FOODS MARKET GROCERIES", "-82.13"},
	}

	mapping, ok := Suggest(headers, rows)
	if !ok {
		t.Fatal("expected a suggested mapping")
	}
	if mapping.Date != "When" || mapping.Amount != "Value" || mapping.Description != "Memo" {
		t.Errorf("unexpected mapping: %+v", mapping)
	}

	// No amount-like column means no mapping.
	if _, ok := Suggest([]string{"When", "Memo"}, [][]string{{"03/15/2024", "STARBUCKS COFFEE #4821 SEATTLE"}}); ok {
		t.Error("expected no mapping without an amount column")
	}
}

func TestSample(t *testing.T) {
	data := []byte("Date,Amount,Description\n03/15/2024,1.00,A\n03/16/2024,2.00,B\n03/17/2024,3.00,C\n")

	headers, rows, err := Sample(data, 2)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if len(headers) != 3 || headers[0] != "Date" {
		t.Errorf("unexpected headers: %v", headers)
	}
	if len(rows) != 2 {
		t.Errorf("expected 2 sample rows, got %d", len(rows))
	}
}
