package models

import "time"

// Transaction is a canonical transaction record, independent of the source
// file layout. Amounts are signed: negative values are outflows.
type Transaction struct {
	Date                time.Time
	Amount              float64
	Description         string
	OriginalDescription string
	Merchant            string
	AccountID           string
	CategoryID          string
}

// DateString returns the date in canonical YYYY-MM-DD form.
func (t Transaction) DateString() string {
	return t.Date.Format("2006-01-02")
}

// ColumnMapping names the source columns that hold each canonical field.
// Date, Amount and Description are required; OriginalDescription is optional.
type ColumnMapping struct {
	Date                string `json:"date" yaml:"date"`
	Amount              string `json:"amount" yaml:"amount"`
	Description         string `json:"description" yaml:"description"`
	OriginalDescription string `json:"original_description,omitempty" yaml:"original_description,omitempty"`
}
