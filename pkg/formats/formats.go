// Package formats holds the catalog of known bank export layouts and the
// heuristics for guessing column roles when a file matches none of them.
package formats

import (
	"bytes"
	"encoding/csv"
	_ "embed"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jqrs/finance-app/pkg/models"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Format describes one known exporter layout: the columns that identify it,
// how to map them onto canonical fields, and suggested account metadata.
type Format struct {
	Name              string               `yaml:"name" json:"name"`
	IdentifierColumns []string             `yaml:"identifier_columns" json:"identifier_columns"`
	Mapping           models.ColumnMapping `yaml:"mapping" json:"mapping"`
	DateFormat        string               `yaml:"date_format" json:"date_format"`
	AmountHandling    string               `yaml:"amount_handling" json:"amount_handling"`
	DebitColumn       string               `yaml:"debit_column,omitempty" json:"debit_column,omitempty"`
	CreditColumn      string               `yaml:"credit_column,omitempty" json:"credit_column,omitempty"`
	TypeColumn        string               `yaml:"type_column,omitempty" json:"type_column,omitempty"`
	CategoryColumn    string               `yaml:"category_column,omitempty" json:"category_column,omitempty"`
	AccountType       string               `yaml:"account_type" json:"account_type"`
	Institution       string               `yaml:"institution" json:"institution"`
	DefaultName       string               `yaml:"default_name" json:"default_name"`
}

// catalog preserves document order; detection is first-match-wins.
var catalog []Format

func init() {
	var doc struct {
		Formats []Format `yaml:"formats"`
	}
	if err := yaml.Unmarshal(catalogYAML, &doc); err != nil {
		panic(fmt.Sprintf("formats: invalid embedded catalog: %v", err))
	}
	catalog = doc.Formats
}

// Detect returns the first known format whose identifier columns are all
// present in the given header row.
func Detect(headers []string) (*Format, bool) {
	observed := make(map[string]bool, len(headers))
	for _, h := range headers {
		observed[h] = true
	}

	for i := range catalog {
		if containsAll(observed, catalog[i].IdentifierColumns) {
			f := catalog[i]
			return &f, true
		}
	}
	return nil, false
}

// Get looks a format up by name.
func Get(name string) (*Format, bool) {
	for i := range catalog {
		if catalog[i].Name == name {
			f := catalog[i]
			return &f, true
		}
	}
	return nil, false
}

// List returns the catalog in detection order, for external listing.
func List() []Format {
	out := make([]Format, len(catalog))
	copy(out, catalog)
	return out
}

func containsAll(observed map[string]bool, required []string) bool {
	for _, col := range required {
		if !observed[col] {
			return false
		}
	}
	return true
}

// Sample reads the header row plus up to maxRows data rows from a delimited
// text document. It is the shared entry point for format detection and
// column inference.
func Sample(data []byte, maxRows int) (headers []string, rows [][]string, err error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	headers, err = r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header row: %w", err)
	}

	for len(rows) < maxRows {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read sample row: %w", err)
		}
		rows = append(rows, record)
	}
	return headers, rows, nil
}
