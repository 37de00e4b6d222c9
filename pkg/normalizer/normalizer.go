// Package normalizer parses raw bank-exported tabular text into canonical
// transactions given an explicit column mapping. It is fault tolerant: a row
// that cannot yield a valid date or amount is dropped, never defaulted.
package normalizer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jqrs/finance-app/pkg/merchant"
	"github.com/jqrs/finance-app/pkg/models"
)

// Mode governs how a signed amount is derived from the source columns.
type Mode string

const (
	// Signed reads the mapped amount column directly, outflows negative.
	Signed Mode = "signed"
	// Separate derives the amount from distinct debit and credit columns.
	Separate Mode = "separate"
	// TypeColumn reads an unsigned magnitude and negates it when the type
	// column marks the row as a debit or expense.
	TypeColumn Mode = "type_column"
)

// DateFormatAuto makes date resolution try a ladder of common layouts.
const DateFormatAuto = "auto"

// autoDateLayouts is the resolution order for DateFormatAuto. US month-first
// layouts come before day-first so ambiguous dates resolve the US way.
var autoDateLayouts = []string{
	"01/02/2006",
	"01/02/06",
	"2006-01-02",
	"01-02-2006",
	"02/01/2006",
	"2006/01/02",
}

var (
	ErrEmptyDocument = errors.New("document has no rows")
	errBadAmount     = errors.New("unparseable amount")
	errMissingColumn = errors.New("mapped column not present")
)

// Options configures a single normalization run.
type Options struct {
	Mapping        models.ColumnMapping
	DateFormat     string // Go time layout, or DateFormatAuto
	AmountHandling Mode
	DebitColumn    string
	CreditColumn   string
	TypeColumn     string
	// CategoryColumn optionally names a column holding an external
	// category assignment.
	CategoryColumn string
	SkipRows       int
}

// Report counts the outcome of a normalization run for caller reporting.
type Report struct {
	Parsed  int `json:"parsed"`
	Dropped int `json:"dropped"`
}

type Normalizer struct {
	logger *log.Logger
}

func New(logger *log.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize parses raw delimited text into canonical transactions. Rows are
// processed independently; any row-level failure drops the row and is
// counted in the report. Only a document-level failure (no header, broken
// CSV) returns an error.
func (n *Normalizer) Normalize(data []byte, opts Options) ([]models.Transaction, Report, error) {
	data = skipLeadingLines(data, opts.SkipRows)

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1 // column count is validated per row

	headers, err := r.Read()
	if err == io.EOF {
		return nil, Report{}, ErrEmptyDocument
	}
	if err != nil {
		return nil, Report{}, fmt.Errorf("failed to read header row: %w", err)
	}

	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[h] = i
	}

	dateFormat := opts.DateFormat
	if dateFormat == "" {
		dateFormat = DateFormatAuto
	}

	var (
		txns   []models.Transaction
		report Report
		line   = opts.SkipRows + 1
	)

	for {
		line++
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, Report{}, fmt.Errorf("failed to read row: %w", err)
		}

		txn, err := n.normalizeRow(record, index, dateFormat, opts)
		if err != nil {
			n.logger.Debug("dropping row", "line", line, "err", err)
			report.Dropped++
			continue
		}
		txns = append(txns, txn)
		report.Parsed++
	}

	n.logger.Info("normalization complete", "parsed", report.Parsed, "dropped", report.Dropped)
	return txns, report, nil
}

func (n *Normalizer) normalizeRow(record []string, index map[string]int, dateFormat string, opts Options) (models.Transaction, error) {
	dateStr, err := cell(record, index, opts.Mapping.Date)
	if err != nil {
		return models.Transaction{}, err
	}
	date, err := resolveDate(dateStr, dateFormat)
	if err != nil {
		return models.Transaction{}, err
	}

	amount, err := resolveAmount(record, index, opts)
	if err != nil {
		return models.Transaction{}, err
	}

	description, err := cell(record, index, opts.Mapping.Description)
	if err != nil {
		return models.Transaction{}, err
	}
	description = strings.TrimSpace(description)

	original := description
	if opts.Mapping.OriginalDescription != "" {
		if v, err := cell(record, index, opts.Mapping.OriginalDescription); err == nil {
			original = strings.TrimSpace(v)
		}
	}

	category := ""
	if opts.CategoryColumn != "" {
		if v, err := cell(record, index, opts.CategoryColumn); err == nil {
			category = strings.TrimSpace(v)
		}
	}

	return models.Transaction{
		Date:                date,
		Amount:              amount,
		Description:         description,
		OriginalDescription: original,
		Merchant:            merchant.Display(description),
		CategoryID:          category,
	}, nil
}

func resolveAmount(record []string, index map[string]int, opts Options) (float64, error) {
	switch opts.AmountHandling {
	case Separate:
		debit := optionalAmount(record, index, opts.DebitColumn)
		credit := optionalAmount(record, index, opts.CreditColumn)
		return credit - debit, nil

	case TypeColumn:
		raw, err := cell(record, index, opts.Mapping.Amount)
		if err != nil {
			return 0, err
		}
		amount, err := ParseAmount(raw)
		if err != nil {
			return 0, err
		}
		txnType := ""
		if v, err := cell(record, index, opts.TypeColumn); err == nil {
			txnType = strings.ToLower(v)
		}
		if strings.Contains(txnType, "debit") || strings.Contains(txnType, "expense") {
			return -math.Abs(amount), nil
		}
		return math.Abs(amount), nil

	default: // Signed
		raw, err := cell(record, index, opts.Mapping.Amount)
		if err != nil {
			return 0, err
		}
		return ParseAmount(raw)
	}
}

// optionalAmount reads a debit/credit column, treating a missing column or
// unparseable value as zero.
func optionalAmount(record []string, index map[string]int, column string) float64 {
	raw, err := cell(record, index, column)
	if err != nil {
		return 0
	}
	v, err := ParseAmount(raw)
	if err != nil {
		return 0
	}
	return v
}

// ParseAmount parses a monetary string. Currency symbols and thousands
// separators are stripped, parenthesised values are negative (accounting
// notation) and empty or dash placeholders are zero.
func ParseAmount(value string) (float64, error) {
	cleaned := strings.ReplaceAll(value, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)

	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		cleaned = "-" + cleaned[1:len(cleaned)-1]
	}

	if cleaned == "" || cleaned == "-" || cleaned == "--" {
		return 0, nil
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errBadAmount, value)
	}
	return v, nil
}

func resolveDate(value string, dateFormat string) (time.Time, error) {
	value = strings.TrimSpace(value)

	layouts := []string{dateFormat}
	if dateFormat == DateFormatAuto {
		layouts = autoDateLayouts
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", value)
}

func cell(record []string, index map[string]int, column string) (string, error) {
	i, ok := index[column]
	if !ok || i >= len(record) {
		return "", fmt.Errorf("%w: %q", errMissingColumn, column)
	}
	return record[i], nil
}

// skipLeadingLines discards preamble lines before the header. They may not
// be valid CSV, so this happens before the reader sees the document.
func skipLeadingLines(data []byte, n int) []byte {
	for ; n > 0; n-- {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			return nil
		}
		data = data[i+1:]
	}
	return data
}
