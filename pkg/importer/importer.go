// Package importer orchestrates the ingestion pipeline: normalize raw file
// bytes into canonical transactions, fingerprint each one, and insert the
// ones the store has not seen before.
package importer

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/jqrs/finance-app/pkg/dedup"
	"github.com/jqrs/finance-app/pkg/formats"
	"github.com/jqrs/finance-app/pkg/normalizer"
	"github.com/jqrs/finance-app/pkg/store"
)

var ErrUnknownLayout = errors.New("could not detect file layout")

// Result reports the outcome of one import run.
type Result struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"` // already present (fingerprint collision)
	Errors   int `json:"errors"`  // rejected by the store
	Dropped  int `json:"dropped"` // unparseable rows dropped by the normalizer
}

type Importer struct {
	store      *store.Store
	normalizer *normalizer.Normalizer
	logger     *log.Logger
}

func New(st *store.Store, logger *log.Logger) *Importer {
	return &Importer{
		store:      st,
		normalizer: normalizer.New(logger),
		logger:     logger,
	}
}

// Import parses the document with an explicit column mapping and persists
// the new transactions into the account. Duplicate fingerprints are counted
// as skipped, never treated as failures.
func (i *Importer) Import(data []byte, accountID string, opts normalizer.Options) (*Result, error) {
	if _, ok := i.store.GetAccount(accountID); !ok {
		return nil, store.ErrAccountNotFound
	}

	txns, report, err := i.normalizer.Normalize(data, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize document: %w", err)
	}

	result := &Result{Dropped: report.Dropped}
	netAmount := 0.0

	for _, txn := range txns {
		txn.AccountID = accountID

		// Source files may carry category labels; keep them only when
		// they resolve to a known category.
		if txn.CategoryID != "" {
			if cat, ok := i.store.FindCategoryByName(txn.CategoryID); ok {
				txn.CategoryID = cat.ID
			} else {
				txn.CategoryID = ""
			}
		}

		hash := dedup.Fingerprint(txn.DateString(), txn.Amount, txn.Description, accountID)

		_, err := i.store.InsertTransaction(txn, hash)
		switch {
		case errors.Is(err, store.ErrDuplicate):
			result.Skipped++
		case err != nil:
			i.logger.Warn("failed to insert transaction", "date", txn.DateString(), "err", err)
			result.Errors++
		default:
			result.Imported++
			netAmount += txn.Amount
		}
	}

	if result.Imported > 0 {
		if err := i.store.AdjustBalance(accountID, netAmount); err != nil {
			return nil, err
		}
	}

	i.logger.Info("import complete",
		"account", accountID,
		"imported", result.Imported,
		"skipped", result.Skipped,
		"errors", result.Errors,
		"dropped", result.Dropped)
	return result, nil
}

// ImportAuto detects the document layout first, using the known-format
// catalog and falling back to column inference, then imports with the
// resulting options.
func (i *Importer) ImportAuto(data []byte, accountID string) (*Result, *formats.Format, error) {
	opts, detected, err := DetectOptions(data)
	if err != nil {
		return nil, nil, err
	}

	result, err := i.Import(data, accountID, opts)
	return result, detected, err
}

// OptionsFromFormat translates a catalog format into normalization options.
func OptionsFromFormat(f *formats.Format) normalizer.Options {
	return normalizer.Options{
		Mapping:        f.Mapping,
		DateFormat:     f.DateFormat,
		AmountHandling: normalizer.Mode(f.AmountHandling),
		DebitColumn:    f.DebitColumn,
		CreditColumn:   f.CreditColumn,
		TypeColumn:     f.TypeColumn,
		CategoryColumn: f.CategoryColumn,
	}
}

// DetectOptions builds normalization options from the document itself. The
// returned format is nil when the layout was inferred rather than matched.
func DetectOptions(data []byte) (normalizer.Options, *formats.Format, error) {
	headers, rows, err := formats.Sample(data, 10)
	if err != nil {
		return normalizer.Options{}, nil, fmt.Errorf("failed to sample document: %w", err)
	}

	if f, ok := formats.Detect(headers); ok {
		return OptionsFromFormat(f), f, nil
	}

	if mapping, ok := formats.Suggest(headers, rows); ok {
		return normalizer.Options{
			Mapping:        mapping,
			DateFormat:     normalizer.DateFormatAuto,
			AmountHandling: normalizer.Signed,
		}, nil, nil
	}

	return normalizer.Options{}, nil, ErrUnknownLayout
}
