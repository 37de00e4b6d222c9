package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"
	"github.com/subosito/gotenv"

	"github.com/jqrs/finance-app/pkg/config"
	"github.com/jqrs/finance-app/pkg/forecast"
	"github.com/jqrs/finance-app/pkg/formats"
	"github.com/jqrs/finance-app/pkg/importer"
	"github.com/jqrs/finance-app/pkg/models"
	"github.com/jqrs/finance-app/pkg/normalizer"
	"github.com/jqrs/finance-app/pkg/recurring"
	"github.com/jqrs/finance-app/pkg/server"
	"github.com/jqrs/finance-app/pkg/store"
)

var (
	cliFilters  filters
	cfgFile     string
	debugDump   bool
	categoryCol string
)

func newLogger() *log.Logger {
	level := log.InfoLevel
	if debugDump {
		level = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		Prefix:          "finance-app",
		Level:           level,
	})
}

var rootCmd = &cobra.Command{
	Use:   "finance-app",
	Short: "Bank export ingestion and financial forecasting",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var detectCmd = &cobra.Command{
	Use:   "detect <file>",
	Short: "Detect the layout of a bank export file",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		headers, rows, err := formats.Sample(data, 10)
		if err != nil {
			return fmt.Errorf("failed to sample %s: %w", args[0], err)
		}

		if f, ok := formats.Detect(headers); ok {
			fmt.Printf("detected format: %s (%s)\n", f.Name, f.Institution)
			fmt.Printf("  date column:   %s\n", f.Mapping.Date)
			fmt.Printf("  amount mode:   %s\n", f.AmountHandling)
			return nil
		}

		fmt.Println("no known format matched")
		s := formats.InferColumns(headers, rows)
		fmt.Printf("  date candidates:        %v\n", s.Date)
		fmt.Printf("  amount candidates:      %v\n", s.Amount)
		fmt.Printf("  description candidates: %v\n", s.Description)
		return nil
	},
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize [flags] <input_path>",
	Short: "Normalize bank exports to canonical transaction CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		logger := newLogger()
		txns, err := loadTransactions(logger, args[0])
		if err != nil {
			return err
		}

		if debugDump {
			pp.Println(txns)
		}

		return writeCanonicalCSV(os.Stdout, txns)
	},
}

// writeCanonicalCSV emits transactions as canonical CSV, quoting fields as
// needed so descriptions with commas or quotes stay well-formed.
func writeCanonicalCSV(out io.Writer, txns []models.Transaction) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"date", "amount", "description", "merchant"}); err != nil {
		return err
	}
	for _, t := range txns {
		record := []string{t.DateString(), fmt.Sprintf("%.2f", t.Amount), t.Description, t.Merchant}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

var importCmd = &cobra.Command{
	Use:   "import [flags] <input_path>",
	Short: "Import bank exports into an account, deduplicating as it goes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		matches, err := filepath.Glob(args[0])
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return fmt.Errorf("no files found matching pattern %s", args[0])
		}

		balance, _ := cmd.Flags().GetFloat64("balance")
		accountName, _ := cmd.Flags().GetString("account")

		st := store.New()
		account := st.CreateAccount(accountName, "checking", "", balance)
		imp := importer.New(st, logger)

		for _, match := range matches {
			data, err := os.ReadFile(match)
			if err != nil {
				logger.Warn("failed to read file", "file", match, "error", err)
				continue
			}

			opts, err := importOptions(cmd, data)
			if err != nil {
				logger.Warn("failed to resolve layout", "file", match, "error", err)
				continue
			}

			result, err := imp.Import(data, account.ID, opts)
			if err != nil {
				return fmt.Errorf("failed to import %s: %w", match, err)
			}
			fmt.Printf("%s: imported %d, skipped %d, dropped %d, errors %d\n",
				match, result.Imported, result.Skipped, result.Dropped, result.Errors)
		}

		got, _ := st.GetAccount(account.ID)
		fmt.Printf("balance: %.2f (net change %+.2f)\n", got.CurrentBalance, got.CurrentBalance-balance)
		return nil
	},
}

// importOptions resolves normalization options for the import command: an
// explicit --format wins, then an explicit column mapping, then auto-detection.
func importOptions(cmd *cobra.Command, data []byte) (normalizer.Options, error) {
	formatName, _ := cmd.Flags().GetString("format")
	dateCol, _ := cmd.Flags().GetString("date-col")
	amountCol, _ := cmd.Flags().GetString("amount-col")
	descCol, _ := cmd.Flags().GetString("desc-col")
	skipRows, _ := cmd.Flags().GetInt("skip-rows")

	var opts normalizer.Options
	switch {
	case formatName != "":
		f, ok := formats.Get(formatName)
		if !ok {
			return normalizer.Options{}, fmt.Errorf("unknown format %q", formatName)
		}
		opts = importer.OptionsFromFormat(f)
	case dateCol != "" && amountCol != "" && descCol != "":
		opts = normalizer.Options{
			Mapping:        models.ColumnMapping{Date: dateCol, Amount: amountCol, Description: descCol},
			DateFormat:     normalizer.DateFormatAuto,
			AmountHandling: normalizer.Signed,
		}
	default:
		detected, _, err := importer.DetectOptions(data)
		if err != nil {
			return normalizer.Options{}, err
		}
		opts = detected
	}

	opts.SkipRows = skipRows
	if categoryCol != "" {
		opts.CategoryColumn = categoryCol
	}
	return opts, nil
}

var recurringCmd = &cobra.Command{
	Use:   "recurring [flags] <input_path>",
	Short: "Detect recurring expenses in bank exports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		txns, err := loadTransactions(logger, args[0])
		if err != nil {
			return err
		}

		minOccurrences, _ := cmd.Flags().GetInt("min-occurrences")
		found := recurring.Detect(txns, minOccurrences)
		if len(found) == 0 {
			fmt.Println("no recurring expenses detected")
			return nil
		}

		for _, rec := range found {
			fmt.Printf("%-30s %10.2f  every %3d days (%s)  confidence %.2f  next %s\n",
				rec.Merchant, rec.AverageAmount, rec.FrequencyDays, rec.FrequencyType, rec.Confidence, rec.NextExpectedDate)
		}
		return nil
	},
}

var forecastCmd = &cobra.Command{
	Use:   "forecast [flags] <input_path>",
	Short: "Forecast monthly spending per category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		txns, err := loadTransactions(logger, args[0])
		if err != nil {
			return err
		}

		months, _ := cmd.Flags().GetInt("months")
		forecaster := forecast.NewSpendingForecaster()
		training := forecaster.Train(txns)
		if training.Trained == 0 {
			fmt.Println("no categorized expense history to forecast (see --category-col)")
			return nil
		}

		for _, cat := range training.Categories {
			tier, _ := forecaster.Tier(cat)
			fmt.Printf("%s (model: %s)\n", cat, tier)
			for _, p := range forecaster.Predict(cat, months) {
				fmt.Printf("  %s  %10.2f  [%.2f, %.2f]\n", p.Month, p.PredictedAmount, p.LowerBound, p.UpperBound)
			}
		}
		return nil
	},
}

var cashflowCmd = &cobra.Command{
	Use:   "cashflow [flags] <input_path>",
	Short: "Project daily account balances",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		txns, err := loadTransactions(logger, args[0])
		if err != nil {
			return err
		}

		balance, _ := cmd.Flags().GetFloat64("balance")
		days, _ := cmd.Flags().GetInt("days")

		recurringExpenses := recurring.Detect(txns, recurring.DefaultMinOccurrences)
		forecaster := forecast.NewCashflowForecaster()
		training := forecaster.Train(txns, recurringExpenses)
		if !training.Trained {
			fmt.Println("no transaction history to project from")
			return nil
		}

		fmt.Printf("trained on %d days, avg daily flow %.2f\n", training.Days, training.AvgDailyFlow)
		for _, p := range forecaster.Predict(balance, days) {
			fmt.Printf("%s  balance %12.2f  flow %10.2f  [%.2f, %.2f]\n",
				p.Date, p.PredictedBalance, p.DailyFlow, p.LowerBound, p.UpperBound)
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger := newLogger()

		cfg, err := config.Build(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}

		srv := server.New(cfg, store.New(), logger)
		logger.Info("starting server", "addr", cfg.ListenAddr)
		return srv.Start(cfg.ListenAddr)
	},
}

// loadTransactions normalizes every file matching the input pattern with
// auto-detected layout options and applies the CLI filters.
func loadTransactions(logger *log.Logger, inputPath string) ([]models.Transaction, error) {
	matches, err := filepath.Glob(inputPath)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no files found matching pattern %s", inputPath)
	}

	n := normalizer.New(logger)

	var all []models.Transaction
	for _, match := range matches {
		data, err := os.ReadFile(match)
		if err != nil {
			logger.Warn("failed to read file", "file", match, "error", err)
			continue
		}

		opts, detected, err := importer.DetectOptions(data)
		if err != nil {
			logger.Warn("failed to detect layout", "file", match, "error", err)
			continue
		}
		if detected != nil {
			logger.Info("detected format", "file", match, "format", detected.Name)
		}
		if categoryCol != "" {
			opts.CategoryColumn = categoryCol
		}

		txns, report, err := n.Normalize(data, opts)
		if err != nil {
			logger.Warn("failed to normalize file", "file", match, "error", err)
			continue
		}
		logger.Info("normalized file", "file", match, "parsed", report.Parsed, "dropped", report.Dropped)
		all = append(all, txns...)
	}

	all = cliFilters.apply(all)
	sort.Slice(all, func(i, j int) bool { return all[i].Date.Before(all[j].Date) })
	return all, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugDump, "debug", false, "Debug logging and parsed transaction dump")

	rootCmd.PersistentFlags().StringVar(&cliFilters.startDate, "start", "", "Start date (YYYY-MM-DD)")
	rootCmd.PersistentFlags().StringVar(&cliFilters.endDate, "end", "", "End date (YYYY-MM-DD)")
	rootCmd.PersistentFlags().Float64Var(&cliFilters.minAmount, "min", 0, "Minimum amount")
	rootCmd.PersistentFlags().Float64Var(&cliFilters.maxAmount, "max", 0, "Maximum amount")
	rootCmd.PersistentFlags().StringVar(&cliFilters.merchant, "merchant", "", "Filter by merchant (case insensitive)")

	rootCmd.PersistentFlags().StringVar(&categoryCol, "category-col", "", "Column holding category labels")

	importCmd.Flags().String("account", "imported", "Account name to import into")
	importCmd.Flags().Float64("balance", 0, "Starting account balance")
	importCmd.Flags().String("format", "", "Force a known format instead of detecting")
	importCmd.Flags().String("date-col", "", "Explicit date column")
	importCmd.Flags().String("amount-col", "", "Explicit amount column")
	importCmd.Flags().String("desc-col", "", "Explicit description column")
	importCmd.Flags().Int("skip-rows", 0, "Leading rows to skip before the header")

	recurringCmd.Flags().Int("min-occurrences", recurring.DefaultMinOccurrences, "Minimum occurrences to consider recurring")
	forecastCmd.Flags().Int("months", 3, "Months to forecast")
	cashflowCmd.Flags().Float64("balance", 0, "Current balance to project from")
	cashflowCmd.Flags().Int("days", 30, "Days to project")

	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(recurringCmd)
	rootCmd.AddCommand(forecastCmd)
	rootCmd.AddCommand(cashflowCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	_ = gotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
