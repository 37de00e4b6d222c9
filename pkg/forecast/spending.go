// Package forecast derives forward-looking financial signals from
// transaction history: per-category spending forecasts and account cashflow
// projections. Models live only for one train/predict pair; every run
// retrains from the full history.
package forecast

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/jqrs/finance-app/pkg/models"
)

// Model tiers, selected by available data volume per category.
const (
	TierAverage       = "average"
	TierRidgeSimple   = "ridge_simple"
	TierRidgeSeasonal = "ridge_seasonal"
)

// Fitting and interval policy constants.
const (
	ridgeAlpha        = 1.0  // L2 regularization strength
	intervalZ         = 1.96 // normal two-sided 95% interval
	seasonalMinMonths = 12   // buckets required to attempt the lag-feature tier
	seasonalMinUsable = 6    // usable rows required after dropping undefined lags
)

// categoryModel is one trained tier. Prediction dispatch is exhaustive over
// the three concrete types.
type categoryModel interface {
	tier() string
	// predict returns the point estimate and spread for a calendar month.
	predict(month int) (point, spread float64)
}

type averageModel struct {
	value float64
	std   float64
}

func (m averageModel) tier() string { return TierAverage }

func (m averageModel) predict(int) (float64, float64) {
	std := m.std
	if std <= 0 {
		std = m.value * 0.2
	}
	return m.value, std
}

type ridgeSimpleModel struct {
	model  *ridge
	scaler *scaler
	std    float64
	mean   float64
}

func (m ridgeSimpleModel) tier() string { return TierRidgeSimple }

func (m ridgeSimpleModel) predict(month int) (float64, float64) {
	sin, cos := seasonalFeatures(month)
	return m.model.predict(m.scaler.transform([]float64{sin, cos})), m.std
}

type ridgeSeasonalModel struct {
	model      *ridge
	scaler     *scaler
	lastValues []float64 // most recent monthly totals, feed future lag features
	std        float64
}

func (m ridgeSeasonalModel) tier() string { return TierRidgeSeasonal }

func (m ridgeSeasonalModel) predict(month int) (float64, float64) {
	sin, cos := seasonalFeatures(month)
	lag1 := m.lastValues[len(m.lastValues)-1]
	rolling := stat.Mean(m.lastValues, nil)
	x := m.scaler.transform([]float64{sin, cos, lag1, rolling})
	return m.model.predict(x), m.std
}

// SpendingForecaster predicts future monthly expenses per category.
type SpendingForecaster struct {
	models map[string]categoryModel
	now    func() time.Time
}

func NewSpendingForecaster() *SpendingForecaster {
	return &SpendingForecaster{
		models: make(map[string]categoryModel),
		now:    time.Now,
	}
}

// SpendingTraining summarizes a training run.
type SpendingTraining struct {
	Trained    int      `json:"trained"`
	Categories []string `json:"categories"`
}

// Train fits one model per category from the expense transactions in the
// history. Income rows and uncategorized rows are ignored.
func (f *SpendingForecaster) Train(txns []models.Transaction) SpendingTraining {
	buckets := make(map[string]map[int]float64)
	for _, t := range txns {
		if t.Amount >= 0 || t.CategoryID == "" {
			continue
		}
		key := monthKey(t.Date)
		if buckets[t.CategoryID] == nil {
			buckets[t.CategoryID] = make(map[int]float64)
		}
		buckets[t.CategoryID][key] += -t.Amount
	}

	categories := make([]string, 0, len(buckets))
	for cat := range buckets {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	for _, cat := range categories {
		monthly := buckets[cat]
		keys := make([]int, 0, len(monthly))
		for k := range monthly {
			keys = append(keys, k)
		}
		sort.Ints(keys)

		months := make([]int, len(keys))
		totals := make([]float64, len(keys))
		for i, k := range keys {
			months[i] = k%12 + 1
			totals[i] = monthly[k]
		}
		f.models[cat] = trainCategory(months, totals)
	}

	return SpendingTraining{Trained: len(categories), Categories: categories}
}

// trainCategory walks the tier ladder for one category's monthly totals.
func trainCategory(months []int, totals []float64) categoryModel {
	n := len(totals)
	if n < 2 {
		return averageModel{value: stat.Mean(totals, nil), std: 0}
	}

	if n >= seasonalMinMonths {
		// Lag-1 and lag-2 are undefined for the first two rows; rolling
		// means use whatever window is available.
		usable := n - 2
		if usable >= seasonalMinUsable {
			X := make([][]float64, 0, usable)
			y := make([]float64, 0, usable)
			for i := 2; i < n; i++ {
				sin, cos := seasonalFeatures(months[i])
				X = append(X, []float64{sin, cos, totals[i-1], rollingMean3(totals, i)})
				y = append(y, totals[i])
			}
			sc := fitScaler(X)
			r := &ridge{alpha: ridgeAlpha}
			if err := r.fit(sc.transformAll(X), y); err == nil {
				last := make([]float64, 3)
				copy(last, totals[n-3:])
				return ridgeSeasonalModel{
					model:      r,
					scaler:     sc,
					lastValues: last,
					std:        popStdDev(y, stat.Mean(y, nil)),
				}
			}
		}
	}

	X := make([][]float64, n)
	for i := range totals {
		sin, cos := seasonalFeatures(months[i])
		X[i] = []float64{sin, cos}
	}
	sc := fitScaler(X)
	mean := stat.Mean(totals, nil)
	r := &ridge{alpha: ridgeAlpha}
	if err := r.fit(sc.transformAll(X), totals); err != nil {
		// Degenerate design matrix: fall back to the flat average.
		return averageModel{value: mean, std: popStdDev(totals, mean)}
	}
	return ridgeSimpleModel{
		model:  r,
		scaler: sc,
		std:    popStdDev(totals, mean),
		mean:   mean,
	}
}

// Predict walks forward month by month from the current date. Points and
// lower bounds are clamped to non-negative.
func (f *SpendingForecaster) Predict(categoryID string, monthsAhead int) []models.SpendingForecast {
	m, ok := f.models[categoryID]
	if !ok {
		return nil
	}

	now := f.now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	out := make([]models.SpendingForecast, 0, monthsAhead)
	for i := 1; i <= monthsAhead; i++ {
		future := start.AddDate(0, i, 0)
		point, spread := m.predict(int(future.Month()))

		pred := math.Max(0, point)
		lower := math.Max(0, pred-intervalZ*spread)
		upper := pred + intervalZ*spread

		out = append(out, models.SpendingForecast{
			Month:           future.Format("2006-01"),
			PredictedAmount: round2(pred),
			LowerBound:      round2(lower),
			UpperBound:      round2(upper),
		})
	}
	return out
}

// PredictAll forecasts every trained category.
func (f *SpendingForecaster) PredictAll(monthsAhead int) map[string][]models.SpendingForecast {
	out := make(map[string][]models.SpendingForecast, len(f.models))
	for cat := range f.models {
		out[cat] = f.Predict(cat, monthsAhead)
	}
	return out
}

// Tier reports which model tier a category was trained with.
func (f *SpendingForecaster) Tier(categoryID string) (string, bool) {
	m, ok := f.models[categoryID]
	if !ok {
		return "", false
	}
	return m.tier(), true
}

// monthKey flattens a date into a comparable (year, month) index.
func monthKey(d time.Time) int {
	return d.Year()*12 + int(d.Month()) - 1
}

// rollingMean3 averages the up-to-three totals ending at index i.
func rollingMean3(totals []float64, i int) float64 {
	lo := i - 2
	if lo < 0 {
		lo = 0
	}
	return stat.Mean(totals[lo:i+1], nil)
}
