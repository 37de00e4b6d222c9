package forecast

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/jqrs/finance-app/pkg/models"
)

// Cashflow policy constants.
const (
	dowWeight       = 0.5 // partial weight of the day-of-week adjustment
	domWeight       = 0.3 // partial weight of the day-of-month adjustment
	graceWindowDays = 3   // recurring charges may land a few days late
	uncertaintyDamp = 0.5
)

// CashflowForecaster projects daily account balances from learned seasonal
// flow patterns plus known recurring expenses.
type CashflowForecaster struct {
	dailyPattern   map[time.Weekday]float64
	monthlyPattern map[int]float64
	avgDailyFlow   float64
	stdDailyFlow   float64
	recurring      []models.RecurringExpense
	trained        bool
	now            func() time.Time
}

func NewCashflowForecaster() *CashflowForecaster {
	return &CashflowForecaster{
		dailyPattern:   make(map[time.Weekday]float64),
		monthlyPattern: make(map[int]float64),
		now:            time.Now,
	}
}

// CashflowTraining summarizes a training run.
type CashflowTraining struct {
	Trained      bool    `json:"trained"`
	Days         int     `json:"days"`
	AvgDailyFlow float64 `json:"avg_daily_flow"`
}

// Train aggregates signed amounts to daily net flow, filling every calendar
// gap between the first and last observed date with zero flow, then learns
// day-of-week and day-of-month means.
func (f *CashflowForecaster) Train(txns []models.Transaction, recurringExpenses []models.RecurringExpense) CashflowTraining {
	if len(txns) == 0 {
		return CashflowTraining{}
	}
	f.recurring = recurringExpenses

	byDay := make(map[time.Time]float64)
	var first, last time.Time
	for _, t := range txns {
		day := truncateDay(t.Date)
		byDay[day] += t.Amount
		if first.IsZero() || day.Before(first) {
			first = day
		}
		if last.IsZero() || day.After(last) {
			last = day
		}
	}

	var (
		flows    []float64
		dowSums  = make(map[time.Weekday]float64)
		dowDays  = make(map[time.Weekday]int)
		domSums  = make(map[int]float64)
		domDays  = make(map[int]int)
	)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		flow := byDay[day] // zero for gap days
		flows = append(flows, flow)
		dowSums[day.Weekday()] += flow
		dowDays[day.Weekday()]++
		domSums[day.Day()] += flow
		domDays[day.Day()]++
	}

	for dow, sum := range dowSums {
		f.dailyPattern[dow] = sum / float64(dowDays[dow])
	}
	for dom, sum := range domSums {
		f.monthlyPattern[dom] = sum / float64(domDays[dom])
	}

	f.avgDailyFlow = stat.Mean(flows, nil)
	if len(flows) > 1 {
		f.stdDailyFlow = stat.StdDev(flows, nil)
	}
	f.trained = true

	return CashflowTraining{
		Trained:      true,
		Days:         len(flows),
		AvgDailyFlow: round2(f.avgDailyFlow),
	}
}

// Predict projects the running balance for each of the next daysAhead days.
// Uncertainty grows with the square root of the horizon, reflecting
// compounding daily variance.
func (f *CashflowForecaster) Predict(currentBalance float64, daysAhead int) []models.BalanceForecast {
	if !f.trained {
		return nil
	}

	dowAvg := meanWeekday(f.dailyPattern)
	domAvg := meanMonthday(f.monthlyPattern)

	balance := currentBalance
	today := truncateDay(f.now())

	out := make([]models.BalanceForecast, 0, daysAhead)
	for i := 1; i <= daysAhead; i++ {
		date := today.AddDate(0, 0, i)

		flow := f.avgDailyFlow
		flow += (f.dailyPattern[date.Weekday()] - dowAvg) * dowWeight
		flow += (f.monthlyPattern[date.Day()] - domAvg) * domWeight
		flow += f.recurringFlow(date)

		balance += flow
		uncertainty := f.stdDailyFlow * math.Sqrt(float64(i)) * uncertaintyDamp

		out = append(out, models.BalanceForecast{
			Date:             date.Format("2006-01-02"),
			PredictedBalance: round2(balance),
			DailyFlow:        round2(flow),
			LowerBound:       round2(balance - intervalZ*uncertainty),
			UpperBound:       round2(balance + intervalZ*uncertainty),
		})
	}
	return out
}

// recurringFlow sums the recurring expenses due on a date. A charge is due
// when the date is on or past the next expected occurrence and lands within
// the grace window of the billing cycle.
func (f *CashflowForecaster) recurringFlow(date time.Time) float64 {
	total := 0.0
	for _, rec := range f.recurring {
		next, err := time.Parse("2006-01-02", rec.NextExpectedDate)
		if err != nil || rec.FrequencyDays <= 0 {
			continue
		}
		daysDiff := int(date.Sub(next).Hours() / 24)
		if daysDiff >= 0 && daysDiff%rec.FrequencyDays < graceWindowDays {
			total += rec.AverageAmount
		}
	}
	return total
}

func meanWeekday(pattern map[time.Weekday]float64) float64 {
	if len(pattern) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range pattern {
		sum += v
	}
	return sum / float64(len(pattern))
}

func meanMonthday(pattern map[int]float64) float64 {
	if len(pattern) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range pattern {
		sum += v
	}
	return sum / float64(len(pattern))
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
