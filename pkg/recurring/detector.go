// Package recurring detects subscriptions and recurring bills from
// transaction history: transactions are grouped by normalized merchant,
// tested for amount and interval consistency, and scored.
package recurring

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/jqrs/finance-app/pkg/merchant"
	"github.com/jqrs/finance-app/pkg/models"
)

// DefaultMinOccurrences is the default minimum group size for a merchant to
// be considered recurring.
const DefaultMinOccurrences = 3

// Policy constants. These are fixed heuristics, not configuration.
const (
	maxAmountCV        = 0.15 // amount coefficient of variation for "consistent"
	frequencyTolerance = 0.25 // accepted distance from a standard cycle, relative
	confidenceFloor    = 0.5  // candidates at or below are discarded
	occurrenceCeiling  = 6    // occurrence score saturates here
)

// cycle is a standard billing interval expressed in days.
type cycle struct {
	name string
	days int
}

// frequencies are the standard billing cycles, in matching priority order.
var frequencies = []cycle{
	{"weekly", 7},
	{"biweekly", 14},
	{"monthly", 30},
	{"quarterly", 91},
	{"yearly", 365},
}

// Detect finds recurring expenses in the given transaction history, sorted
// by descending confidence. Groups smaller than minOccurrences are ignored.
func Detect(txns []models.Transaction, minOccurrences int) []models.RecurringExpense {
	if len(txns) == 0 {
		return nil
	}
	if minOccurrences <= 0 {
		minOccurrences = DefaultMinOccurrences
	}

	groups := make(map[string][]models.Transaction)
	for _, t := range txns {
		key := merchant.Key(t.Description)
		groups[key] = append(groups[key], t)
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var found []models.RecurringExpense
	for _, key := range keys {
		group := groups[key]
		if len(group) < minOccurrences {
			continue
		}
		if candidate, ok := analyze(key, group); ok {
			found = append(found, candidate)
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Confidence > found[j].Confidence
	})
	return found
}

func analyze(key string, group []models.Transaction) (models.RecurringExpense, bool) {
	if len(key) < 2 {
		return models.RecurringExpense{}, false
	}

	amounts := make([]float64, len(group))
	dates := make([]time.Time, len(group))
	for i, t := range group {
		amounts[i] = t.Amount
		dates[i] = t.Date
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	meanAmount := stat.Mean(amounts, nil)
	if meanAmount == 0 {
		return models.RecurringExpense{}, false
	}
	amountCV := popStdDev(amounts, meanAmount) / math.Abs(meanAmount)

	gaps := dayGaps(dates)
	if len(gaps) < 2 {
		return models.RecurringExpense{}, false
	}

	freq, consistency, ok := detectFrequency(gaps)
	if !ok {
		return models.RecurringExpense{}, false
	}

	confidence := score(amountCV, consistency, len(group))
	if confidence <= confidenceFloor {
		return models.RecurringExpense{}, false
	}

	first, last := dates[0], dates[len(dates)-1]
	return models.RecurringExpense{
		Merchant:         merchant.Title(key),
		AverageAmount:    round2(meanAmount),
		FrequencyDays:    freq.days,
		FrequencyType:    freq.name,
		Confidence:       round2(confidence),
		NextExpectedDate: last.AddDate(0, 0, freq.days).Format("2006-01-02"),
		Occurrences:      len(group),
		FirstSeen:        first.Format("2006-01-02"),
		LastSeen:         last.Format("2006-01-02"),
	}, true
}

func dayGaps(dates []time.Time) []float64 {
	var gaps []float64
	for i := 1; i < len(dates); i++ {
		gaps = append(gaps, dates[i].Sub(dates[i-1]).Hours()/24)
	}
	return gaps
}

// detectFrequency matches the mean gap against the standard cycles and
// reports how regular the intervals are.
func detectFrequency(gaps []float64) (cycle, float64, bool) {
	meanGap := stat.Mean(gaps, nil)
	stdGap := popStdDev(gaps, meanGap)

	best := -1
	bestDiff := math.Inf(1)
	for i, f := range frequencies {
		diff := math.Abs(meanGap - float64(f.days))
		if diff < bestDiff && diff < float64(f.days)*frequencyTolerance {
			bestDiff = diff
			best = i
		}
	}
	if best < 0 {
		return cycle{}, 0, false
	}

	consistency := 0.0
	if meanGap > 0 {
		consistency = clamp01(1 - stdGap/meanGap)
	}
	return frequencies[best], consistency, true
}

// score combines amount consistency (up to 0.3), interval consistency (up to
// 0.4) and occurrence count (up to 0.3) into a single confidence value.
func score(amountCV, intervalConsistency float64, occurrences int) float64 {
	s := 0.0
	if amountCV < maxAmountCV {
		s += 0.3
	} else {
		s += math.Max(0, 0.3-amountCV*0.5)
	}
	s += 0.4 * intervalConsistency
	s += 0.3 * math.Min(float64(occurrences)/occurrenceCeiling, 1)
	return math.Min(s, 1)
}

// popStdDev is the population standard deviation; gonum's StdDev applies
// the sample (Bessel) correction, which the detector does not want.
func popStdDev(xs []float64, mean float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
