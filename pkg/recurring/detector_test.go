package recurring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jqrs/finance-app/pkg/models"
)

func txnsAt(description string, amount float64, start time.Time, gapDays, count int) []models.Transaction {
	txns := make([]models.Transaction, count)
	for i := range txns {
		txns[i] = models.Transaction{
			Date:        start.AddDate(0, 0, i*gapDays),
			Amount:      amount,
			Description: description,
		}
	}
	return txns
}

func TestDetectMonthlySubscription(t *testing.T) {
	start := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	txns := txnsAt("NETFLIX.COM", -9.99, start, 30, 4)

	found := Detect(txns, 3)
	require.Len(t, found, 1)

	got := found[0]
	assert.Equal(t, "Netflix", got.Merchant)
	assert.Equal(t, -9.99, got.AverageAmount)
	assert.Equal(t, 30, got.FrequencyDays)
	assert.Equal(t, "monthly", got.FrequencyType)
	assert.Equal(t, 4, got.Occurrences)
	assert.Equal(t, "2024-01-05", got.FirstSeen)
	assert.Equal(t, "2024-04-04", got.LastSeen)
	assert.Equal(t, "2024-05-04", got.NextExpectedDate)

	// Identical amounts, perfectly regular gaps, 4 of 6 occurrences:
	// 0.3 + 0.4 + 0.3*(4/6).
	assert.Equal(t, 0.9, got.Confidence)
}

func TestDetectWeekly(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	txns := txnsAt("CITY GYM MEMBERSHIP", -25.00, start, 7, 6)

	found := Detect(txns, 3)
	require.Len(t, found, 1)
	assert.Equal(t, "weekly", found[0].FrequencyType)
	assert.Equal(t, 7, found[0].FrequencyDays)
}

func TestDetectBelowMinOccurrences(t *testing.T) {
	start := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	txns := txnsAt("NETFLIX.COM", -9.99, start, 30, 2)

	assert.Empty(t, Detect(txns, 3))
}

func TestDetectIrregularIntervals(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	txns := []models.Transaction{
		{Date: base, Amount: -40, Description: "CORNER RESTAURANT"},
		{Date: base.AddDate(0, 0, 3), Amount: -55, Description: "CORNER RESTAURANT"},
		{Date: base.AddDate(0, 0, 52), Amount: -31, Description: "CORNER RESTAURANT"},
		{Date: base.AddDate(0, 0, 130), Amount: -48, Description: "CORNER RESTAURANT"},
	}

	assert.Empty(t, Detect(txns, 3))
}

func TestDetectGroupsMerchantVariants(t *testing.T) {
	base := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	txns := []models.Transaction{
		{Date: base, Amount: -15.49, Description: "SPOTIFY USA"},
		{Date: base.AddDate(0, 0, 30), Amount: -15.49, Description: "SPOTIFY USA *8812"},
		{Date: base.AddDate(0, 0, 60), Amount: -15.49, Description: "Spotify USA"},
		{Date: base.AddDate(0, 0, 90), Amount: -15.49, Description: "SPOTIFY USA *9931"},
	}

	found := Detect(txns, 3)
	require.Len(t, found, 1)
	assert.Equal(t, "Spotify", found[0].Merchant)
	assert.Equal(t, 4, found[0].Occurrences)
}

func TestDetectSortsByConfidence(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// Perfectly regular, 6 occurrences: confidence 1.0.
	txns := txnsAt("NETFLIX.COM", -9.99, base, 30, 6)
	// Regular gaps but varying amounts: lower confidence.
	txns = append(txns,
		models.Transaction{Date: base, Amount: -80, Description: "CITY UTILITIES"},
		models.Transaction{Date: base.AddDate(0, 0, 30), Amount: -130, Description: "CITY UTILITIES"},
		models.Transaction{Date: base.AddDate(0, 0, 60), Amount: -95, Description: "CITY UTILITIES"},
	)

	found := Detect(txns, 3)
	require.Len(t, found, 2)
	assert.Equal(t, "Netflix", found[0].Merchant)
	assert.GreaterOrEqual(t, found[0].Confidence, found[1].Confidence)
}

func TestDetectEmptyInput(t *testing.T) {
	assert.Nil(t, Detect(nil, 3))
}
