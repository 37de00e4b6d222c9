package models

// RecurringExpense is a detected subscription or recurring bill.
type RecurringExpense struct {
	Merchant         string  `json:"merchant"`
	AverageAmount    float64 `json:"average_amount"`
	FrequencyDays    int     `json:"frequency_days"`
	FrequencyType    string  `json:"frequency_type"`
	Confidence       float64 `json:"confidence"`
	NextExpectedDate string  `json:"next_expected_date"`
	Occurrences      int     `json:"occurrences"`
	FirstSeen        string  `json:"first_seen"`
	LastSeen         string  `json:"last_seen"`
}

// SpendingForecast is a single month-ahead spending prediction for a category.
type SpendingForecast struct {
	Month           string  `json:"month"`
	PredictedAmount float64 `json:"predicted_amount"`
	LowerBound      float64 `json:"lower_bound"`
	UpperBound      float64 `json:"upper_bound"`
}

// BalanceForecast is a single day-ahead balance prediction for an account.
type BalanceForecast struct {
	Date             string  `json:"date"`
	PredictedBalance float64 `json:"predicted_balance"`
	DailyFlow        float64 `json:"daily_flow"`
	LowerBound       float64 `json:"lower_bound"`
	UpperBound       float64 `json:"upper_bound"`
}
