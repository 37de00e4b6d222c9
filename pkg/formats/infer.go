package formats

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/jqrs/finance-app/pkg/models"
)

// sampleSize caps how many data rows the classifier inspects per column.
const sampleSize = 10

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{2,4}`), // MM/DD/YYYY or M/D/YY
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`),       // YYYY-MM-DD
	regexp.MustCompile(`^\d{1,2}-\d{1,2}-\d{2,4}`), // MM-DD-YYYY
}

var hasLetter = regexp.MustCompile(`[a-zA-Z]`)

// Suggestions lists candidate columns per canonical role. A column may
// satisfy more than one role.
type Suggestions struct {
	Date        []string `json:"date"`
	Amount      []string `json:"amount"`
	Description []string `json:"description"`
}

// InferColumns scores every column of an unknown layout against the
// date/amount/description heuristics.
func InferColumns(headers []string, rows [][]string) Suggestions {
	var s Suggestions

	for i, col := range headers {
		sample := columnSample(rows, i)
		if len(sample) == 0 {
			continue
		}
		if looksLikeDate(sample) {
			s.Date = append(s.Date, col)
		}
		if looksLikeAmount(sample) {
			s.Amount = append(s.Amount, col)
		}
		if looksLikeDescription(sample) {
			s.Description = append(s.Description, col)
		}
	}
	return s
}

// Suggest builds a column mapping from the inference results, taking the
// first candidate per role. It returns false unless every required role has
// at least one candidate.
func Suggest(headers []string, rows [][]string) (models.ColumnMapping, bool) {
	s := InferColumns(headers, rows)
	if len(s.Date) == 0 || len(s.Amount) == 0 || len(s.Description) == 0 {
		return models.ColumnMapping{}, false
	}
	return models.ColumnMapping{
		Date:        s.Date[0],
		Amount:      s.Amount[0],
		Description: s.Description[0],
	}, true
}

func columnSample(rows [][]string, col int) []string {
	var sample []string
	for _, row := range rows {
		if len(sample) == sampleSize {
			break
		}
		if col >= len(row) {
			continue
		}
		if strings.TrimSpace(row[col]) == "" {
			continue
		}
		sample = append(sample, row[col])
	}
	return sample
}

func looksLikeDate(sample []string) bool {
	matches := 0
	for _, val := range sample {
		trimmed := strings.TrimSpace(val)
		for _, p := range datePatterns {
			if p.MatchString(trimmed) {
				matches++
				break
			}
		}
	}
	return float64(matches) >= float64(len(sample))*0.8
}

func looksLikeAmount(sample []string) bool {
	hasDecimals := false
	maxAbs := 0.0

	for _, val := range sample {
		cleaned := strings.NewReplacer("$", "", ",", "", "(", "", ")", "").Replace(val)
		cleaned = strings.TrimSpace(cleaned)
		if cleaned == "-" {
			cleaned = "0"
		}
		v, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return false
		}
		if v != math.Trunc(v) {
			hasDecimals = true
		}
		if math.Abs(v) > maxAbs {
			maxAbs = math.Abs(v)
		}
	}

	// Currency columns have cents, or at least stay in a plausible range.
	return hasDecimals || maxAbs < 100000
}

func looksLikeDescription(sample []string) bool {
	totalLen := 0
	withLetters := 0
	for _, val := range sample {
		totalLen += len(val)
		if hasLetter.MatchString(val) {
			withLetters++
		}
	}
	meanLen := float64(totalLen) / float64(len(sample))
	letterRatio := float64(withLetters) / float64(len(sample))
	return meanLen > 10 && letterRatio > 0.8
}
