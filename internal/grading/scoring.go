package grading

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// number converts a decoded JSON number to a Decimal. Booleans, strings
// and absent values are not numbers.
func number(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	}
	return decimal.Zero, false
}

// round2 rounds to two decimal places for presentation.
func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// Average returns the mean of values rounded to two places, or 0 for none.
func Average(values []decimal.Decimal) float64 {
	if len(values) == 0 {
		return 0
	}
	return round2(decimal.Avg(values[0], values[1:]...))
}

// WeightedTotal sums weighted_score over rubric score entries, rounded to
// two places. Entries without a numeric weighted_score count as zero.
func WeightedTotal(rubricScores []any) float64 {
	total := decimal.Zero
	for _, item := range rubricScores {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if d, ok := number(entry["weighted_score"]); ok {
			total = total.Add(d)
		}
	}
	return round2(total)
}

// AverageTestScore averages the non-zero scores. Tests without a score
// are ignored rather than counted as zero.
func AverageTestScore(tests []TestScore) decimal.Decimal {
	var scores []decimal.Decimal
	for _, t := range tests {
		if t.Score != 0 {
			scores = append(scores, decimal.NewFromFloat(t.Score))
		}
	}
	if len(scores) == 0 {
		return decimal.Zero
	}
	return decimal.Avg(scores[0], scores[1:]...)
}

// formatNumber prints a number without trailing zeros: 8, 8.5, 7.25.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatValue renders a loosely typed request value for a prompt, using
// def when the value is absent.
func formatValue(v any, def string) string {
	switch x := v.(type) {
	case nil:
		return def
	case string:
		return x
	case float64:
		return formatNumber(x)
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
