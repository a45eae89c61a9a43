package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// BudgetType classifies how a posting prices the work
type BudgetType string

const (
	BudgetFixed   BudgetType = "fixed"
	BudgetHourly  BudgetType = "hourly"
	BudgetUnknown BudgetType = "unknown"
)

// Budget is the parsed pricing of a posting. Min and Max are nil when the
// text carried no figures. A singleton amount sets both bounds equal.
type Budget struct {
	Type BudgetType
	Min  *float64
	Max  *float64
}

// fixedThreshold separates keyword-less singleton amounts: at or above it
// the figure reads as a project price, below it as an hourly rate.
const fixedThreshold = 200

var amountPattern = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// ParseBudget turns free-form budget text like "Fixed-price: $1,000 - $2,500"
// or "$25.00-$50.00/hr" into a typed Budget. Text without digits parses as
// unknown with nil bounds regardless of keywords.
func ParseBudget(text string) Budget {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Budget{Type: BudgetUnknown}
	}

	amounts := extractAmounts(trimmed)
	if len(amounts) == 0 {
		return Budget{Type: BudgetUnknown}
	}

	lower := strings.ToLower(trimmed)
	var btype BudgetType
	switch {
	case strings.Contains(lower, "/hr") || strings.Contains(lower, "hourly"):
		btype = BudgetHourly
	case strings.Contains(lower, "fixed") || strings.Contains(lower, "budget"):
		btype = BudgetFixed
	case amounts[len(amounts)-1] >= fixedThreshold:
		btype = BudgetFixed
	default:
		btype = BudgetHourly
	}

	min := amounts[0]
	max := amounts[0]
	if len(amounts) > 1 {
		max = amounts[1]
	}
	return Budget{Type: btype, Min: &min, Max: &max}
}

// RenderBudget is the inverse of ParseBudget for well-formed budgets:
// ParseBudget(RenderBudget(b)) == b whenever b has a known type and bounds.
func RenderBudget(b Budget) string {
	if b.Type == BudgetUnknown || b.Min == nil || b.Max == nil {
		return ""
	}
	min := formatAmount(*b.Min)
	max := formatAmount(*b.Max)
	switch b.Type {
	case BudgetHourly:
		if *b.Min == *b.Max {
			return fmt.Sprintf("$%s/hr", min)
		}
		return fmt.Sprintf("$%s-$%s/hr", min, max)
	case BudgetFixed:
		if *b.Min == *b.Max {
			return fmt.Sprintf("Fixed price: $%s", min)
		}
		return fmt.Sprintf("Fixed price: $%s-$%s", min, max)
	}
	return ""
}

// ProposePricing derives the price to put on the application: the midpoint
// when both bounds exist, else whichever bound is set, else nil.
func ProposePricing(min, max *float64) *float64 {
	switch {
	case min != nil && max != nil:
		mid := (*min + *max) / 2
		return &mid
	case min != nil:
		v := *min
		return &v
	case max != nil:
		v := *max
		return &v
	}
	return nil
}

// Spend is a parsed client lifetime-spend figure. The raw string is kept
// for the sheet; Amount is nil when the text carried no figure.
type Spend struct {
	Raw    string
	Amount *float64
}

// ParseSpend expands abbreviated spend figures: "$1.5M" -> 1500000,
// "$10K" -> 10000, "$50,000" -> 50000.
func ParseSpend(text string) Spend {
	s := Spend{Raw: text}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return s
	}

	match := amountPattern.FindString(trimmed)
	if match == "" {
		return s
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return s
	}

	rest := strings.ToUpper(trimmed[strings.Index(trimmed, match)+len(match):])
	switch {
	case strings.HasPrefix(rest, "M"):
		value *= 1_000_000
	case strings.HasPrefix(rest, "K"):
		value *= 1_000
	}
	s.Amount = &value
	return s
}

func extractAmounts(text string) []float64 {
	matches := amountPattern.FindAllString(text, 2)
	amounts := make([]float64, 0, len(matches))
	for _, m := range matches {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
		if err != nil {
			continue
		}
		amounts = append(amounts, v)
	}
	return amounts
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
