package models

import (
	"testing"
)

func TestParseBudget(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    BudgetType
		wantMin float64
		wantMax float64
		noNums  bool
	}{
		{
			name:    "fixed price range with commas",
			input:   "Fixed-price: $1,000 - $2,500",
			want:    BudgetFixed,
			wantMin: 1000,
			wantMax: 2500,
		},
		{
			name:    "hourly range with decimals",
			input:   "$25.00-$50.00/hr",
			want:    BudgetHourly,
			wantMin: 25,
			wantMax: 50,
		},
		{
			name:    "hourly keyword",
			input:   "Hourly: $35",
			want:    BudgetHourly,
			wantMin: 35,
			wantMax: 35,
		},
		{
			name:    "budget keyword forces fixed",
			input:   "Budget $150",
			want:    BudgetFixed,
			wantMin: 150,
			wantMax: 150,
		},
		{
			name:    "bare amount at threshold is fixed",
			input:   "$200",
			want:    BudgetFixed,
			wantMin: 200,
			wantMax: 200,
		},
		{
			name:    "bare amount under threshold is hourly",
			input:   "$45",
			want:    BudgetHourly,
			wantMin: 45,
			wantMax: 45,
		},
		{
			name:   "empty input",
			input:  "",
			want:   BudgetUnknown,
			noNums: true,
		},
		{
			name:   "no digits despite keyword",
			input:  "Fixed price TBD",
			want:   BudgetUnknown,
			noNums: true,
		},
		{
			name:    "hourly keyword beats fixed keyword",
			input:   "Fixed budget, hourly rate $20-$40",
			want:    BudgetHourly,
			wantMin: 20,
			wantMax: 40,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseBudget(tt.input)
			if got.Type != tt.want {
				t.Errorf("ParseBudget(%q).Type = %s, want %s", tt.input, got.Type, tt.want)
			}
			if tt.noNums {
				if got.Min != nil || got.Max != nil {
					t.Errorf("ParseBudget(%q) expected nil bounds, got %v %v", tt.input, got.Min, got.Max)
				}
				return
			}
			if got.Min == nil || got.Max == nil {
				t.Fatalf("ParseBudget(%q) returned nil bounds", tt.input)
			}
			if *got.Min != tt.wantMin || *got.Max != tt.wantMax {
				t.Errorf("ParseBudget(%q) = [%v, %v], want [%v, %v]", tt.input, *got.Min, *got.Max, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestBudgetRoundTrip(t *testing.T) {
	budgets := []Budget{
		{Type: BudgetFixed, Min: f(1000), Max: f(2500)},
		{Type: BudgetFixed, Min: f(1500), Max: f(1500)},
		{Type: BudgetHourly, Min: f(25), Max: f(50)},
		{Type: BudgetHourly, Min: f(35.5), Max: f(35.5)},
		{Type: BudgetFixed, Min: f(199.99), Max: f(350)},
	}

	for _, b := range budgets {
		rendered := RenderBudget(b)
		got := ParseBudget(rendered)
		if got.Type != b.Type {
			t.Errorf("round trip of %+v via %q changed type to %s", b, rendered, got.Type)
			continue
		}
		if got.Min == nil || got.Max == nil {
			t.Errorf("round trip of %+v via %q lost bounds", b, rendered)
			continue
		}
		if *got.Min != *b.Min || *got.Max != *b.Max {
			t.Errorf("round trip of %+v via %q = [%v, %v]", b, rendered, *got.Min, *got.Max)
		}
	}
}

func TestRenderBudgetUnknown(t *testing.T) {
	if got := RenderBudget(Budget{Type: BudgetUnknown}); got != "" {
		t.Errorf("RenderBudget(unknown) = %q, want empty", got)
	}
	if got := RenderBudget(Budget{Type: BudgetFixed}); got != "" {
		t.Errorf("RenderBudget with nil bounds = %q, want empty", got)
	}
}

func TestParseSpend(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		none  bool
	}{
		{input: "$1.5M", want: 1_500_000},
		{input: "$10K", want: 10_000},
		{input: "$50,000", want: 50_000},
		{input: "$2m+", want: 2_000_000},
		{input: "900", want: 900},
		{input: "", none: true},
		{input: "no spend yet", none: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseSpend(tt.input)
			if got.Raw != tt.input {
				t.Errorf("ParseSpend(%q) did not preserve raw string: %q", tt.input, got.Raw)
			}
			if tt.none {
				if got.Amount != nil {
					t.Errorf("ParseSpend(%q) = %v, want nil", tt.input, *got.Amount)
				}
				return
			}
			if got.Amount == nil {
				t.Fatalf("ParseSpend(%q) returned nil amount", tt.input)
			}
			if *got.Amount != tt.want {
				t.Errorf("ParseSpend(%q) = %v, want %v", tt.input, *got.Amount, tt.want)
			}
		})
	}
}

func TestProposePricing(t *testing.T) {
	if got := ProposePricing(f(1000), f(2000)); got == nil || *got != 1500 {
		t.Errorf("midpoint of 1000 and 2000 = %v, want 1500", got)
	}
	if got := ProposePricing(f(800), nil); got == nil || *got != 800 {
		t.Errorf("single min bound = %v, want 800", got)
	}
	if got := ProposePricing(nil, f(300)); got == nil || *got != 300 {
		t.Errorf("single max bound = %v, want 300", got)
	}
	if got := ProposePricing(nil, nil); got != nil {
		t.Errorf("no bounds = %v, want nil", *got)
	}
}

func f(v float64) *float64 {
	return &v
}
