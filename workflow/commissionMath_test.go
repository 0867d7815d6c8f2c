package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeCommission(t *testing.T) {
	cases := []struct {
		total string
		rate  string
		want  string
	}{
		{"1000", "5", "50"},
		{"1999.99", "5", "99.9995"},
		{"100", "12.5", "12.5"},
		{"0.01", "5", "0.0005"},
		{"1000", "0", "0"},
		{"1000", "100", "1000"},
	}
	for _, tc := range cases {
		total := decimal.RequireFromString(tc.total)
		rate := decimal.RequireFromString(tc.rate)
		want := decimal.RequireFromString(tc.want)
		if got := ComputeCommission(total, rate); !got.Equal(want) {
			t.Fatalf("ComputeCommission(%s, %s%%) = %s, want %s", tc.total, tc.rate, got, want)
		}
	}
}

func TestComputeCommission_DefaultRateMatchesFivePercent(t *testing.T) {
	total := decimal.RequireFromString("240")
	got := ComputeCommission(total, decimal.NewFromInt(5))
	if !got.Equal(decimal.RequireFromString("12")) {
		t.Fatalf("5%% of 240 = %s, want 12", got)
	}
}
