package models

import (
	"context"
	"errors"
	"testing"

	"github.com/mmdatafocus/boutique_backend/utils"
	"github.com/shopspring/decimal"
)

func TestUpdateCommissionRate_RejectsOutOfRange(t *testing.T) {
	ctx := context.Background()
	for _, rate := range []string{"-1", "100.01", "250"} {
		if _, err := UpdateCommissionRate(ctx, decimal.RequireFromString(rate)); !errors.Is(err, utils.ErrorValidation) {
			t.Fatalf("rate %s: expected validation error, got %v", rate, err)
		}
	}
}

func TestDefaultCommissionRate(t *testing.T) {
	if !DefaultCommissionRate.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("default rate must be 5, got %s", DefaultCommissionRate)
	}
}
