package models

import (
	"context"
	"errors"
	"testing"

	"github.com/mmdatafocus/boutique_backend/utils"
	"github.com/shopspring/decimal"
)

func TestInitiateOrder_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	item := CartItem{ProductId: 1, Color: "red", Size: "M", Quantity: 1}

	cases := []struct {
		name  string
		input *NewFullOrder
	}{
		{"missing order id", &NewFullOrder{CartItems: []CartItem{item}, Total: decimal.NewFromInt(10)}},
		{"empty cart", &NewFullOrder{PhonepeOrderId: "pp-1", Total: decimal.NewFromInt(10)}},
		{"zero total", &NewFullOrder{PhonepeOrderId: "pp-1", CartItems: []CartItem{item}}},
		{"negative total", &NewFullOrder{PhonepeOrderId: "pp-1", CartItems: []CartItem{item}, Total: decimal.NewFromInt(-5)}},
		{"zero quantity item", &NewFullOrder{PhonepeOrderId: "pp-1", CartItems: []CartItem{{ProductId: 1}}, Total: decimal.NewFromInt(10)}},
	}
	for _, tc := range cases {
		if _, err := InitiateOrder(ctx, tc.input); !errors.Is(err, utils.ErrorValidation) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestFullOrder_CartItemsRoundTrip(t *testing.T) {
	items := []CartItem{
		{ProductId: 3, Color: "blue", Size: "S", Quantity: 2, Price: decimal.RequireFromString("19.99")},
	}
	raw, err := utils.MarshalToJSON(items)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	order := FullOrder{CartItemsJson: raw}
	got, err := order.CartItems()
	if err != nil {
		t.Fatalf("CartItems: %v", err)
	}
	if len(got) != 1 || got[0].ProductId != 3 || got[0].Quantity != 2 {
		t.Fatalf("unexpected items: %+v", got)
	}
	if !got[0].Price.Equal(decimal.RequireFromString("19.99")) {
		t.Fatalf("price lost precision: %s", got[0].Price)
	}
}

func TestFullOrder_CartItemsEmpty(t *testing.T) {
	order := FullOrder{}
	got, err := order.CartItems()
	if err != nil {
		t.Fatalf("CartItems: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for empty snapshot, got %+v", got)
	}
}
