package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseOrderItems(t *testing.T) {
	array := `[{"name":"Masala Dosa","quantity":2,"price":"120.00"},{"name":"Filter Coffee","quantity":1,"price":"40.00"}]`

	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{name: "json array", raw: array, want: 2},
		{name: "double encoded string", raw: `"[{\"name\":\"Masala Dosa\",\"quantity\":2,\"price\":\"120.00\"}]"`, want: 1},
		{name: "empty column", raw: "", want: 0},
		{name: "zero quantity rejected", raw: `[{"name":"Idli","quantity":0,"price":"30.00"}]`, wantErr: true},
		{name: "missing name rejected", raw: `[{"quantity":1,"price":"30.00"}]`, wantErr: true},
		{name: "negative price rejected", raw: `[{"name":"Idli","quantity":1,"price":"-30.00"}]`, wantErr: true},
		{name: "malformed json rejected", raw: `{"name":`, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			items, err := ParseOrderItems([]byte(tc.raw))
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(items) != tc.want {
				t.Fatalf("got %d items, want %d", len(items), tc.want)
			}
		})
	}
}

func TestParseOrderItemsKeepsDecimalPrices(t *testing.T) {
	items, err := ParseOrderItems([]byte(`[{"name":"Thali","quantity":1,"price":"249.50"}]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !items[0].Price.Equal(decimal.RequireFromString("249.50")) {
		t.Fatalf("price = %s, want 249.50", items[0].Price)
	}
}

func TestFormatINR(t *testing.T) {
	tests := []struct {
		amount string
		want   string
	}{
		{"650", "₹650.00"},
		{"250.5", "₹250.50"},
		{"0", "₹0.00"},
		{"249.996", "₹250.00"}, // rounds at presentation only
	}
	for _, tc := range tests {
		got := FormatINR(decimal.RequireFromString(tc.amount))
		if got != tc.want {
			t.Errorf("FormatINR(%s) = %q, want %q", tc.amount, got, tc.want)
		}
	}
}
