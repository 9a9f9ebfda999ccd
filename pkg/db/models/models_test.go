package models

import (
	"testing"

	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestStockItemDerivedFields(t *testing.T) {
	item := StockItem{
		OriginalPrice:     decimal.RequireFromString("20.00"),
		Discount:          decimal.RequireFromString("5.00"),
		Quantity:          10,
		ReservedQuantity:  7,
		LowStockThreshold: 5,
	}

	if got := item.AvailableQuantity(); got != 3 {
		t.Fatalf("expected available 3, got %d", got)
	}
	if !item.CurrentPrice().Equal(decimal.RequireFromString("15")) {
		t.Fatalf("unexpected current price %s", item.CurrentPrice())
	}
	if !item.IsInStock() || !item.IsLowStock() {
		t.Fatalf("expected in stock and low stock")
	}
	if !item.DiscountPercentage().Equal(decimal.NewFromInt(25)) {
		t.Fatalf("unexpected discount percentage %s", item.DiscountPercentage())
	}
}

func TestStockItemAvailableNeverNegative(t *testing.T) {
	item := StockItem{Quantity: 2, ReservedQuantity: 5}
	if got := item.AvailableQuantity(); got != 0 {
		t.Fatalf("expected available floored at 0, got %d", got)
	}
	if item.IsInStock() {
		t.Fatalf("expected out of stock")
	}
	if !(StockItem{}).DiscountPercentage().IsZero() {
		t.Fatalf("expected zero discount percentage for zero price")
	}
}

func TestStockItemAcceptsQuantity(t *testing.T) {
	max := 3
	item := StockItem{MinOrderQuantity: 2, MaxOrderQuantity: &max}
	cases := map[int]bool{1: false, 2: true, 3: true, 4: false}
	for qty, want := range cases {
		if got := item.AcceptsQuantity(qty); got != want {
			t.Fatalf("qty %d accepted=%v want %v", qty, got, want)
		}
	}
}

func TestOrderIdentifiers(t *testing.T) {
	order := Order{
		ID:          uuid.MustParse("3f2a9c1b-0000-4000-8000-000000000000"),
		OrderNumber: 42,
		Status:      enums.OrderStatusPending,
	}
	if got := order.ShortID(); got != "3F2A9C1B" {
		t.Fatalf("unexpected short id %q", got)
	}
	if got := order.DisplayID(enums.OrderIDStrategyUUID); got != "3F2A9C1B" {
		t.Fatalf("unexpected uuid display id %q", got)
	}
	if got := order.DisplayID(enums.OrderIDStrategySequential); got != "#42" {
		t.Fatalf("unexpected sequential display id %q", got)
	}
	if !order.IsAvailableForAssignment() {
		t.Fatalf("expected pending unassigned order to be available")
	}
	order.IsAssigned = true
	if order.IsAvailableForAssignment() {
		t.Fatalf("expected assigned order to be unavailable")
	}
}

func TestOrderItemTotalPrice(t *testing.T) {
	item := OrderItem{PriceAtTime: decimal.RequireFromString("2.50"), Quantity: 4}
	if !item.TotalPrice().Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected total %s", item.TotalPrice())
	}
}
