package enums

import "testing"

func TestOrderStatusTerminal(t *testing.T) {
	cases := map[OrderStatus]bool{
		OrderStatusPending:    false,
		OrderStatusInProgress: false,
		OrderStatusCompleted:  true,
		OrderStatusCancelled:  true,
	}
	for status, want := range cases {
		if got := status.IsTerminal(); got != want {
			t.Fatalf("%s terminal = %v, want %v", status, got, want)
		}
	}
}

func TestParseOrderStatus(t *testing.T) {
	got, err := ParseOrderStatus("in_progress")
	if err != nil || got != OrderStatusInProgress {
		t.Fatalf("unexpected parse result %q %v", got, err)
	}
	if _, err := ParseOrderStatus("shipped"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestParseOrderIDStrategy(t *testing.T) {
	got, err := ParseOrderIDStrategy("")
	if err != nil || got != OrderIDStrategyUUID {
		t.Fatalf("blank should default to uuid, got %q %v", got, err)
	}
	got, err = ParseOrderIDStrategy(" Sequential ")
	if err != nil || got != OrderIDStrategySequential {
		t.Fatalf("unexpected parse result %q %v", got, err)
	}
	if _, err := ParseOrderIDStrategy("snowflake"); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}

func TestOutboxEventTypeParse(t *testing.T) {
	if _, err := ParseOutboxEventType("stock_low"); err != nil {
		t.Fatalf("expected stock_low to parse: %v", err)
	}
	if OutboxEventType("order_paid").IsValid() {
		t.Fatalf("unexpected valid event type")
	}
	if !AggregateOrder.IsValid() {
		t.Fatalf("expected order aggregate valid")
	}
}
