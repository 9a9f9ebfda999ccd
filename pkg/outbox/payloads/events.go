package payloads

import (
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderLine describes one order item inside an event.
type OrderLine struct {
	OrderItemID uuid.UUID       `json:"orderItemId"`
	StockItemID uuid.UUID       `json:"stockItemId"`
	Quantity    int             `json:"quantity"`
	PriceAtTime decimal.Decimal `json:"priceAtTime"`
}

type OrderCreatedEvent struct {
	OrderID   uuid.UUID         `json:"orderId"`
	ShortID   string            `json:"shortId"`
	CreatorID *uuid.UUID        `json:"creatorId,omitempty"`
	Status    enums.OrderStatus `json:"status"`
	Items     []OrderLine       `json:"items"`
}

// OrderItemEvent covers added, updated, removed and completed items.
type OrderItemEvent struct {
	OrderID          uuid.UUID `json:"orderId"`
	OrderItemID      uuid.UUID `json:"orderItemId"`
	StockItemID      uuid.UUID `json:"stockItemId"`
	Quantity         int       `json:"quantity"`
	PreviousQuantity *int      `json:"previousQuantity,omitempty"`
}

type OrderAssignmentEvent struct {
	OrderID uuid.UUID `json:"orderId"`
	StaffID uuid.UUID `json:"staffId"`
}

type OrderStatusChangedEvent struct {
	OrderID uuid.UUID         `json:"orderId"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}

// ReleasedLine records stock handed back when an order is cancelled or deleted.
type ReleasedLine struct {
	StockItemID uuid.UUID `json:"stockItemId"`
	Quantity    int       `json:"quantity"`
}

type OrderCancelledEvent struct {
	OrderID  uuid.UUID      `json:"orderId"`
	Released []ReleasedLine `json:"released"`
}

type OrderDeletedEvent struct {
	OrderID  uuid.UUID      `json:"orderId"`
	Released []ReleasedLine `json:"released"`
}

type StockLowEvent struct {
	StockItemID       uuid.UUID `json:"stockItemId"`
	Name              string    `json:"name"`
	AvailableQuantity int       `json:"availableQuantity"`
	LowStockThreshold int       `json:"lowStockThreshold"`
}
