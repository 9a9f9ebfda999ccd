package orders

import (
	"time"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	"github.com/angelmondragon/orderdesk-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItemDTO is one order line as returned to clients.
type OrderItemDTO struct {
	ID            uuid.UUID       `json:"id"`
	StockItemID   uuid.UUID       `json:"stock_item_id"`
	StockItemName string          `json:"stock_item_name,omitempty"`
	Quantity      int             `json:"quantity"`
	PriceAtTime   decimal.Decimal `json:"price_at_time"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	IsCompleted   bool            `json:"is_completed"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// OrderDetail is the order aggregate with its derived read fields.
type OrderDetail struct {
	ID                       uuid.UUID         `json:"id"`
	ShortID                  string            `json:"short_id"`
	DisplayID                string            `json:"display_id"`
	OrderNumber              int64             `json:"order_number,omitempty"`
	CreatorID                *uuid.UUID        `json:"creator_id,omitempty"`
	StaffHandlerID           *uuid.UUID        `json:"staff_handler_id,omitempty"`
	Status                   enums.OrderStatus `json:"status"`
	IsAssigned               bool              `json:"is_assigned"`
	AssignedAt               *time.Time        `json:"assigned_at,omitempty"`
	IsAvailableForAssignment bool              `json:"is_available_for_assignment"`
	Notes                    *string           `json:"notes,omitempty"`
	ItemCount                int               `json:"item_count"`
	CompletedItems           int               `json:"completed_items"`
	TotalItems               int               `json:"total_items"`
	TotalPrice               decimal.Decimal   `json:"total_price"`
	Items                    []OrderItemDTO    `json:"items"`
	CreatedAt                time.Time         `json:"created_at"`
	UpdatedAt                time.Time         `json:"updated_at"`
}

// OrderList is one page of orders.
type OrderList = pagination.Page[OrderDetail]

// BulkRemoveResult reports per-order outcomes of a bulk item removal.
type BulkRemoveResult struct {
	Removed  []uuid.UUID     `json:"removed"`
	Rejected []BulkRejection `json:"rejected"`
	NotFound []uuid.UUID     `json:"not_found"`
}

// BulkRejection names an order whose items were left in place and why.
type BulkRejection struct {
	OrderID uuid.UUID   `json:"order_id"`
	ShortID string      `json:"short_id"`
	ItemIDs []uuid.UUID `json:"item_ids"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
}

func NewOrderDetail(order *models.Order, strategy enums.OrderIDStrategy) OrderDetail {
	detail := OrderDetail{
		ID:                       order.ID,
		ShortID:                  order.ShortID(),
		DisplayID:                order.DisplayID(strategy),
		OrderNumber:              order.OrderNumber,
		CreatorID:                order.CreatorID,
		StaffHandlerID:           order.StaffHandlerID,
		Status:                   order.Status,
		IsAssigned:               order.IsAssigned,
		AssignedAt:               order.AssignedAt,
		IsAvailableForAssignment: order.IsAvailableForAssignment(),
		Notes:                    order.Notes,
		ItemCount:                len(order.Items),
		TotalPrice:               decimal.Zero,
		Items:                    make([]OrderItemDTO, 0, len(order.Items)),
		CreatedAt:                order.CreatedAt,
		UpdatedAt:                order.UpdatedAt,
	}
	for _, item := range order.Items {
		line := OrderItemDTO{
			ID:          item.ID,
			StockItemID: item.StockItemID,
			Quantity:    item.Quantity,
			PriceAtTime: item.PriceAtTime,
			TotalPrice:  item.TotalPrice(),
			IsCompleted: item.IsCompleted,
			CompletedAt: item.CompletedAt,
		}
		if item.StockItem != nil {
			line.StockItemName = item.StockItem.Name
		}
		detail.Items = append(detail.Items, line)
		detail.TotalItems += item.Quantity
		detail.TotalPrice = detail.TotalPrice.Add(line.TotalPrice)
		if item.IsCompleted {
			detail.CompletedItems++
		}
	}
	return detail
}
