package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderItem is one stock line inside an order. PriceAtTime is frozen at insert.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;uniqueIndex:uq_order_items_order_stock"`
	StockItemID uuid.UUID       `gorm:"column:stock_item_id;type:uuid;not null;uniqueIndex:uq_order_items_order_stock"`
	Quantity    int             `gorm:"column:quantity;not null"`
	PriceAtTime decimal.Decimal `gorm:"column:price_at_time;type:numeric(10,2);not null"`
	IsCompleted bool            `gorm:"column:is_completed;not null;default:false"`
	CompletedAt *time.Time      `gorm:"column:completed_at"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`

	StockItem *StockItem `gorm:"foreignKey:StockItemID;constraint:OnDelete:RESTRICT"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (i OrderItem) TotalPrice() decimal.Decimal {
	return i.PriceAtTime.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
