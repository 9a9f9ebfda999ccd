package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockItem is a sellable unit with on-hand and reserved counts.
type StockItem struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CategoryID        *uuid.UUID      `gorm:"column:category_id;type:uuid"`
	Name              string          `gorm:"column:name;not null"`
	Description       *string         `gorm:"column:description"`
	OriginalPrice     decimal.Decimal `gorm:"column:original_price;type:numeric(10,2);not null;default:0"`
	Discount          decimal.Decimal `gorm:"column:discount;type:numeric(10,2);not null;default:0"`
	Quantity          int             `gorm:"column:quantity;not null;default:0"`
	ReservedQuantity  int             `gorm:"column:reserved_quantity;not null;default:0"`
	LowStockThreshold int             `gorm:"column:low_stock_threshold;not null;default:5"`
	MinOrderQuantity  int             `gorm:"column:min_order_quantity;not null;default:1"`
	MaxOrderQuantity  *int            `gorm:"column:max_order_quantity"`
	IsActive          bool            `gorm:"column:is_active;not null;default:true"`
	IsFeatured        bool            `gorm:"column:is_featured;not null;default:false"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`

	zeroes pendingZeroes
}

func (s *StockItem) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.zeroes.note("is_active", !s.IsActive, false, func() { s.IsActive = false })
	s.zeroes.note("low_stock_threshold", s.LowStockThreshold == 0, 0, func() { s.LowStockThreshold = 0 })
	return nil
}

func (s *StockItem) AfterCreate(tx *gorm.DB) error {
	return s.zeroes.restore(tx, s)
}

// AvailableQuantity is the on-hand count not held by open orders, floored at zero.
func (s StockItem) AvailableQuantity() int {
	if available := s.Quantity - s.ReservedQuantity; available > 0 {
		return available
	}
	return 0
}

func (s StockItem) CurrentPrice() decimal.Decimal {
	return s.OriginalPrice.Sub(s.Discount)
}

func (s StockItem) IsInStock() bool {
	return s.AvailableQuantity() > 0
}

func (s StockItem) IsLowStock() bool {
	return s.AvailableQuantity() <= s.LowStockThreshold
}

// DiscountPercentage returns the discount as a positive percentage of the
// original price.
func (s StockItem) DiscountPercentage() decimal.Decimal {
	if s.OriginalPrice.IsZero() {
		return decimal.Zero
	}
	return s.Discount.Div(s.OriginalPrice).Mul(decimal.NewFromInt(100)).Round(2)
}

// AcceptsQuantity reports whether qty sits within the per-order bounds.
func (s StockItem) AcceptsQuantity(qty int) bool {
	if qty < s.MinOrderQuantity {
		return false
	}
	if s.MaxOrderQuantity != nil && qty > *s.MaxOrderQuantity {
		return false
	}
	return true
}
