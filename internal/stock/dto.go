package stock

import (
	"time"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemDTO is the stock item payload returned to clients, derived fields included.
type ItemDTO struct {
	ID                 uuid.UUID       `json:"id"`
	CategoryID         *uuid.UUID      `json:"category_id,omitempty"`
	Name               string          `json:"name"`
	Description        *string         `json:"description,omitempty"`
	OriginalPrice      decimal.Decimal `json:"original_price"`
	Discount           decimal.Decimal `json:"discount"`
	CurrentPrice       decimal.Decimal `json:"current_price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	Quantity           int             `json:"quantity"`
	ReservedQuantity   int             `json:"reserved_quantity"`
	AvailableQuantity  int             `json:"available_quantity"`
	LowStockThreshold  int             `json:"low_stock_threshold"`
	IsInStock          bool            `json:"is_in_stock"`
	IsLowStock         bool            `json:"is_low_stock"`
	MinOrderQuantity   int             `json:"min_order_quantity"`
	MaxOrderQuantity   *int            `json:"max_order_quantity,omitempty"`
	IsActive           bool            `json:"is_active"`
	IsFeatured         bool            `json:"is_featured"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// ItemList is one page of stock items.
type ItemList = pagination.Page[ItemDTO]

type CategoryDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewItemDTO(item *models.StockItem) ItemDTO {
	return ItemDTO{
		ID:                 item.ID,
		CategoryID:         item.CategoryID,
		Name:               item.Name,
		Description:        item.Description,
		OriginalPrice:      item.OriginalPrice,
		Discount:           item.Discount,
		CurrentPrice:       item.CurrentPrice(),
		DiscountPercentage: item.DiscountPercentage(),
		Quantity:           item.Quantity,
		ReservedQuantity:   item.ReservedQuantity,
		AvailableQuantity:  item.AvailableQuantity(),
		LowStockThreshold:  item.LowStockThreshold,
		IsInStock:          item.IsInStock(),
		IsLowStock:         item.IsLowStock(),
		MinOrderQuantity:   item.MinOrderQuantity,
		MaxOrderQuantity:   item.MaxOrderQuantity,
		IsActive:           item.IsActive,
		IsFeatured:         item.IsFeatured,
		CreatedAt:          item.CreatedAt,
		UpdatedAt:          item.UpdatedAt,
	}
}

func NewCategoryDTO(category *models.StockCategory) CategoryDTO {
	return CategoryDTO{
		ID:          category.ID,
		Name:        category.Name,
		Description: category.Description,
		IsActive:    category.IsActive,
		CreatedAt:   category.CreatedAt,
	}
}
