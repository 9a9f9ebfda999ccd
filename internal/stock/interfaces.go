package stock

import (
	"context"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for stock items and categories.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateItem(ctx context.Context, item *models.StockItem) (*models.StockItem, error)
	SaveItem(ctx context.Context, item *models.StockItem) error
	FindItemByID(ctx context.Context, id uuid.UUID) (*models.StockItem, error)
	LockItem(ctx context.Context, id uuid.UUID) (*models.StockItem, error)
	UpdateItemQuantity(ctx context.Context, id uuid.UUID, quantity int) error
	DeleteItem(ctx context.Context, id uuid.UUID) error
	CountOrderReferences(ctx context.Context, id uuid.UUID) (int64, error)
	ListItems(ctx context.Context, filters ItemFilters, cursor *pagination.Cursor, limit int) ([]models.StockItem, error)
	CreateCategory(ctx context.Context, category *models.StockCategory) (*models.StockCategory, error)
	FindCategoryByID(ctx context.Context, id uuid.UUID) (*models.StockCategory, error)
	ListCategories(ctx context.Context, activeOnly bool) ([]models.StockCategory, error)
}

// ItemFilters narrows stock listings.
type ItemFilters struct {
	ActiveOnly   bool
	LowStockOnly bool
	FeaturedOnly bool
	CategoryID   *uuid.UUID
}
