package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	"github.com/angelmondragon/orderdesk-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateItem(ctx context.Context, item *models.OrderItem) error
	LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindItemsByIDs(ctx context.Context, itemIDs []uuid.UUID) ([]models.OrderItem, error)
	FindStockItem(ctx context.Context, stockItemID uuid.UUID) (*models.StockItem, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	UpdateItem(ctx context.Context, itemID uuid.UUID, updates map[string]any) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	DeleteOrder(ctx context.Context, orderID uuid.UUID) error
	ListOrders(ctx context.Context, filters ListFilters, cursor *pagination.Cursor, limit int) ([]models.Order, error)
	StaleReservations(ctx context.Context, cutoff time.Time) (StaleReservationSummary, error)
}

// ListFilters narrows order listings. VisibleTo limits results to orders the
// principal created or handles.
type ListFilters struct {
	Status    *enums.OrderStatus
	HandlerID *uuid.UUID
	Assigned  *bool
	VisibleTo *uuid.UUID
	QueueOnly bool
}

// StaleReservationSummary counts pending unassigned orders older than a cutoff
// and the units they still hold.
type StaleReservationSummary struct {
	Orders int64
	Units  int64
}
