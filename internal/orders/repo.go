package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	"github.com/angelmondragon/orderdesk-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Omit("Items").Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) CreateItem(ctx context.Context, item *models.OrderItem) error {
	return r.db.WithContext(ctx).Omit("StockItem").Create(item).Error
}

// LockOrder takes a row lock on the order and then loads its items, so status
// recomputation sees a stable item set for the rest of the transaction.
func (r *repository) LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}

	var items []models.OrderItem
	err = r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	order.Items = items
	return &order, nil
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", orderedItems).
		Preload("Items.StockItem").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindItemsByIDs(ctx context.Context, itemIDs []uuid.UUID) ([]models.OrderItem, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	var items []models.OrderItem
	if err := r.db.WithContext(ctx).Where("id IN ?", itemIDs).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) FindStockItem(ctx context.Context, stockItemID uuid.UUID) (*models.StockItem, error) {
	var item models.StockItem
	if err := r.db.WithContext(ctx).Where("id = ?", stockItemID).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) UpdateItem(ctx context.Context, itemID uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ?", itemID).
		Updates(updates).Error
}

func (r *repository) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", itemID).Delete(&models.OrderItem{}).Error
}

// DeleteOrder removes the items explicitly before the order so drivers without
// cascading foreign keys behave the same.
func (r *repository) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&models.OrderItem{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id = ?", orderID).Delete(&models.Order{}).Error
}

func (r *repository) ListOrders(ctx context.Context, filters ListFilters, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{}).Preload("Items", orderedItems)
	if filters.QueueOnly {
		query = query.Where("orders.status = ? AND orders.is_assigned = ?", enums.OrderStatusPending, false)
	}
	if filters.Status != nil {
		query = query.Where("orders.status = ?", *filters.Status)
	}
	if filters.HandlerID != nil {
		query = query.Where("orders.staff_handler_id = ?", *filters.HandlerID)
	}
	if filters.Assigned != nil {
		query = query.Where("orders.is_assigned = ?", *filters.Assigned)
	}
	if filters.VisibleTo != nil {
		query = query.Where("(orders.creator_id = ? OR orders.staff_handler_id = ?)", *filters.VisibleTo, *filters.VisibleTo)
	}

	var rows []models.Order
	if err := query.Scopes(pagination.Newest("orders", cursor, limit)).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) StaleReservations(ctx context.Context, cutoff time.Time) (StaleReservationSummary, error) {
	var summary StaleReservationSummary
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status = ? AND is_assigned = ? AND created_at < ?", enums.OrderStatusPending, false, cutoff).
		Count(&summary.Orders).Error
	if err != nil {
		return summary, err
	}

	err = r.db.WithContext(ctx).
		Table("order_items").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.status = ? AND orders.is_assigned = ? AND orders.created_at < ?", enums.OrderStatusPending, false, cutoff).
		Where("order_items.is_completed = ?", false).
		Select("COALESCE(SUM(order_items.quantity), 0)").
		Scan(&summary.Units).Error
	return summary, err
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("order_items.created_at ASC").Order("order_items.id ASC")
}
