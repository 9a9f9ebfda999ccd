package orders

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/orderdesk-backend/internal/authz"
	"github.com/angelmondragon/orderdesk-backend/pkg/db"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const orderItemUniqueConstraint = "uq_order_items_order_stock"

// AddItem reserves stock and appends a line priced at the item's current price.
func (s *service) AddItem(ctx context.Context, actor authz.Principal, orderID uuid.UUID, input ItemInput) (*OrderDetail, error) {
	return s.mutate(ctx, orderID, "add order item", func(tx *gorm.DB, repo Repository, order *models.Order) error {
		if err := s.authz.Require(actor, authz.ActionOrderEditItems, resourceFor(order)); err != nil {
			return err
		}
		if err := ensureOpen(order); err != nil {
			return err
		}
		line, err := s.addLine(ctx, tx, repo, order, input)
		if err != nil {
			return err
		}
		if err := s.emit(ctx, tx, actor, order.ID, enums.EventOrderItemAdded, payloads.OrderItemEvent{
			OrderID:     order.ID,
			OrderItemID: line.ID,
			StockItemID: line.StockItemID,
			Quantity:    line.Quantity,
		}); err != nil {
			return err
		}
		return s.recompute(ctx, tx, repo, actor, order)
	})
}

// UpdateItemQuantity moves an open line to a new quantity, reserving or
// releasing only the difference. The price snapshot is kept.
func (s *service) UpdateItemQuantity(ctx context.Context, actor authz.Principal, orderID, itemID uuid.UUID, quantity int) (*OrderDetail, error) {
	return s.mutate(ctx, orderID, "update order item", func(tx *gorm.DB, repo Repository, order *models.Order) error {
		if err := s.authz.Require(actor, authz.ActionOrderEditItems, resourceFor(order)); err != nil {
			return err
		}
		if err := ensureOpen(order); err != nil {
			return err
		}
		idx, err := findItem(order, itemID)
		if err != nil {
			return err
		}
		item := &order.Items[idx]
		if item.IsCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "completed items cannot change")
		}

		stock, err := loadStockItem(ctx, repo, item.StockItemID)
		if err != nil {
			return err
		}
		if err := validateLineQuantity(stock, quantity); err != nil {
			return err
		}
		if quantity > item.Quantity && !stock.IsActive {
			return unavailableStock(stock.ID)
		}

		previous := item.Quantity
		switch delta := quantity - previous; {
		case delta > 0:
			err = s.ledger.Reserve(ctx, tx, item.StockItemID, delta)
		case delta < 0:
			err = s.ledger.Release(ctx, tx, item.StockItemID, -delta)
		default:
			return nil
		}
		if err != nil {
			return err
		}

		if err := repo.UpdateItem(ctx, item.ID, map[string]any{"quantity": quantity}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update order item")
		}
		item.Quantity = quantity

		return s.emit(ctx, tx, actor, order.ID, enums.EventOrderItemUpdated, payloads.OrderItemEvent{
			OrderID:          order.ID,
			OrderItemID:      item.ID,
			StockItemID:      item.StockItemID,
			Quantity:         quantity,
			PreviousQuantity: &previous,
		})
	})
}

// RemoveItem releases and deletes a line. The last line of an order cannot be
// removed; delete the order instead.
func (s *service) RemoveItem(ctx context.Context, actor authz.Principal, orderID, itemID uuid.UUID) (*OrderDetail, error) {
	return s.mutate(ctx, orderID, "remove order item", func(tx *gorm.DB, repo Repository, order *models.Order) error {
		if err := s.authz.Require(actor, authz.ActionOrderEditItems, resourceFor(order)); err != nil {
			return err
		}
		if err := ensureOpen(order); err != nil {
			return err
		}
		if _, err := findItem(order, itemID); err != nil {
			return err
		}
		return s.removeLines(ctx, tx, repo, actor, order, []uuid.UUID{itemID})
	})
}

// BulkRemoveItems removes items across orders. Each order is handled in its own
// transaction so one rejected order does not block the others.
func (s *service) BulkRemoveItems(ctx context.Context, actor authz.Principal, itemIDs []uuid.UUID) (*BulkRemoveResult, error) {
	result := &BulkRemoveResult{
		Removed:  []uuid.UUID{},
		Rejected: []BulkRejection{},
		NotFound: []uuid.UUID{},
	}
	if len(itemIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item_ids is required")
	}

	items, err := s.repo.FindItemsByIDs(ctx, itemIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	found := make(map[uuid.UUID]uuid.UUID, len(items))
	for _, item := range items {
		found[item.ID] = item.OrderID
	}

	var orderIDs []uuid.UUID
	byOrder := map[uuid.UUID][]uuid.UUID{}
	seen := map[uuid.UUID]struct{}{}
	for _, id := range itemIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		orderID, ok := found[id]
		if !ok {
			result.NotFound = append(result.NotFound, id)
			continue
		}
		if _, ok := byOrder[orderID]; !ok {
			orderIDs = append(orderIDs, orderID)
		}
		byOrder[orderID] = append(byOrder[orderID], id)
	}

	for _, orderID := range orderIDs {
		ids := byOrder[orderID]
		err := s.inOrderTx(ctx, orderID, "bulk remove order items", func(tx *gorm.DB, repo Repository, order *models.Order) error {
			if !s.authz.Can(actor, authz.ActionOrderView, resourceFor(order)) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			if err := s.authz.Require(actor, authz.ActionOrderEditItems, resourceFor(order)); err != nil {
				return err
			}
			if err := ensureOpen(order); err != nil {
				return err
			}
			return s.removeLines(ctx, tx, repo, actor, order, ids)
		})
		if err != nil {
			typed := pkgerrors.As(err)
			if typed == nil {
				return nil, err
			}
			// Orders the caller cannot see are reported like missing ones.
			if typed.Code() == pkgerrors.CodeNotFound {
				result.NotFound = append(result.NotFound, ids...)
				continue
			}
			result.Rejected = append(result.Rejected, BulkRejection{
				OrderID: orderID,
				ShortID: (&models.Order{ID: orderID}).ShortID(),
				ItemIDs: ids,
				Code:    string(typed.Code()),
				Message: typed.Message(),
			})
			continue
		}
		result.Removed = append(result.Removed, ids...)
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"removed":   len(result.Removed),
			"rejected":  len(result.Rejected),
			"not_found": len(result.NotFound),
		})
		s.logg.Info(logCtx, "bulk order item removal finished")
	}
	return result, nil
}

// CompleteItem marks one line fulfilled and consumes its stock. Completing an
// already completed line changes nothing.
func (s *service) CompleteItem(ctx context.Context, actor authz.Principal, orderID, itemID uuid.UUID) (*OrderDetail, error) {
	if !s.opts.ItemCompletionTracking {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "per-item completion is disabled; complete the whole order")
	}
	return s.mutate(ctx, orderID, "complete order item", func(tx *gorm.DB, repo Repository, order *models.Order) error {
		idx, err := findItem(order, itemID)
		if err != nil {
			return err
		}
		if err := s.ensureCanComplete(actor, order); err != nil {
			return err
		}
		if order.Items[idx].IsCompleted {
			return nil
		}
		if err := s.completeLine(ctx, tx, repo, actor, order, idx); err != nil {
			return err
		}
		return s.recompute(ctx, tx, repo, actor, order)
	})
}

// CompleteOrder completes every remaining line in one transaction.
func (s *service) CompleteOrder(ctx context.Context, actor authz.Principal, orderID uuid.UUID) (*OrderDetail, error) {
	return s.mutate(ctx, orderID, "complete order", func(tx *gorm.DB, repo Repository, order *models.Order) error {
		if err := s.ensureCanComplete(actor, order); err != nil {
			return err
		}
		for idx := range order.Items {
			if order.Items[idx].IsCompleted {
				continue
			}
			if err := s.completeLine(ctx, tx, repo, actor, order, idx); err != nil {
				return err
			}
		}
		return s.recompute(ctx, tx, repo, actor, order)
	})
}

// ensureCanComplete applies the completion checks in order: assignment first,
// then permission, then order state.
func (s *service) ensureCanComplete(actor authz.Principal, order *models.Order) error {
	if !order.IsAssigned {
		return pkgerrors.New(pkgerrors.CodeOrderNotAssigned, "order must be assigned before items are completed")
	}
	if err := s.authz.Require(actor, authz.ActionOrderCompleteItem, resourceFor(order)); err != nil {
		return err
	}
	return ensureOpen(order)
}

func (s *service) completeLine(ctx context.Context, tx *gorm.DB, repo Repository, actor authz.Principal, order *models.Order, idx int) error {
	item := &order.Items[idx]
	if err := s.ledger.Consume(ctx, tx, item.StockItemID, item.Quantity); err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := repo.UpdateItem(ctx, item.ID, map[string]any{
		"is_completed": true,
		"completed_at": now,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: complete order item")
	}
	item.IsCompleted = true
	item.CompletedAt = &now

	return s.emit(ctx, tx, actor, order.ID, enums.EventOrderItemCompleted, payloads.OrderItemEvent{
		OrderID:     order.ID,
		OrderItemID: item.ID,
		StockItemID: item.StockItemID,
		Quantity:    item.Quantity,
	})
}

// addLine validates, reserves and inserts one line on a locked order.
func (s *service) addLine(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, input ItemInput) (*models.OrderItem, error) {
	for _, existing := range order.Items {
		if existing.StockItemID == input.StockItemID {
			return nil, duplicateLine(order.ID, input.StockItemID)
		}
	}
	stock, err := loadStockItem(ctx, repo, input.StockItemID)
	if err != nil {
		return nil, err
	}
	if !stock.IsActive {
		return nil, unavailableStock(stock.ID)
	}
	if err := validateLineQuantity(stock, input.Quantity); err != nil {
		return nil, err
	}
	if err := s.ledger.Reserve(ctx, tx, stock.ID, input.Quantity); err != nil {
		return nil, err
	}

	line := &models.OrderItem{
		OrderID:     order.ID,
		StockItemID: stock.ID,
		Quantity:    input.Quantity,
		PriceAtTime: stock.CurrentPrice(),
	}
	if err := repo.CreateItem(ctx, line); err != nil {
		if db.IsUniqueViolation(err, orderItemUniqueConstraint) {
			return nil, duplicateLine(order.ID, stock.ID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert order item")
	}
	order.Items = append(order.Items, *line)
	return line, nil
}

// removeLines deletes the given lines from a locked order after checking the
// order keeps at least one line.
func (s *service) removeLines(ctx context.Context, tx *gorm.DB, repo Repository, actor authz.Principal, order *models.Order, itemIDs []uuid.UUID) error {
	drop := make(map[uuid.UUID]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		drop[id] = struct{}{}
	}

	remaining := make([]models.OrderItem, 0, len(order.Items))
	var removing []models.OrderItem
	for _, item := range order.Items {
		if _, ok := drop[item.ID]; ok {
			removing = append(removing, item)
			continue
		}
		remaining = append(remaining, item)
	}
	if len(removing) == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
	}
	if len(remaining) == 0 {
		return pkgerrors.New(pkgerrors.CodeEmptyOrderViolation, "removing these items would leave the order empty").
			WithDetails(map[string]any{"order_ids": []string{order.ID.String()}})
	}
	for _, item := range removing {
		if item.IsCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "completed items cannot be removed").
				WithDetails(map[string]any{"order_item_id": item.ID.String()})
		}
	}

	for _, item := range removing {
		if err := s.ledger.Release(ctx, tx, item.StockItemID, item.Quantity); err != nil {
			return err
		}
		if err := repo.DeleteItem(ctx, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete order item")
		}
		if err := s.emit(ctx, tx, actor, order.ID, enums.EventOrderItemRemoved, payloads.OrderItemEvent{
			OrderID:     order.ID,
			OrderItemID: item.ID,
			StockItemID: item.StockItemID,
			Quantity:    item.Quantity,
		}); err != nil {
			return err
		}
	}
	order.Items = remaining
	return s.recompute(ctx, tx, repo, actor, order)
}

func loadStockItem(ctx context.Context, repo Repository, stockItemID uuid.UUID) (*models.StockItem, error) {
	stock, err := repo.FindStockItem(ctx, stockItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock item")
	}
	return stock, nil
}

func validateLineQuantity(stock *models.StockItem, qty int) error {
	if qty > 0 && stock.AcceptsQuantity(qty) {
		return nil
	}
	details := map[string]any{
		"stock_item_id":      stock.ID.String(),
		"quantity":           qty,
		"min_order_quantity": stock.MinOrderQuantity,
	}
	if stock.MaxOrderQuantity != nil {
		details["max_order_quantity"] = *stock.MaxOrderQuantity
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "quantity outside the allowed range for this item").WithDetails(details)
}

func duplicateLine(orderID, stockItemID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "stock item is already on this order").
		WithDetails(map[string]any{"order_id": orderID.String(), "stock_item_id": stockItemID.String()})
}

func orderLine(item *models.OrderItem) payloads.OrderLine {
	return payloads.OrderLine{
		OrderItemID: item.ID,
		StockItemID: item.StockItemID,
		Quantity:    item.Quantity,
		PriceAtTime: item.PriceAtTime,
	}
}

func unavailableStock(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "stock item is not available for ordering").
		WithDetails(map[string]any{"stock_item_id": id.String()})
}
