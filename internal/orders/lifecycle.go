package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/orderdesk-backend/internal/authz"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateOrder places an order and reserves stock for every line. Any failing
// line rolls back the whole order.
func (s *service) CreateOrder(ctx context.Context, actor authz.Principal, input CreateOrderInput) (*OrderDetail, error) {
	if err := s.authz.Require(actor, authz.ActionOrderCreate, authz.OrderResource{}); err != nil {
		return nil, err
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "an order needs at least one item")
	}
	seen := make(map[uuid.UUID]struct{}, len(input.Items))
	for _, item := range input.Items {
		if _, dup := seen[item.StockItemID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock item listed more than once").
				WithDetails(map[string]any{"stock_item_id": item.StockItemID.String()})
		}
		seen[item.StockItemID] = struct{}{}
	}

	var orderID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		creator := actor.ID
		order := &models.Order{
			CreatorID: &creator,
			Status:    enums.OrderStatusPending,
			Notes:     input.Notes,
		}
		if _, err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert order")
		}
		orderID = order.ID

		lines := make([]payloads.OrderLine, 0, len(input.Items))
		for _, item := range input.Items {
			line, err := s.addLine(ctx, tx, repo, order, item)
			if err != nil {
				return err
			}
			lines = append(lines, orderLine(line))
		}
		if err := s.recompute(ctx, tx, repo, actor, order); err != nil {
			return err
		}
		return s.emit(ctx, tx, actor, order.ID, enums.EventOrderCreated, payloads.OrderCreatedEvent{
			OrderID:   order.ID,
			ShortID:   order.ShortID(),
			CreatorID: order.CreatorID,
			Status:    order.Status,
			Items:     lines,
		})
	})
	if err != nil {
		return nil, asServiceError(err, "create order")
	}

	s.logOrder(ctx, orderID, map[string]any{"items": len(input.Items)}, "order created")
	return s.loadDetail(ctx, orderID)
}

// Assign records staffID as the order's handler. Assigning the current handler
// again is a no-op; a different handler must be unassigned first.
func (s *service) Assign(ctx context.Context, actor authz.Principal, orderID, staffID uuid.UUID) (*OrderDetail, error) {
	if staffID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "staff_id is required")
	}
	staff, lookupErr := s.directory.Lookup(ctx, staffID)
	if lookupErr != nil && !pkgerrors.HasCode(lookupErr, pkgerrors.CodeNotFound) {
		return nil, lookupErr
	}

	return s.mutate(ctx, orderID, "assign order", func(tx *gorm.DB, repo Repository, order *models.Order) error {
		res := resourceFor(order)
		res.Assignee = staffID
		if err := s.authz.Require(actor, authz.ActionOrderAssign, res); err != nil {
			return err
		}
		if err := ensureOpen(order); err != nil {
			return err
		}
		if order.StaffHandlerID != nil {
			if *order.StaffHandlerID == staffID {
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeAlreadyAssigned, "order already has a handler").
				WithDetails(map[string]any{
					"order_id":         order.ID.String(),
					"staff_handler_id": order.StaffHandlerID.String(),
				})
		}
		if lookupErr != nil || !s.authz.CanHandle(staff) {
			return pkgerrors.New(pkgerrors.CodeInvalidAssignee, "staff member cannot handle orders")
		}

		now := time.Now().UTC()
		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"staff_handler_id": staffID,
			"is_assigned":      true,
			"assigned_at":      now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: assign order")
		}
		order.StaffHandlerID = &staffID
		order.IsAssigned = true
		order.AssignedAt = &now

		if err := s.emit(ctx, tx, actor, order.ID, enums.EventOrderAssigned, payloads.OrderAssignmentEvent{
			OrderID: order.ID,
			StaffID: staffID,
		}); err != nil {
			return err
		}
		if err := s.recompute(ctx, tx, repo, actor, order); err != nil {
			return err
		}
		s.logOrder(ctx, order.ID, map[string]any{"staff_id": staffID.String()}, "order assigned")
		return nil
	})
}

// Unassign clears the handler and returns an open order to pending.
func (s *service) Unassign(ctx context.Context, actor authz.Principal, orderID uuid.UUID) (*OrderDetail, error) {
	return s.mutate(ctx, orderID, "unassign order", func(tx *gorm.DB, repo Repository, order *models.Order) error {
		if err := s.authz.Require(actor, authz.ActionOrderUnassign, resourceFor(order)); err != nil {
			return err
		}
		if err := ensureOpen(order); err != nil {
			return err
		}
		if !order.IsAssigned || order.StaffHandlerID == nil {
			return pkgerrors.New(pkgerrors.CodeOrderNotAssigned, "order is not assigned")
		}

		previous := *order.StaffHandlerID
		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"staff_handler_id": nil,
			"is_assigned":      false,
			"assigned_at":      nil,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: unassign order")
		}
		order.StaffHandlerID = nil
		order.IsAssigned = false
		order.AssignedAt = nil

		if err := s.emit(ctx, tx, actor, order.ID, enums.EventOrderUnassigned, payloads.OrderAssignmentEvent{
			OrderID: order.ID,
			StaffID: previous,
		}); err != nil {
			return err
		}
		if err := s.recompute(ctx, tx, repo, actor, order); err != nil {
			return err
		}
		s.logOrder(ctx, order.ID, map[string]any{"staff_id": previous.String()}, "order unassigned")
		return nil
	})
}

// CancelOrder releases every open reservation and moves the order to cancelled.
func (s *service) CancelOrder(ctx context.Context, actor authz.Principal, orderID uuid.UUID) (*OrderDetail, error) {
	return s.mutate(ctx, orderID, "cancel order", func(tx *gorm.DB, repo Repository, order *models.Order) error {
		if err := s.authz.Require(actor, authz.ActionOrderCancel, resourceFor(order)); err != nil {
			return err
		}
		if err := ensureOpen(order); err != nil {
			return err
		}
		released, err := s.releaseOpenLines(ctx, tx, order)
		if err != nil {
			return err
		}
		if err := s.setStatus(ctx, tx, repo, actor, order, enums.OrderStatusCancelled); err != nil {
			return err
		}
		return s.emit(ctx, tx, actor, order.ID, enums.EventOrderCancelled, payloads.OrderCancelledEvent{
			OrderID:  order.ID,
			Released: released,
		})
	})
}

// DeleteOrder removes the order and its items, releasing open reservations
// unless a cancellation already did.
func (s *service) DeleteOrder(ctx context.Context, actor authz.Principal, orderID uuid.UUID) error {
	err := s.inOrderTx(ctx, orderID, "delete order", func(tx *gorm.DB, repo Repository, order *models.Order) error {
		if err := s.authz.Require(actor, authz.ActionOrderDelete, resourceFor(order)); err != nil {
			return err
		}
		released := []payloads.ReleasedLine{}
		if order.Status != enums.OrderStatusCancelled {
			var err error
			if released, err = s.releaseOpenLines(ctx, tx, order); err != nil {
				return err
			}
		}
		if err := repo.DeleteOrder(ctx, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete order")
		}
		return s.emit(ctx, tx, actor, order.ID, enums.EventOrderDeleted, payloads.OrderDeletedEvent{
			OrderID:  order.ID,
			Released: released,
		})
	})
	if err != nil {
		return err
	}
	s.logOrder(ctx, orderID, nil, "order deleted")
	return nil
}

func (s *service) releaseOpenLines(ctx context.Context, tx *gorm.DB, order *models.Order) ([]payloads.ReleasedLine, error) {
	released := make([]payloads.ReleasedLine, 0, len(order.Items))
	for _, item := range order.Items {
		if item.IsCompleted {
			continue
		}
		if err := s.ledger.Release(ctx, tx, item.StockItemID, item.Quantity); err != nil {
			return nil, err
		}
		released = append(released, payloads.ReleasedLine{StockItemID: item.StockItemID, Quantity: item.Quantity})
	}
	return released, nil
}
