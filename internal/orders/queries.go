package orders

import (
	"context"
	"errors"

	"github.com/angelmondragon/orderdesk-backend/internal/authz"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (s *service) GetOrder(ctx context.Context, actor authz.Principal, orderID uuid.UUID) (*OrderDetail, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if err := s.authz.Require(actor, authz.ActionOrderView, resourceFor(order)); err != nil {
		return nil, err
	}
	detail := NewOrderDetail(order, s.opts.IDStrategy)
	return &detail, nil
}

// ListOrders returns every order to managers and only created or handled
// orders to everyone else.
func (s *service) ListOrders(ctx context.Context, actor authz.Principal, input ListOrdersInput) (*OrderList, error) {
	if !actor.Active {
		return nil, pkgerrors.New(pkgerrors.CodePermissionDenied, "inactive principal")
	}
	filters := ListFilters{
		Status:    input.Status,
		HandlerID: input.HandlerID,
		Assigned:  input.Assigned,
	}
	if !s.authz.IsManager(actor) {
		id := actor.ID
		filters.VisibleTo = &id
	}
	return s.list(ctx, filters, input.Params)
}

// ListQueue returns pending orders nobody has claimed yet.
func (s *service) ListQueue(ctx context.Context, actor authz.Principal, params pagination.Params) (*OrderList, error) {
	if err := s.authz.Require(actor, authz.ActionQueueView, authz.OrderResource{}); err != nil {
		return nil, err
	}
	return s.list(ctx, ListFilters{QueueOnly: true}, params)
}

func (s *service) list(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListOrders(ctx, filters, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	page := pagination.Trim(rows, params.Limit, func(order models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: order.CreatedAt, ID: order.ID}
	})

	items := make([]OrderDetail, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, NewOrderDetail(&page.Items[i], s.opts.IDStrategy))
	}
	return &OrderList{Items: items, NextCursor: page.NextCursor}, nil
}
