package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/orderdesk-backend/internal/authz"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
	"github.com/angelmondragon/orderdesk-backend/pkg/outbox"
	"github.com/angelmondragon/orderdesk-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/orderdesk-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StockLedger moves reserved and on-hand units inside the caller's transaction.
type StockLedger interface {
	Reserve(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, qty int) error
	Consume(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, qty int) error
}

type accessPolicy interface {
	Can(p authz.Principal, action authz.Action, res authz.OrderResource) bool
	Require(p authz.Principal, action authz.Action, res authz.OrderResource) error
	CanHandle(p authz.Principal) bool
	IsManager(p authz.Principal) bool
}

// Service defines the order fulfillment operations.
type Service interface {
	CreateOrder(ctx context.Context, actor authz.Principal, input CreateOrderInput) (*OrderDetail, error)
	GetOrder(ctx context.Context, actor authz.Principal, orderID uuid.UUID) (*OrderDetail, error)
	ListOrders(ctx context.Context, actor authz.Principal, input ListOrdersInput) (*OrderList, error)
	ListQueue(ctx context.Context, actor authz.Principal, params pagination.Params) (*OrderList, error)
	AddItem(ctx context.Context, actor authz.Principal, orderID uuid.UUID, input ItemInput) (*OrderDetail, error)
	UpdateItemQuantity(ctx context.Context, actor authz.Principal, orderID, itemID uuid.UUID, quantity int) (*OrderDetail, error)
	RemoveItem(ctx context.Context, actor authz.Principal, orderID, itemID uuid.UUID) (*OrderDetail, error)
	BulkRemoveItems(ctx context.Context, actor authz.Principal, itemIDs []uuid.UUID) (*BulkRemoveResult, error)
	CompleteItem(ctx context.Context, actor authz.Principal, orderID, itemID uuid.UUID) (*OrderDetail, error)
	CompleteOrder(ctx context.Context, actor authz.Principal, orderID uuid.UUID) (*OrderDetail, error)
	Assign(ctx context.Context, actor authz.Principal, orderID, staffID uuid.UUID) (*OrderDetail, error)
	Unassign(ctx context.Context, actor authz.Principal, orderID uuid.UUID) (*OrderDetail, error)
	CancelOrder(ctx context.Context, actor authz.Principal, orderID uuid.UUID) (*OrderDetail, error)
	DeleteOrder(ctx context.Context, actor authz.Principal, orderID uuid.UUID) error
}

// ItemInput requests quantity units of a stock item. Prices are never taken
// from the caller.
type ItemInput struct {
	StockItemID uuid.UUID
	Quantity    int
}

// CreateOrderInput holds the validated payload to place an order.
type CreateOrderInput struct {
	Notes *string
	Items []ItemInput
}

// ListOrdersInput carries listing filters and cursor pagination.
type ListOrdersInput struct {
	Status    *enums.OrderStatus
	HandlerID *uuid.UUID
	Assigned  *bool
	Params    pagination.Params
}

// Options toggles engine behavior per deployment.
type Options struct {
	IDStrategy enums.OrderIDStrategy
	// ItemCompletionTracking enables per-item completion. When off, orders are
	// completed only as a whole through CompleteOrder.
	ItemCompletionTracking bool
}

// Deps bundles the collaborators the order service needs.
type Deps struct {
	Repo      Repository
	Tx        txRunner
	Ledger    StockLedger
	Authz     accessPolicy
	Directory authz.Directory
	Outbox    outboxPublisher
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	tx        txRunner
	ledger    StockLedger
	authz     accessPolicy
	directory authz.Directory
	outbox    outboxPublisher
	logg      *logger.Logger
	opts      Options
}

// NewService builds the order service with the required dependencies.
func NewService(deps Deps, opts Options) (Service, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if deps.Authz == nil {
		return nil, fmt.Errorf("authorizer required")
	}
	if deps.Directory == nil {
		return nil, fmt.Errorf("identity directory required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if opts.IDStrategy == "" {
		opts.IDStrategy = enums.OrderIDStrategyUUID
	}
	if !opts.IDStrategy.IsValid() {
		return nil, fmt.Errorf("invalid order id strategy %q", opts.IDStrategy)
	}
	return &service{
		repo:      deps.Repo,
		tx:        deps.Tx,
		ledger:    deps.Ledger,
		authz:     deps.Authz,
		directory: deps.Directory,
		outbox:    deps.Outbox,
		logg:      deps.Logger,
		opts:      opts,
	}, nil
}

type orderMutation func(tx *gorm.DB, repo Repository, order *models.Order) error

// inOrderTx locks the order inside a transaction and hands it to fn.
func (s *service) inOrderTx(ctx context.Context, orderID uuid.UUID, op string, fn orderMutation) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := lockOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		return fn(tx, repo, order)
	})
	if err != nil {
		return asServiceError(err, op)
	}
	return nil
}

func (s *service) mutate(ctx context.Context, orderID uuid.UUID, op string, fn orderMutation) (*OrderDetail, error) {
	if err := s.inOrderTx(ctx, orderID, op, fn); err != nil {
		return nil, err
	}
	return s.loadDetail(ctx, orderID)
}

func (s *service) loadDetail(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	detail := NewOrderDetail(order, s.opts.IDStrategy)
	return &detail, nil
}

// recompute applies DeriveStatus to the locked order. order.Items must reflect
// every change made earlier in the transaction.
func (s *service) recompute(ctx context.Context, tx *gorm.DB, repo Repository, actor authz.Principal, order *models.Order) error {
	completed := 0
	for _, item := range order.Items {
		if item.IsCompleted {
			completed++
		}
	}
	next := DeriveStatus(order.Status, order.IsAssigned, len(order.Items), completed)
	if next == order.Status {
		return nil
	}
	return s.setStatus(ctx, tx, repo, actor, order, next)
}

func (s *service) setStatus(ctx context.Context, tx *gorm.DB, repo Repository, actor authz.Principal, order *models.Order, next enums.OrderStatus) error {
	previous := order.Status
	if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"status": next}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update order status")
	}
	order.Status = next

	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
			"from": previous,
			"to":   next,
		})
		s.logg.Info(logCtx, "order status changed")
	}
	return s.emit(ctx, tx, actor, order.ID, enums.EventOrderStatusChanged, payloads.OrderStatusChangedEvent{
		OrderID: order.ID,
		From:    previous,
		To:      next,
	})
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, actor authz.Principal, orderID uuid.UUID, eventType enums.OutboxEventType, data any) error {
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Actor:         actorOf(actor),
		Data:          data,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit "+string(eventType))
	}
	return nil
}

func actorOf(p authz.Principal) *outbox.Actor {
	if p.ID == uuid.Nil {
		return nil
	}
	return &outbox.Actor{PrincipalID: p.ID, Roles: p.Roles, Superuser: p.Superuser}
}

func (s *service) logOrder(ctx context.Context, orderID uuid.UUID, fields map[string]any, msg string) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithOrderID(ctx, orderID.String())
	if len(fields) > 0 {
		logCtx = s.logg.WithFields(logCtx, fields)
	}
	s.logg.Info(logCtx, msg)
}

func resourceFor(order *models.Order) authz.OrderResource {
	return authz.OrderResource{
		CreatorID: order.CreatorID,
		HandlerID: order.StaffHandlerID,
		Assigned:  order.IsAssigned,
		Status:    order.Status,
	}
}

func lockOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.LockOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
	}
	return order, nil
}

func findItem(order *models.Order, itemID uuid.UUID) (int, error) {
	for i := range order.Items {
		if order.Items[i].ID == itemID {
			return i, nil
		}
	}
	return -1, pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
}

func ensureOpen(order *models.Order) error {
	if order.Status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s", order.Status)).
			WithDetails(map[string]any{"order_id": order.ID.String(), "status": order.Status})
	}
	return nil
}

func asServiceError(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
