package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
	"github.com/angelmondragon/orderdesk-backend/pkg/metrics"
	"github.com/angelmondragon/orderdesk-backend/pkg/outbox"
	"github.com/angelmondragon/orderdesk-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opReserve = "reserve"
	opRelease = "release"
	opConsume = "consume"

	outcomeOK = "ok"
)

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Ledger moves units between available, reserved and consumed for a stock item.
// Every call runs inside the caller's transaction so it commits or rolls back
// with the order mutation that triggered it.
type Ledger struct {
	metrics *metrics.LedgerMetrics
	outbox  outboxPublisher
	logg    *logger.Logger
}

// NewLedger builds a ledger. The outbox and metrics are optional; without an
// outbox no stock_low events are queued.
func NewLedger(m *metrics.LedgerMetrics, outbox outboxPublisher, logg *logger.Logger) *Ledger {
	return &Ledger{metrics: m, outbox: outbox, logg: logg}
}

// Reserve holds qty units for an open order. Fails with INSUFFICIENT_STOCK when
// fewer than qty units are available and leaves the row untouched.
func (l *Ledger) Reserve(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, qty int) (err error) {
	defer func() { l.observe(opReserve, err) }()

	before, err := l.lock(ctx, tx, itemID, qty)
	if err != nil {
		return err
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE stock_items
		SET reserved_quantity = reserved_quantity + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND quantity - reserved_quantity >= ?
	`, qty, itemID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
	}
	if res.RowsAffected == 0 {
		return insufficient(before, qty)
	}

	after := *before
	after.ReservedQuantity += qty
	return l.maybeEmitLow(ctx, tx, *before, after)
}

// Release returns up to qty reserved units. reserved_quantity never goes below
// zero, so releasing an already released line is a no-op.
func (l *Ledger) Release(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, qty int) (err error) {
	defer func() { l.observe(opRelease, err) }()

	if err := validateQty(qty); err != nil {
		return err
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock release")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE stock_items
		SET reserved_quantity = CASE WHEN reserved_quantity >= ? THEN reserved_quantity - ? ELSE 0 END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, qty, itemID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "stock item not found")
	}
	if l.logg != nil {
		logCtx := l.logg.WithFields(ctx, map[string]any{"stock_item_id": itemID.String(), "qty": qty})
		l.logg.Debug(logCtx, "reservation released")
	}
	return nil
}

// Consume removes qty units from hand when an order line is fulfilled, dropping
// the matching reservation with them.
func (l *Ledger) Consume(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, qty int) (err error) {
	defer func() { l.observe(opConsume, err) }()

	before, err := l.lock(ctx, tx, itemID, qty)
	if err != nil {
		return err
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE stock_items
		SET quantity = quantity - ?,
			reserved_quantity = CASE WHEN reserved_quantity >= ? THEN reserved_quantity - ? ELSE 0 END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND quantity >= ?
	`, qty, qty, qty, itemID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "consume stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock on hand").
			WithDetails(map[string]any{
				"stock_item_id": itemID.String(),
				"requested":     qty,
				"on_hand":       before.Quantity,
			})
	}

	after := *before
	after.Quantity -= qty
	after.ReservedQuantity -= min(qty, before.ReservedQuantity)
	return l.maybeEmitLow(ctx, tx, *before, after)
}

// lock reads the row under FOR UPDATE so the low stock check sees the same
// state the conditional update acts on.
func (l *Ledger) lock(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, qty int) (*models.StockItem, error) {
	if err := validateQty(qty); err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock ledger")
	}
	var item models.StockItem
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", itemID).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock item")
	}
	return &item, nil
}

func (l *Ledger) maybeEmitLow(ctx context.Context, tx *gorm.DB, before, after models.StockItem) error {
	if l.outbox == nil || before.IsLowStock() || !after.IsLowStock() {
		return nil
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventStockLow,
		AggregateType: enums.AggregateStockItem,
		AggregateID:   after.ID,
		Data: payloads.StockLowEvent{
			StockItemID:       after.ID,
			Name:              after.Name,
			AvailableQuantity: after.AvailableQuantity(),
			LowStockThreshold: after.LowStockThreshold,
		},
	}
	if err := l.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit stock low event")
	}
	if l.logg != nil {
		logCtx := l.logg.WithFields(ctx, map[string]any{
			"stock_item_id": after.ID.String(),
			"available":     after.AvailableQuantity(),
			"threshold":     after.LowStockThreshold,
		})
		l.logg.Warn(logCtx, "stock item reached low stock")
	}
	return nil
}

func (l *Ledger) observe(op string, err error) {
	if err == nil {
		l.metrics.Observe(op, outcomeOK)
		return
	}
	if typed := pkgerrors.As(err); typed != nil {
		l.metrics.Observe(op, string(typed.Code()))
		return
	}
	l.metrics.Observe(op, string(pkgerrors.CodeInternal))
}

func validateQty(qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
			WithDetails(map[string]any{"quantity": qty})
	}
	return nil
}

func insufficient(item *models.StockItem, requested int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("only %d of %s available", item.AvailableQuantity(), item.Name)).
		WithDetails(map[string]any{
			"stock_item_id": item.ID.String(),
			"requested":     requested,
			"available":     item.AvailableQuantity(),
		})
}
