package stock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/orderdesk-backend/pkg/db"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/migrate"
	"github.com/angelmondragon/orderdesk-backend/pkg/outbox"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:stock_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := migrate.AutoMigrateModels(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func seedItem(t *testing.T, conn *gorm.DB, quantity int) *models.StockItem {
	t.Helper()
	item := &models.StockItem{
		Name:              "Widget " + uuid.NewString()[:6],
		OriginalPrice:     decimal.NewFromInt(10),
		Quantity:          quantity,
		LowStockThreshold: 5,
		MinOrderQuantity:  1,
		IsActive:          true,
	}
	if err := conn.Create(item).Error; err != nil {
		t.Fatalf("seed stock item: %v", err)
	}
	return item
}

func reload(t *testing.T, conn *gorm.DB, id uuid.UUID) models.StockItem {
	t.Helper()
	var item models.StockItem
	if err := conn.First(&item, "id = ?", id).Error; err != nil {
		t.Fatalf("reload stock item: %v", err)
	}
	return item
}

func newTestLedger(conn *gorm.DB) *Ledger {
	return NewLedger(nil, outbox.NewService(outbox.NewRepository(conn), nil), nil)
}

func TestReserveHoldsUnitsAndRejectsOverdraw(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	ledger := newTestLedger(conn)
	item := seedItem(t, conn, 10)

	if err := conn.Transaction(func(tx *gorm.DB) error {
		return ledger.Reserve(ctx, tx, item.ID, 4)
	}); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	got := reload(t, conn, item.ID)
	if got.ReservedQuantity != 4 || got.AvailableQuantity() != 6 {
		t.Fatalf("unexpected state after reserve: %+v", got)
	}

	err := conn.Transaction(func(tx *gorm.DB) error {
		return ledger.Reserve(ctx, tx, item.ID, 7)
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	got = reload(t, conn, item.ID)
	if got.ReservedQuantity != 4 || got.Quantity != 10 {
		t.Fatalf("failed reserve must not mutate state: %+v", got)
	}
}

func TestLedgerRejectsNonPositiveQuantity(t *testing.T) {
	conn := newTestDB(t)
	ledger := newTestLedger(conn)
	item := seedItem(t, conn, 3)

	for name, op := range map[string]func(context.Context, *gorm.DB, uuid.UUID, int) error{
		"reserve": ledger.Reserve,
		"release": ledger.Release,
		"consume": ledger.Consume,
	} {
		if err := op(context.Background(), conn, item.ID, 0); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestLedgerUnknownItemNotFound(t *testing.T) {
	conn := newTestDB(t)
	ledger := newTestLedger(conn)
	missing := uuid.New()

	if err := ledger.Reserve(context.Background(), conn, missing, 1); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("reserve: expected not found, got %v", err)
	}
	if err := ledger.Release(context.Background(), conn, missing, 1); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("release: expected not found, got %v", err)
	}
	if err := ledger.Consume(context.Background(), conn, missing, 1); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("consume: expected not found, got %v", err)
	}
}

func TestReleaseNeverGoesNegative(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	ledger := newTestLedger(conn)
	item := seedItem(t, conn, 10)

	if err := ledger.Reserve(ctx, conn, item.ID, 2); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := ledger.Release(ctx, conn, item.ID, 5); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got := reload(t, conn, item.ID); got.ReservedQuantity != 0 {
		t.Fatalf("expected reserved floored at 0, got %d", got.ReservedQuantity)
	}
	if err := ledger.Release(ctx, conn, item.ID, 1); err != nil {
		t.Fatalf("second release should be a no-op, got %v", err)
	}
	if got := reload(t, conn, item.ID); got.ReservedQuantity != 0 || got.Quantity != 10 {
		t.Fatalf("unexpected state after idempotent release: %+v", got)
	}
}

func TestConsumeDecrementsOnHandAndReservation(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	ledger := newTestLedger(conn)
	item := seedItem(t, conn, 10)

	if err := ledger.Reserve(ctx, conn, item.ID, 4); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := ledger.Consume(ctx, conn, item.ID, 4); err != nil {
		t.Fatalf("consume: %v", err)
	}
	got := reload(t, conn, item.ID)
	if got.Quantity != 6 || got.ReservedQuantity != 0 {
		t.Fatalf("unexpected state after consume: %+v", got)
	}

	if err := ledger.Consume(ctx, conn, item.ID, 7); !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
}

func TestConcurrentReserveOnlyOneWins(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	ledger := newTestLedger(conn)
	client := db.NewFromGorm(conn)
	item := seedItem(t, conn, 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = client.WithTx(ctx, func(tx *gorm.DB) error {
				return ledger.Reserve(ctx, tx, item.ID, 1)
			})
		}(i)
	}
	wg.Wait()

	successes, insufficient := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock):
			insufficient++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if successes != 1 || insufficient != 1 {
		t.Fatalf("expected one success and one rejection, got %d/%d", successes, insufficient)
	}
	if got := reload(t, conn, item.ID); got.ReservedQuantity != 1 {
		t.Fatalf("expected reserved 1, got %d", got.ReservedQuantity)
	}
}

func TestReserveEmitsStockLowOnceWhenCrossingThreshold(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	ledger := newTestLedger(conn)
	item := seedItem(t, conn, 10)

	for _, qty := range []int{4, 1, 1} {
		if err := conn.Transaction(func(tx *gorm.DB) error {
			return ledger.Reserve(ctx, tx, item.ID, qty)
		}); err != nil {
			t.Fatalf("reserve %d: %v", qty, err)
		}
	}

	var events []models.OutboxEvent
	if err := conn.Where("event_type = ?", enums.EventStockLow).Find(&events).Error; err != nil {
		t.Fatalf("load outbox: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one stock_low event, got %d", len(events))
	}
	if events[0].AggregateID != item.ID {
		t.Fatalf("unexpected aggregate id %s", events[0].AggregateID)
	}
}
