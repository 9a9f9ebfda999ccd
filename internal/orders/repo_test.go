package orders

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaleReservationsCountsOldUnassignedPendingOrders(t *testing.T) {
	f := newFixture(t, defaultOptions())
	repo := NewRepository(f.db)
	ctx := context.Background()
	stock := f.seedStock(t, 100)
	old := time.Now().UTC().Add(-48 * time.Hour)
	handler := f.handler.ID

	insert := func(createdAt time.Time, status enums.OrderStatus, assigned bool, lines ...models.OrderItem) {
		order := &models.Order{ID: uuid.New(), Status: status, IsAssigned: assigned, CreatedAt: createdAt}
		if assigned {
			order.StaffHandlerID = &handler
		}
		_, err := repo.CreateOrder(ctx, order)
		require.NoError(t, err)
		for _, l := range lines {
			l.OrderID = order.ID
			l.StockItemID = stock.ID
			l.PriceAtTime = decimal.NewFromInt(1)
			require.NoError(t, f.db.Omit("StockItem").Create(&l).Error)
		}
	}

	insert(old, enums.OrderStatusPending, false, models.OrderItem{Quantity: 3})
	insert(old, enums.OrderStatusPending, false, models.OrderItem{Quantity: 2})
	insert(old, enums.OrderStatusInProgress, true, models.OrderItem{Quantity: 7})
	insert(old, enums.OrderStatusCancelled, false, models.OrderItem{Quantity: 9})
	insert(time.Now().UTC(), enums.OrderStatusPending, false, models.OrderItem{Quantity: 11})

	summary, err := repo.StaleReservations(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Orders)
	assert.Equal(t, int64(5), summary.Units)
}

func TestStaleReservationsEmpty(t *testing.T) {
	f := newFixture(t, defaultOptions())
	summary, err := NewRepository(f.db).StaleReservations(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, summary.Orders)
	assert.Zero(t, summary.Units)
}

func TestFindOrderLoadsItemsInInsertOrder(t *testing.T) {
	f := newFixture(t, defaultOptions())
	a, b := f.seedStock(t, 10), f.seedStock(t, 10)
	created := f.createOrder(t, line(a, 1), line(b, 2))

	order, err := NewRepository(f.db).FindOrder(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, order.Items, 2)
	assert.Equal(t, a.ID, order.Items[0].StockItemID)
	require.NotNil(t, order.Items[1].StockItem)
	assert.Equal(t, b.Name, order.Items[1].StockItem.Name)
}
