package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openModelsDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:models_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Discard,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&StockCategory{}, &StockItem{}, &Principal{}, &PrincipalRole{}))
	return conn
}

func TestCreateKeepsExplicitZeroesOnDefaultedColumns(t *testing.T) {
	conn := openModelsDB(t)

	item := &StockItem{Name: "hidden", Quantity: 3, MinOrderQuantity: 1}
	require.NoError(t, conn.Create(item).Error)
	assert.False(t, item.IsActive, "struct keeps the caller's value")
	assert.Zero(t, item.LowStockThreshold)

	var storedItem StockItem
	require.NoError(t, conn.First(&storedItem, "id = ?", item.ID).Error)
	assert.False(t, storedItem.IsActive)
	assert.Zero(t, storedItem.LowStockThreshold)

	category := &StockCategory{Name: "retired"}
	require.NoError(t, conn.Create(category).Error)
	var storedCategory StockCategory
	require.NoError(t, conn.First(&storedCategory, "id = ?", category.ID).Error)
	assert.False(t, storedCategory.IsActive)

	principal := &Principal{ID: uuid.New(), Username: "gone"}
	require.NoError(t, conn.Create(principal).Error)
	var storedPrincipal Principal
	require.NoError(t, conn.First(&storedPrincipal, "id = ?", principal.ID).Error)
	assert.False(t, storedPrincipal.IsActive)
}

func TestCreateLeavesNonZeroValuesAlone(t *testing.T) {
	conn := openModelsDB(t)

	item := &StockItem{Name: "shown", Quantity: 3, MinOrderQuantity: 1, LowStockThreshold: 2, IsActive: true}
	require.NoError(t, conn.Create(item).Error)

	var stored StockItem
	require.NoError(t, conn.First(&stored, "id = ?", item.ID).Error)
	assert.True(t, stored.IsActive)
	assert.Equal(t, 2, stored.LowStockThreshold)
}

func TestCreateInTransactionRollsBackZeroRestore(t *testing.T) {
	conn := openModelsDB(t)
	id := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&StockItem{ID: id, Name: "draft", MinOrderQuantity: 1}).Error; err != nil {
			return err
		}
		return gorm.ErrInvalidTransaction
	})
	require.ErrorIs(t, err, gorm.ErrInvalidTransaction)

	var count int64
	require.NoError(t, conn.Model(&StockItem{}).Where("id = ?", id).Count(&count).Error)
	assert.Zero(t, count)
}
