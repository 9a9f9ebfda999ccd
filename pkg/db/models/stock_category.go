package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockCategory groups stock items for browsing and filtering.
type StockCategory struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	Description *string   `gorm:"column:description"`
	IsActive    bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`

	zeroes pendingZeroes
}

func (c *StockCategory) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.zeroes.note("is_active", !c.IsActive, false, func() { c.IsActive = false })
	return nil
}

func (c *StockCategory) AfterCreate(tx *gorm.DB) error {
	return c.zeroes.restore(tx, c)
}
