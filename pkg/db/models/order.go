package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Order is a customer request for stock items plus its fulfillment state.
type Order struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber    int64             `gorm:"column:order_number;->;not null;default:0"`
	CreatorID      *uuid.UUID        `gorm:"column:creator_id;type:uuid"`
	StaffHandlerID *uuid.UUID        `gorm:"column:staff_handler_id;type:uuid"`
	Status         enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	IsAssigned     bool              `gorm:"column:is_assigned;not null;default:false"`
	AssignedAt     *time.Time        `gorm:"column:assigned_at"`
	Notes          *string           `gorm:"column:notes"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// ShortID is the first eight hex characters of the id, upper-cased.
func (o Order) ShortID() string {
	return strings.ToUpper(strings.ReplaceAll(o.ID.String(), "-", "")[:8])
}

// DisplayID renders the identifier shown to staff for the given strategy.
func (o Order) DisplayID(strategy enums.OrderIDStrategy) string {
	if strategy == enums.OrderIDStrategySequential && o.OrderNumber > 0 {
		return fmt.Sprintf("#%d", o.OrderNumber)
	}
	return o.ShortID()
}

func (o Order) IsAvailableForAssignment() bool {
	return !o.IsAssigned && o.Status == enums.OrderStatusPending
}
