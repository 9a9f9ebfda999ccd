package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Principal mirrors the identity provider's user row. The service never writes it.
type Principal struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Username    string    `gorm:"column:username;not null"`
	IsSuperuser bool      `gorm:"column:is_superuser;not null;default:false"`
	IsActive    bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`

	Roles []PrincipalRole `gorm:"foreignKey:PrincipalID"`

	zeroes pendingZeroes
}

// Rows are seeded by the identity provider and by tests; an inactive seed
// must stay inactive.
func (p *Principal) BeforeCreate(*gorm.DB) error {
	p.zeroes.note("is_active", !p.IsActive, false, func() { p.IsActive = false })
	return nil
}

func (p *Principal) AfterCreate(tx *gorm.DB) error {
	return p.zeroes.restore(tx, p)
}

// PrincipalRole grants a named role to a principal.
type PrincipalRole struct {
	PrincipalID uuid.UUID `gorm:"column:principal_id;type:uuid;primaryKey"`
	Role        string    `gorm:"column:role;primaryKey"`
}
