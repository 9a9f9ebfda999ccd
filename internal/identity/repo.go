package identity

import (
	"context"
	"errors"
	"sort"

	"github.com/angelmondragon/orderdesk-backend/internal/authz"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository reads principals owned by the identity provider. It never writes.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Lookup resolves a principal and its role memberships.
func (r *Repository) Lookup(ctx context.Context, id uuid.UUID) (authz.Principal, error) {
	var row models.Principal
	err := r.db.WithContext(ctx).
		Preload("Roles").
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return authz.Principal{}, pkgerrors.New(pkgerrors.CodeNotFound, "principal not found")
		}
		return authz.Principal{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load principal")
	}
	return toPrincipal(row), nil
}

func toPrincipal(row models.Principal) authz.Principal {
	roles := make([]string, 0, len(row.Roles))
	for _, role := range row.Roles {
		roles = append(roles, role.Role)
	}
	sort.Strings(roles)
	return authz.Principal{
		ID:        row.ID,
		Superuser: row.IsSuperuser,
		Active:    row.IsActive,
		Roles:     roles,
	}
}
