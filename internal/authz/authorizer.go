package authz

import (
	"context"
	"fmt"

	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/google/uuid"
)

// Action names a guarded transition or query.
type Action string

const (
	ActionOrderCreate       Action = "order:create"
	ActionOrderView         Action = "order:view"
	ActionOrderEditItems    Action = "order:edit-items"
	ActionOrderAssign       Action = "order:assign"
	ActionOrderUnassign     Action = "order:unassign"
	ActionOrderCompleteItem Action = "order:complete-item"
	ActionOrderCancel       Action = "order:cancel"
	ActionOrderDelete       Action = "order:delete"
	ActionQueueView         Action = "queue:view"
	ActionStockManage       Action = "stock:manage"
	ActionStockView         Action = "stock:view"
)

// Principal is a resolved identity with its role memberships.
type Principal struct {
	ID        uuid.UUID `json:"id"`
	Superuser bool      `json:"superuser"`
	Active    bool      `json:"active"`
	Roles     []string  `json:"roles"`
}

// HasRole reports membership in the named role.
func (p Principal) HasRole(role string) bool {
	if role == "" {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// OrderResource is the slice of order state authorization decisions depend on.
// Assignee is only consulted for ActionOrderAssign.
type OrderResource struct {
	CreatorID *uuid.UUID
	HandlerID *uuid.UUID
	Assigned  bool
	Status    enums.OrderStatus
	Assignee  uuid.UUID
}

// Directory resolves principals by id.
type Directory interface {
	Lookup(ctx context.Context, id uuid.UUID) (Principal, error)
}

// RoleNames maps capabilities to the role strings stored by the identity provider.
type RoleNames struct {
	Fulfillment  string
	Manager      string
	StockManager string
}

// Authorizer answers capability questions for resolved principals. It holds no state
// beyond the configured role names and is safe for concurrent use.
type Authorizer struct {
	roles RoleNames
}

func NewAuthorizer(roles RoleNames) (*Authorizer, error) {
	if roles.Fulfillment == "" {
		return nil, fmt.Errorf("fulfillment role name required")
	}
	if roles.Manager == "" {
		return nil, fmt.Errorf("manager role name required")
	}
	if roles.StockManager == "" {
		return nil, fmt.Errorf("stock manager role name required")
	}
	return &Authorizer{roles: roles}, nil
}

// IsManager reports superuser or manager-level access over every order.
func (a *Authorizer) IsManager(p Principal) bool {
	return p.Active && (p.Superuser || p.HasRole(a.roles.Manager))
}

// CanHandle reports whether p may be recorded as an order's staff handler.
func (a *Authorizer) CanHandle(p Principal) bool {
	return p.Active && (p.Superuser || p.HasRole(a.roles.Fulfillment))
}

func (a *Authorizer) Can(p Principal, action Action, res OrderResource) bool {
	if !p.Active {
		return false
	}
	if p.Superuser {
		return true
	}

	manager := p.HasRole(a.roles.Manager)
	creator := res.CreatorID != nil && *res.CreatorID == p.ID
	handler := res.HandlerID != nil && *res.HandlerID == p.ID
	pending := res.Status == enums.OrderStatusPending

	switch action {
	case ActionOrderCreate, ActionStockView:
		return true
	case ActionOrderView:
		return manager || handler || creator
	case ActionOrderEditItems:
		return manager || (creator && pending && !res.Assigned)
	case ActionOrderAssign:
		return manager || (p.HasRole(a.roles.Fulfillment) && res.Assignee == p.ID)
	case ActionOrderUnassign, ActionOrderCompleteItem:
		return manager || handler
	case ActionOrderCancel:
		return manager || (creator && pending)
	case ActionOrderDelete:
		return manager
	case ActionQueueView:
		return manager || p.HasRole(a.roles.Fulfillment)
	case ActionStockManage:
		return p.HasRole(a.roles.StockManager)
	}
	return false
}

// Require converts a denied Can into a PERMISSION_DENIED error.
func (a *Authorizer) Require(p Principal, action Action, res OrderResource) error {
	if a.Can(p, action, res) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodePermissionDenied, fmt.Sprintf("not permitted to %s", action)).
		WithDetails(map[string]any{"action": string(action)})
}
