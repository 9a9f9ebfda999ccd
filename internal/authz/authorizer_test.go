package authz

import (
	"testing"

	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/google/uuid"
)

const (
	roleHandler = "ORDERS_HANDLER"
	roleManager = "ORDERS_MANAGER"
	roleStock   = "STOCK_MANAGER"
)

func newTestAuthorizer(t *testing.T) *Authorizer {
	t.Helper()
	a, err := NewAuthorizer(RoleNames{Fulfillment: roleHandler, Manager: roleManager, StockManager: roleStock})
	if err != nil {
		t.Fatalf("new authorizer: %v", err)
	}
	return a
}

func principal(roles ...string) Principal {
	return Principal{ID: uuid.New(), Active: true, Roles: roles}
}

func TestCanOrderActions(t *testing.T) {
	a := newTestAuthorizer(t)

	creator := principal()
	handler := principal(roleHandler)
	otherHandler := principal(roleHandler)
	manager := principal(roleManager)
	stranger := principal()
	super := Principal{ID: uuid.New(), Active: true, Superuser: true}

	pendingOwned := OrderResource{CreatorID: &creator.ID, Status: enums.OrderStatusPending}
	assigned := OrderResource{
		CreatorID: &creator.ID,
		HandlerID: &handler.ID,
		Assigned:  true,
		Status:    enums.OrderStatusInProgress,
	}

	cases := []struct {
		name   string
		p      Principal
		action Action
		res    OrderResource
		want   bool
	}{
		{"creator views own order", creator, ActionOrderView, pendingOwned, true},
		{"stranger cannot view", stranger, ActionOrderView, pendingOwned, false},
		{"handler views assigned order", handler, ActionOrderView, assigned, true},
		{"manager views anything", manager, ActionOrderView, pendingOwned, true},
		{"creator edits pending unassigned", creator, ActionOrderEditItems, pendingOwned, true},
		{"creator cannot edit once assigned", creator, ActionOrderEditItems, assigned, false},
		{"handler completes item", handler, ActionOrderCompleteItem, assigned, true},
		{"other handler cannot complete", otherHandler, ActionOrderCompleteItem, assigned, false},
		{"creator cannot complete", creator, ActionOrderCompleteItem, assigned, false},
		{"manager completes item", manager, ActionOrderCompleteItem, assigned, true},
		{"handler unassigns self", handler, ActionOrderUnassign, assigned, true},
		{"other handler cannot unassign", otherHandler, ActionOrderUnassign, assigned, false},
		{"creator cancels pending", creator, ActionOrderCancel, pendingOwned, true},
		{"creator cannot cancel in progress", creator, ActionOrderCancel, assigned, false},
		{"only manager deletes", creator, ActionOrderDelete, pendingOwned, false},
		{"manager deletes", manager, ActionOrderDelete, pendingOwned, true},
		{"superuser does anything", super, ActionOrderDelete, assigned, true},
		{"handler sees queue", handler, ActionQueueView, OrderResource{}, true},
		{"stranger cannot see queue", stranger, ActionQueueView, OrderResource{}, false},
		{"anyone creates orders", stranger, ActionOrderCreate, OrderResource{}, true},
		{"stock manager manages stock", principal(roleStock), ActionStockManage, OrderResource{}, true},
		{"order manager cannot manage stock", manager, ActionStockManage, OrderResource{}, false},
		{"anyone views stock", stranger, ActionStockView, OrderResource{}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := a.Can(tc.p, tc.action, tc.res); got != tc.want {
				t.Fatalf("Can(%s) = %v, want %v", tc.action, got, tc.want)
			}
		})
	}
}

func TestCanAssignSelfOnly(t *testing.T) {
	a := newTestAuthorizer(t)
	handler := principal(roleHandler)
	order := OrderResource{Status: enums.OrderStatusPending}

	order.Assignee = handler.ID
	if !a.Can(handler, ActionOrderAssign, order) {
		t.Fatalf("handler should claim an order for themself")
	}
	order.Assignee = uuid.New()
	if a.Can(handler, ActionOrderAssign, order) {
		t.Fatalf("handler must not assign someone else")
	}
	if !a.Can(principal(roleManager), ActionOrderAssign, order) {
		t.Fatalf("manager should assign anyone")
	}
}

func TestInactivePrincipalDeniedEverything(t *testing.T) {
	a := newTestAuthorizer(t)
	inactive := Principal{ID: uuid.New(), Superuser: true, Roles: []string{roleManager}}
	for _, action := range []Action{ActionOrderCreate, ActionOrderView, ActionStockView, ActionOrderDelete} {
		if a.Can(inactive, action, OrderResource{}) {
			t.Fatalf("inactive principal allowed %s", action)
		}
	}
	if a.CanHandle(inactive) || a.IsManager(inactive) {
		t.Fatalf("inactive principal should not handle or manage")
	}
}

func TestCanHandle(t *testing.T) {
	a := newTestAuthorizer(t)
	if !a.CanHandle(principal(roleHandler)) {
		t.Fatalf("fulfillment role should handle")
	}
	if !a.CanHandle(Principal{ID: uuid.New(), Active: true, Superuser: true}) {
		t.Fatalf("superuser should handle")
	}
	if a.CanHandle(principal(roleManager)) {
		t.Fatalf("manager without fulfillment role should not be an assignee")
	}
}

func TestRequireReturnsPermissionDenied(t *testing.T) {
	a := newTestAuthorizer(t)
	err := a.Require(principal(), ActionOrderDelete, OrderResource{})
	if !pkgerrors.HasCode(err, pkgerrors.CodePermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if err := a.Require(principal(roleManager), ActionOrderDelete, OrderResource{}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestNewAuthorizerRequiresRoles(t *testing.T) {
	if _, err := NewAuthorizer(RoleNames{Fulfillment: roleHandler}); err == nil {
		t.Fatalf("expected error for missing roles")
	}
}
