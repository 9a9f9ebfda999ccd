package orders

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk-backend/api/middleware"
	"github.com/angelmondragon/orderdesk-backend/api/responses"
	"github.com/angelmondragon/orderdesk-backend/api/validators"
	"github.com/angelmondragon/orderdesk-backend/internal/authz"
	internalorders "github.com/angelmondragon/orderdesk-backend/internal/orders"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
)

const maxNotesLength = 2000

type itemRequest struct {
	StockItemID uuid.UUID `json:"stock_item_id" validate:"required"`
	Quantity    int       `json:"quantity" validate:"gt=0"`
}

type createOrderRequest struct {
	Notes *string       `json:"notes"`
	Items []itemRequest `json:"items" validate:"required,min=1,dive"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"gt=0"`
}

type assignRequest struct {
	StaffID uuid.UUID `json:"staff_id" validate:"required"`
}

type bulkDeleteRequest struct {
	ItemIDs []uuid.UUID `json:"item_ids" validate:"required,min=1,max=500"`
}

// Create places a new order for the caller.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := internalorders.CreateOrderInput{
			Notes: validators.SanitizeOptional(req.Notes, maxNotesLength),
			Items: make([]internalorders.ItemInput, 0, len(req.Items)),
		}
		for _, item := range req.Items {
			input.Items = append(input.Items, internalorders.ItemInput{StockItemID: item.StockItemID, Quantity: item.Quantity})
		}
		detail, err := svc.CreateOrder(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, detail)
	}
}

// List returns the orders visible to the caller, newest first.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		input, err := parseListInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListOrders(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Queue lists pending unassigned orders for fulfillment staff.
func Queue(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListQueue(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return withOrder(logg, func(w http.ResponseWriter, r *http.Request, actor authz.Principal, orderID uuid.UUID) {
		detail, err := svc.GetOrder(r.Context(), actor, orderID)
		writeDetail(w, r, logg, detail, err)
	})
}

func Delete(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return withOrder(logg, func(w http.ResponseWriter, r *http.Request, actor authz.Principal, orderID uuid.UUID) {
		if err := svc.DeleteOrder(r.Context(), actor, orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	})
}

func AddItem(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return withOrder(logg, func(w http.ResponseWriter, r *http.Request, actor authz.Principal, orderID uuid.UUID) {
		var req itemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.AddItem(r.Context(), actor, orderID, internalorders.ItemInput{
			StockItemID: req.StockItemID,
			Quantity:    req.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, detail)
	})
}

func UpdateItem(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return withOrderItem(logg, func(w http.ResponseWriter, r *http.Request, actor authz.Principal, orderID, itemID uuid.UUID) {
		var req updateQuantityRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.UpdateItemQuantity(r.Context(), actor, orderID, itemID, req.Quantity)
		writeDetail(w, r, logg, detail, err)
	})
}

func RemoveItem(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return withOrderItem(logg, func(w http.ResponseWriter, r *http.Request, actor authz.Principal, orderID, itemID uuid.UUID) {
		detail, err := svc.RemoveItem(r.Context(), actor, orderID, itemID)
		writeDetail(w, r, logg, detail, err)
	})
}

func CompleteItem(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return withOrderItem(logg, func(w http.ResponseWriter, r *http.Request, actor authz.Principal, orderID, itemID uuid.UUID) {
		detail, err := svc.CompleteItem(r.Context(), actor, orderID, itemID)
		writeDetail(w, r, logg, detail, err)
	})
}

func Complete(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return withOrder(logg, func(w http.ResponseWriter, r *http.Request, actor authz.Principal, orderID uuid.UUID) {
		detail, err := svc.CompleteOrder(r.Context(), actor, orderID)
		writeDetail(w, r, logg, detail, err)
	})
}

func Assign(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return withOrder(logg, func(w http.ResponseWriter, r *http.Request, actor authz.Principal, orderID uuid.UUID) {
		var req assignRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.Assign(r.Context(), actor, orderID, req.StaffID)
		writeDetail(w, r, logg, detail, err)
	})
}

func Unassign(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return withOrder(logg, func(w http.ResponseWriter, r *http.Request, actor authz.Principal, orderID uuid.UUID) {
		detail, err := svc.Unassign(r.Context(), actor, orderID)
		writeDetail(w, r, logg, detail, err)
	})
}

func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return withOrder(logg, func(w http.ResponseWriter, r *http.Request, actor authz.Principal, orderID uuid.UUID) {
		detail, err := svc.CancelOrder(r.Context(), actor, orderID)
		writeDetail(w, r, logg, detail, err)
	})
}

// BulkDeleteItems removes many order items at once. Orders that would be left
// empty keep their items and are reported back under rejected.
func BulkDeleteItems(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		var req bulkDeleteRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.BulkRemoveItems(r.Context(), actor, req.ItemIDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func parseListInput(r *http.Request) (internalorders.ListOrdersInput, error) {
	params, err := validators.ParsePagination(r)
	if err != nil {
		return internalorders.ListOrdersInput{}, err
	}
	input := internalorders.ListOrdersInput{Params: params}

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
				WithDetails(map[string]any{"field": "status"})
		}
		input.Status = &status
	}
	if input.HandlerID, err = validators.ParseQueryUUID(r, "handler_id"); err != nil {
		return input, err
	}
	if input.Assigned, err = validators.ParseQueryBool(r, "assigned"); err != nil {
		return input, err
	}
	return input, nil
}

type orderHandler func(w http.ResponseWriter, r *http.Request, actor authz.Principal, orderID uuid.UUID)

type orderItemHandler func(w http.ResponseWriter, r *http.Request, actor authz.Principal, orderID, itemID uuid.UUID)

func withOrder(logg *logger.Logger, fn orderHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			r = r.WithContext(logg.WithOrderID(r.Context(), orderID.String()))
		}
		fn(w, r, actor, orderID)
	}
}

func withOrderItem(logg *logger.Logger, fn orderItemHandler) http.HandlerFunc {
	return withOrder(logg, func(w http.ResponseWriter, r *http.Request, actor authz.Principal, orderID uuid.UUID) {
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		fn(w, r, actor, orderID, itemID)
	})
}

func requirePrincipal(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (authz.Principal, bool) {
	actor, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
		return authz.Principal{}, false
	}
	return actor, true
}

func writeDetail(w http.ResponseWriter, r *http.Request, logg *logger.Logger, detail *internalorders.OrderDetail, err error) {
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, detail)
}
