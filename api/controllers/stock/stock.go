package stock

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderdesk-backend/api/middleware"
	"github.com/angelmondragon/orderdesk-backend/api/responses"
	"github.com/angelmondragon/orderdesk-backend/api/validators"
	"github.com/angelmondragon/orderdesk-backend/internal/authz"
	internalstock "github.com/angelmondragon/orderdesk-backend/internal/stock"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
)

const (
	maxNameLength        = 200
	maxDescriptionLength = 4000
)

type createItemRequest struct {
	CategoryID        *uuid.UUID      `json:"category_id"`
	Name              string          `json:"name" validate:"required,max=200"`
	Description       *string         `json:"description"`
	OriginalPrice     decimal.Decimal `json:"original_price"`
	Discount          decimal.Decimal `json:"discount"`
	Quantity          int             `json:"quantity" validate:"gte=0"`
	LowStockThreshold *int            `json:"low_stock_threshold" validate:"omitempty,gte=0"`
	MinOrderQuantity  *int            `json:"min_order_quantity" validate:"omitempty,gte=1"`
	MaxOrderQuantity  *int            `json:"max_order_quantity" validate:"omitempty,gte=1"`
	IsActive          *bool           `json:"is_active"`
	IsFeatured        bool            `json:"is_featured"`
}

type updateItemRequest struct {
	CategoryID        *uuid.UUID       `json:"category_id"`
	ClearCategory     bool             `json:"clear_category"`
	Name              *string          `json:"name" validate:"omitempty,max=200"`
	Description       *string          `json:"description"`
	OriginalPrice     *decimal.Decimal `json:"original_price"`
	Discount          *decimal.Decimal `json:"discount"`
	LowStockThreshold *int             `json:"low_stock_threshold" validate:"omitempty,gte=0"`
	MinOrderQuantity  *int             `json:"min_order_quantity" validate:"omitempty,gte=1"`
	MaxOrderQuantity  *int             `json:"max_order_quantity" validate:"omitempty,gte=1"`
	ClearMaxOrder     bool             `json:"clear_max_order_quantity"`
	IsActive          *bool            `json:"is_active"`
	IsFeatured        *bool            `json:"is_featured"`
}

type adjustQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,gte=0"`
}

type createCategoryRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Description *string `json:"description"`
}

func CreateItem(svc internalstock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		var req createItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.CreateItem(r.Context(), actor, internalstock.CreateItemInput{
			CategoryID:        req.CategoryID,
			Name:              validators.SanitizeString(req.Name, maxNameLength),
			Description:       validators.SanitizeOptional(req.Description, maxDescriptionLength),
			OriginalPrice:     req.OriginalPrice,
			Discount:          req.Discount,
			Quantity:          req.Quantity,
			LowStockThreshold: req.LowStockThreshold,
			MinOrderQuantity:  req.MinOrderQuantity,
			MaxOrderQuantity:  req.MaxOrderQuantity,
			IsActive:          req.IsActive,
			IsFeatured:        req.IsFeatured,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

func UpdateItem(svc internalstock.Service, logg *logger.Logger) http.HandlerFunc {
	return withItem(logg, func(w http.ResponseWriter, r *http.Request, actor authz.Principal, itemID uuid.UUID) {
		var req updateItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := internalstock.UpdateItemInput{
			CategoryID:        req.CategoryID,
			ClearCategory:     req.ClearCategory,
			Description:       req.Description,
			OriginalPrice:     req.OriginalPrice,
			Discount:          req.Discount,
			LowStockThreshold: req.LowStockThreshold,
			MinOrderQuantity:  req.MinOrderQuantity,
			MaxOrderQuantity:  req.MaxOrderQuantity,
			ClearMaxOrder:     req.ClearMaxOrder,
			IsActive:          req.IsActive,
			IsFeatured:        req.IsFeatured,
		}
		if req.Name != nil {
			name := validators.SanitizeString(*req.Name, maxNameLength)
			input.Name = &name
		}
		item, err := svc.UpdateItem(r.Context(), actor, itemID, input)
		writeItem(w, r, logg, item, err)
	})
}

// AdjustQuantity sets the on-hand count. It cannot drop below what open
// orders have reserved.
func AdjustQuantity(svc internalstock.Service, logg *logger.Logger) http.HandlerFunc {
	return withItem(logg, func(w http.ResponseWriter, r *http.Request, actor authz.Principal, itemID uuid.UUID) {
		var req adjustQuantityRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.AdjustQuantity(r.Context(), actor, itemID, *req.Quantity)
		writeItem(w, r, logg, item, err)
	})
}

func DeleteItem(svc internalstock.Service, logg *logger.Logger) http.HandlerFunc {
	return withItem(logg, func(w http.ResponseWriter, r *http.Request, actor authz.Principal, itemID uuid.UUID) {
		if err := svc.DeleteItem(r.Context(), actor, itemID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	})
}

func GetItem(svc internalstock.Service, logg *logger.Logger) http.HandlerFunc {
	return withItem(logg, func(w http.ResponseWriter, r *http.Request, actor authz.Principal, itemID uuid.UUID) {
		item, err := svc.GetItem(r.Context(), actor, itemID)
		writeItem(w, r, logg, item, err)
	})
}

// ListItems supports active_only, low_stock, featured and category_id filters.
func ListItems(svc internalstock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		input, err := parseListItems(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListItems(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func CreateCategory(svc internalstock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		var req createCategoryRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		category, err := svc.CreateCategory(r.Context(), actor, internalstock.CreateCategoryInput{
			Name:        validators.SanitizeString(req.Name, maxNameLength),
			Description: validators.SanitizeOptional(req.Description, maxDescriptionLength),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, category)
	}
}

func ListCategories(svc internalstock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		categories, err := svc.ListCategories(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, categories)
	}
}

func parseListItems(r *http.Request) (internalstock.ListItemsInput, error) {
	params, err := validators.ParsePagination(r)
	if err != nil {
		return internalstock.ListItemsInput{}, err
	}
	input := internalstock.ListItemsInput{Params: params}
	flags := map[string]*bool{
		"active_only": &input.Filters.ActiveOnly,
		"low_stock":   &input.Filters.LowStockOnly,
		"featured":    &input.Filters.FeaturedOnly,
	}
	for key, dest := range flags {
		value, err := validators.ParseQueryBool(r, key)
		if err != nil {
			return input, err
		}
		if value != nil {
			*dest = *value
		}
	}
	if input.Filters.CategoryID, err = validators.ParseQueryUUID(r, "category_id"); err != nil {
		return input, err
	}
	return input, nil
}

type itemHandler func(w http.ResponseWriter, r *http.Request, actor authz.Principal, itemID uuid.UUID)

func withItem(logg *logger.Logger, fn itemHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		fn(w, r, actor, itemID)
	}
}

func requirePrincipal(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (authz.Principal, bool) {
	actor, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
		return authz.Principal{}, false
	}
	return actor, true
}

func writeItem(w http.ResponseWriter, r *http.Request, logg *logger.Logger, item *internalstock.ItemDTO, err error) {
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, item)
}
