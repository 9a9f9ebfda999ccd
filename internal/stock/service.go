package stock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/orderdesk-backend/internal/authz"
	"github.com/angelmondragon/orderdesk-backend/pkg/db"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
	"github.com/angelmondragon/orderdesk-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service exposes stock catalog management and browsing.
type Service interface {
	CreateItem(ctx context.Context, actor authz.Principal, input CreateItemInput) (*ItemDTO, error)
	UpdateItem(ctx context.Context, actor authz.Principal, itemID uuid.UUID, input UpdateItemInput) (*ItemDTO, error)
	AdjustQuantity(ctx context.Context, actor authz.Principal, itemID uuid.UUID, quantity int) (*ItemDTO, error)
	DeleteItem(ctx context.Context, actor authz.Principal, itemID uuid.UUID) error
	GetItem(ctx context.Context, actor authz.Principal, itemID uuid.UUID) (*ItemDTO, error)
	ListItems(ctx context.Context, actor authz.Principal, input ListItemsInput) (*ItemList, error)
	CreateCategory(ctx context.Context, actor authz.Principal, input CreateCategoryInput) (*CategoryDTO, error)
	ListCategories(ctx context.Context, actor authz.Principal) ([]CategoryDTO, error)
}

// CreateItemInput holds the validated payload to create a stock item.
type CreateItemInput struct {
	CategoryID        *uuid.UUID
	Name              string
	Description       *string
	OriginalPrice     decimal.Decimal
	Discount          decimal.Decimal
	Quantity          int
	LowStockThreshold *int
	MinOrderQuantity  *int
	MaxOrderQuantity  *int
	IsActive          *bool
	IsFeatured        bool
}

// UpdateItemInput holds optional mutation values. Quantity moves through AdjustQuantity.
type UpdateItemInput struct {
	CategoryID        *uuid.UUID
	ClearCategory     bool
	Name              *string
	Description       *string
	OriginalPrice     *decimal.Decimal
	Discount          *decimal.Decimal
	LowStockThreshold *int
	MinOrderQuantity  *int
	MaxOrderQuantity  *int
	ClearMaxOrder     bool
	IsActive          *bool
	IsFeatured        *bool
}

type ListItemsInput struct {
	Filters ItemFilters
	Params  pagination.Params
}

type CreateCategoryInput struct {
	Name        string
	Description *string
}

type permissionChecker interface {
	Can(p authz.Principal, action authz.Action, res authz.OrderResource) bool
	Require(p authz.Principal, action authz.Action, res authz.OrderResource) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo  Repository
	tx    txRunner
	authz permissionChecker
	logg  *logger.Logger
}

// NewService constructs the stock catalog service.
func NewService(repo Repository, tx txRunner, authorizer permissionChecker, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if authorizer == nil {
		return nil, fmt.Errorf("authorizer required")
	}
	return &service{repo: repo, tx: tx, authz: authorizer, logg: logg}, nil
}

func (s *service) CreateItem(ctx context.Context, actor authz.Principal, input CreateItemInput) (*ItemDTO, error) {
	if err := s.authz.Require(actor, authz.ActionStockManage, authz.OrderResource{}); err != nil {
		return nil, err
	}

	item := &models.StockItem{
		CategoryID:        input.CategoryID,
		Name:              strings.TrimSpace(input.Name),
		Description:       input.Description,
		OriginalPrice:     input.OriginalPrice,
		Discount:          input.Discount,
		Quantity:          input.Quantity,
		LowStockThreshold: defaultLowStockThreshold,
		MinOrderQuantity:  1,
		MaxOrderQuantity:  input.MaxOrderQuantity,
		IsActive:          true,
		IsFeatured:        input.IsFeatured,
	}
	if input.LowStockThreshold != nil {
		item.LowStockThreshold = *input.LowStockThreshold
	}
	if input.MinOrderQuantity != nil {
		item.MinOrderQuantity = *input.MinOrderQuantity
	}
	if input.IsActive != nil {
		item.IsActive = *input.IsActive
	}
	if err := validateItem(item); err != nil {
		return nil, err
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := s.ensureCategory(ctx, txRepo, item.CategoryID); err != nil {
			return err
		}
		if _, err := txRepo.CreateItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert stock item")
		}
		return nil
	}); err != nil {
		return nil, asServiceError(err, "create stock item")
	}

	s.logInfo(ctx, item.ID, "stock item created")
	dto := NewItemDTO(item)
	return &dto, nil
}

func (s *service) UpdateItem(ctx context.Context, actor authz.Principal, itemID uuid.UUID, input UpdateItemInput) (*ItemDTO, error) {
	if err := s.authz.Require(actor, authz.ActionStockManage, authz.OrderResource{}); err != nil {
		return nil, err
	}

	var updated *models.StockItem
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		item, err := lockItem(ctx, txRepo, itemID)
		if err != nil {
			return err
		}
		applyItemUpdate(item, input)
		if err := validateItem(item); err != nil {
			return err
		}
		if input.CategoryID != nil {
			if err := s.ensureCategory(ctx, txRepo, item.CategoryID); err != nil {
				return err
			}
		}
		if err := txRepo.SaveItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update stock item")
		}
		updated = item
		return nil
	}); err != nil {
		return nil, asServiceError(err, "update stock item")
	}

	s.logInfo(ctx, itemID, "stock item updated")
	dto := NewItemDTO(updated)
	return &dto, nil
}

// AdjustQuantity sets the on-hand count. The new count may not drop below the
// units currently reserved by open orders.
func (s *service) AdjustQuantity(ctx context.Context, actor authz.Principal, itemID uuid.UUID, quantity int) (*ItemDTO, error) {
	if err := s.authz.Require(actor, authz.ActionStockManage, authz.OrderResource{}); err != nil {
		return nil, err
	}
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}

	var adjusted *models.StockItem
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		item, err := lockItem(ctx, txRepo, itemID)
		if err != nil {
			return err
		}
		if quantity < item.ReservedQuantity {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "quantity cannot drop below reserved units").
				WithDetails(map[string]any{
					"reserved_quantity": item.ReservedQuantity,
					"requested":         quantity,
				})
		}
		if err := txRepo.UpdateItemQuantity(ctx, itemID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update stock quantity")
		}
		item.Quantity = quantity
		adjusted = item
		return nil
	}); err != nil {
		return nil, asServiceError(err, "adjust stock quantity")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"stock_item_id": itemID.String(), "quantity": quantity})
		s.logg.Info(logCtx, "stock quantity adjusted")
	}
	dto := NewItemDTO(adjusted)
	return &dto, nil
}

// DeleteItem removes a stock item that no order line references.
func (s *service) DeleteItem(ctx context.Context, actor authz.Principal, itemID uuid.UUID) error {
	if err := s.authz.Require(actor, authz.ActionStockManage, authz.OrderResource{}); err != nil {
		return err
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := lockItem(ctx, txRepo, itemID); err != nil {
			return err
		}
		refs, err := txRepo.CountOrderReferences(ctx, itemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: count order references")
		}
		if refs > 0 {
			return referencedConflict(itemID, refs)
		}
		if err := txRepo.DeleteItem(ctx, itemID); err != nil {
			if db.IsForeignKeyViolation(err) {
				return referencedConflict(itemID, refs)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete stock item")
		}
		return nil
	}); err != nil {
		return asServiceError(err, "delete stock item")
	}

	s.logInfo(ctx, itemID, "stock item deleted")
	return nil
}

func (s *service) GetItem(ctx context.Context, actor authz.Principal, itemID uuid.UUID) (*ItemDTO, error) {
	if err := s.authz.Require(actor, authz.ActionStockView, authz.OrderResource{}); err != nil {
		return nil, err
	}
	item, err := s.repo.FindItemByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock item")
	}
	if !item.IsActive && !s.canManage(actor) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock item not found")
	}
	dto := NewItemDTO(item)
	return &dto, nil
}

// ListItems pages through stock newest first. Principals without stock management
// only ever see active items.
func (s *service) ListItems(ctx context.Context, actor authz.Principal, input ListItemsInput) (*ItemList, error) {
	if err := s.authz.Require(actor, authz.ActionStockView, authz.OrderResource{}); err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(input.Params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	filters := input.Filters
	if !s.canManage(actor) {
		filters.ActiveOnly = true
	}

	rows, err := s.repo.ListItems(ctx, filters, cursor, input.Params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock items")
	}
	page := pagination.Trim(rows, input.Params.Limit, func(item models.StockItem) pagination.Cursor {
		return pagination.Cursor{CreatedAt: item.CreatedAt, ID: item.ID}
	})

	items := make([]ItemDTO, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, NewItemDTO(&page.Items[i]))
	}
	return &ItemList{Items: items, NextCursor: page.NextCursor}, nil
}

func (s *service) CreateCategory(ctx context.Context, actor authz.Principal, input CreateCategoryInput) (*CategoryDTO, error) {
	if err := s.authz.Require(actor, authz.ActionStockManage, authz.OrderResource{}); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name is required")
	}

	category := &models.StockCategory{Name: name, Description: input.Description, IsActive: true}
	if _, err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert stock category")
	}
	dto := NewCategoryDTO(category)
	return &dto, nil
}

func (s *service) ListCategories(ctx context.Context, actor authz.Principal) ([]CategoryDTO, error) {
	if err := s.authz.Require(actor, authz.ActionStockView, authz.OrderResource{}); err != nil {
		return nil, err
	}
	categories, err := s.repo.ListCategories(ctx, !s.canManage(actor))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock categories")
	}
	out := make([]CategoryDTO, 0, len(categories))
	for i := range categories {
		out = append(out, NewCategoryDTO(&categories[i]))
	}
	return out, nil
}

func (s *service) canManage(actor authz.Principal) bool {
	return s.authz.Can(actor, authz.ActionStockManage, authz.OrderResource{})
}

func (s *service) ensureCategory(ctx context.Context, repo Repository, categoryID *uuid.UUID) error {
	if categoryID == nil {
		return nil
	}
	if _, err := repo.FindCategoryByID(ctx, *categoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, "category not found").
				WithDetails(map[string]any{"category_id": categoryID.String()})
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock category")
	}
	return nil
}

func (s *service) logInfo(ctx context.Context, itemID uuid.UUID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithField(ctx, "stock_item_id", itemID.String()), msg)
}

const defaultLowStockThreshold = 5

func lockItem(ctx context.Context, repo Repository, itemID uuid.UUID) (*models.StockItem, error) {
	item, err := repo.LockItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock item")
	}
	return item, nil
}

func applyItemUpdate(item *models.StockItem, input UpdateItemInput) {
	if input.ClearCategory {
		item.CategoryID = nil
	} else if input.CategoryID != nil {
		id := *input.CategoryID
		item.CategoryID = &id
	}
	if input.Name != nil {
		item.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		item.Description = input.Description
	}
	if input.OriginalPrice != nil {
		item.OriginalPrice = *input.OriginalPrice
	}
	if input.Discount != nil {
		item.Discount = *input.Discount
	}
	if input.LowStockThreshold != nil {
		item.LowStockThreshold = *input.LowStockThreshold
	}
	if input.MinOrderQuantity != nil {
		item.MinOrderQuantity = *input.MinOrderQuantity
	}
	if input.ClearMaxOrder {
		item.MaxOrderQuantity = nil
	} else if input.MaxOrderQuantity != nil {
		limit := *input.MaxOrderQuantity
		item.MaxOrderQuantity = &limit
	}
	if input.IsActive != nil {
		item.IsActive = *input.IsActive
	}
	if input.IsFeatured != nil {
		item.IsFeatured = *input.IsFeatured
	}
}

func validateItem(item *models.StockItem) error {
	switch {
	case item.Name == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	case item.OriginalPrice.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "original_price cannot be negative")
	case item.Discount.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "discount cannot be negative")
	case item.Discount.GreaterThan(item.OriginalPrice):
		return pkgerrors.New(pkgerrors.CodeValidation, "discount cannot exceed original_price")
	case item.LowStockThreshold < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "low_stock_threshold cannot be negative")
	case item.MinOrderQuantity < 1:
		return pkgerrors.New(pkgerrors.CodeValidation, "min_order_quantity must be at least 1")
	case item.MaxOrderQuantity != nil && *item.MaxOrderQuantity < item.MinOrderQuantity:
		return pkgerrors.New(pkgerrors.CodeValidation, "max_order_quantity cannot be below min_order_quantity")
	}
	return nil
}

func referencedConflict(itemID uuid.UUID, refs int64) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "stock item is referenced by orders").
		WithDetails(map[string]any{"stock_item_id": itemID.String(), "order_items": refs})
}

func asServiceError(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
