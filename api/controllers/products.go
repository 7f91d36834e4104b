package controllers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storepos-backend/api/responses"
	"github.com/angelmondragon/storepos-backend/api/validators"
	"github.com/angelmondragon/storepos-backend/internal/ledger"
	product "github.com/angelmondragon/storepos-backend/internal/products"
	"github.com/angelmondragon/storepos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storepos-backend/pkg/errors"
	"github.com/angelmondragon/storepos-backend/pkg/logger"
)

const (
	defaultHistoryLimit  = 50
	defaultLowStockLimit = 100
)

// ListProducts serves the catalog with optional category, search and
// include_inactive filters.
func ListProducts(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		includeInactive, err := validators.ParseQueryBool(r, "include_inactive")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := product.ListProductsInput{
			Search:          validators.SanitizeString(r.URL.Query().Get("search"), 100),
			IncludeInactive: includeInactive,
			Pagination:      page,
		}
		if category := validators.SanitizeString(r.URL.Query().Get("category"), 100); category != "" {
			input.Category = &category
		}

		result, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, result.Products, result.Total, result.Limit, result.Offset)
	}
}

func GetProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		id, err := validators.PathID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// GetProductByBarcode resolves a scanned barcode to its active product.
func GetProductByBarcode(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		dto, err := svc.GetByBarcode(r.Context(), validators.SanitizeString(chiParam(r, "barcode"), 64))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func ListLowStockProducts(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", defaultLowStockLimit, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListLowStock(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

type createProductRequest struct {
	Name          string           `json:"name" validate:"required,max=200"`
	Description   *string          `json:"description,omitempty"`
	Category      *string          `json:"category,omitempty" validate:"omitempty,max=100"`
	Barcode       *string          `json:"barcode,omitempty" validate:"omitempty,max=64"`
	Price         decimal.Decimal  `json:"price" validate:"money"`
	CostPrice     *decimal.Decimal `json:"cost_price,omitempty" validate:"omitempty,money"`
	StockQuantity int              `json:"stock_quantity" validate:"gte=0"`
	ReorderLevel  *int             `json:"reorder_level,omitempty" validate:"omitempty,gte=0"`
}

func (r createProductRequest) toInput() product.CreateProductInput {
	input := product.CreateProductInput{
		Name:          strings.TrimSpace(r.Name),
		Description:   r.Description,
		Category:      r.Category,
		Barcode:       r.Barcode,
		Price:         r.Price,
		StockQuantity: r.StockQuantity,
		ReorderLevel:  r.ReorderLevel,
	}
	if r.CostPrice != nil {
		input.CostPrice = *r.CostPrice
	}
	return input
}

func CreateProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.Create(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

// updateProductRequest carries no stock field; stock only moves through
// stock adjustments and sales.
type updateProductRequest struct {
	Name         *string          `json:"name,omitempty" validate:"omitempty,max=200"`
	Description  *string          `json:"description,omitempty"`
	Category     *string          `json:"category,omitempty" validate:"omitempty,max=100"`
	Barcode      *string          `json:"barcode,omitempty" validate:"omitempty,max=64"`
	Price        *decimal.Decimal `json:"price,omitempty" validate:"omitempty,money"`
	CostPrice    *decimal.Decimal `json:"cost_price,omitempty" validate:"omitempty,money"`
	ReorderLevel *int             `json:"reorder_level,omitempty" validate:"omitempty,gte=0"`
}

func UpdateProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		id, err := validators.PathID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.Update(r.Context(), id, product.UpdateProductInput{
			Name:         payload.Name,
			Description:  payload.Description,
			Category:     payload.Category,
			Barcode:      payload.Barcode,
			Price:        payload.Price,
			CostPrice:    payload.CostPrice,
			ReorderLevel: payload.ReorderLevel,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// DeleteProduct soft-deletes; history and past sales keep referencing the row.
func DeleteProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		id, err := validators.PathID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.SoftDelete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type stockAdjustmentRequest struct {
	QuantityChange  int     `json:"quantity_change" validate:"required"`
	TransactionType string  `json:"transaction_type,omitempty" validate:"omitempty,oneof=manual correction return"`
	Reason          string  `json:"reason" validate:"required,max=255"`
	Notes           *string `json:"notes,omitempty"`
}

// AdjustProductStock applies a manual signed stock movement for the acting user.
func AdjustProductStock(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.PathID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload stockAdjustmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var txType enums.InventoryTransactionType
		if payload.TransactionType != "" {
			txType, err = enums.ParseInventoryTransactionType(payload.TransactionType)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction type"))
				return
			}
		}

		userID := actor.UserID
		result, err := svc.AdjustStock(r.Context(), product.AdjustStockInput{
			ProductID: id,
			Delta:     payload.QuantityChange,
			Type:      txType,
			Reason:    strings.TrimSpace(payload.Reason),
			Notes:     payload.Notes,
			ActorID:   &userID,
			ActorRole: string(actor.Role),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// ProductStockHistory lists a product's ledger entries, newest first.
func ProductStockHistory(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		id, err := validators.PathID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", defaultHistoryLimit, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entries, err := svc.History(r.Context(), id, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}

// RecentInventoryTransactions lists the latest ledger entries across products.
func RecentInventoryTransactions(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", defaultHistoryLimit, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entries, err := svc.RecentAcrossProducts(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}
