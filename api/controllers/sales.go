package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storepos-backend/api/responses"
	"github.com/angelmondragon/storepos-backend/api/validators"
	"github.com/angelmondragon/storepos-backend/internal/sales"
	"github.com/angelmondragon/storepos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storepos-backend/pkg/errors"
	"github.com/angelmondragon/storepos-backend/pkg/logger"
)

type bookSaleRequest struct {
	CustomerID     *int64                `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	Items          []bookSaleItemRequest `json:"items" validate:"required,min=1,dive"`
	PaymentMethod  string                `json:"payment_method" validate:"required,oneof=cash card mobile"`
	DiscountAmount *decimal.Decimal      `json:"discount_amount,omitempty" validate:"omitempty,money"`
	TaxAmount      *decimal.Decimal      `json:"tax_amount,omitempty" validate:"omitempty,money"`
}

type bookSaleItemRequest struct {
	ProductID       int64            `json:"product_id" validate:"required,gt=0"`
	Quantity        int              `json:"quantity" validate:"required,gt=0"`
	UnitPrice       *decimal.Decimal `json:"unit_price,omitempty" validate:"omitempty,money"`
	DiscountPercent *decimal.Decimal `json:"discount_percent,omitempty" validate:"omitempty,percent"`
}

func (r bookSaleRequest) toCart(userID int64, role enums.UserRole) (sales.Cart, error) {
	method, err := enums.ParsePaymentMethod(r.PaymentMethod)
	if err != nil {
		return sales.Cart{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}
	cart := sales.Cart{
		UserID:        userID,
		UserRole:      string(role),
		CustomerID:    r.CustomerID,
		PaymentMethod: method,
		TaxAmount:     r.TaxAmount,
		Items:         make([]sales.CartItem, 0, len(r.Items)),
	}
	if r.DiscountAmount != nil {
		cart.DiscountAmount = *r.DiscountAmount
	}
	for _, item := range r.Items {
		line := sales.CartItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
		if item.DiscountPercent != nil {
			line.DiscountPercent = *item.DiscountPercent
		}
		cart.Items = append(cart.Items, line)
	}
	return cart, nil
}

// BookSale commits a cart as a sale on behalf of the authenticated cashier.
func BookSale(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sale service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload bookSaleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cart, err := payload.toCart(actor.UserID, actor.Role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sale, err := svc.BookSale(r.Context(), cart)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sale)
	}
}

// ListSales filters by from/to (inclusive/exclusive), payment method and
// status, and customer.
func ListSales(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sale service unavailable"))
			return
		}
		input, err := parseListSalesQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ListSales(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, result.Sales, result.Total, result.Limit, result.Offset)
	}
}

func parseListSalesQuery(r *http.Request) (sales.ListSalesInput, error) {
	var input sales.ListSalesInput
	page, err := validators.ParsePagination(r)
	if err != nil {
		return input, err
	}
	input.Pagination = page

	if input.From, err = validators.ParseQueryTime(r, "from"); err != nil {
		return input, err
	}
	if input.To, err = validators.ParseQueryTime(r, "to"); err != nil {
		return input, err
	}
	if input.CustomerID, err = validators.ParseQueryID(r, "customer_id"); err != nil {
		return input, err
	}
	if raw := r.URL.Query().Get("payment_method"); raw != "" {
		method, err := enums.ParsePaymentMethod(raw)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
		}
		input.PaymentMethod = &method
	}
	if raw := r.URL.Query().Get("payment_status"); raw != "" {
		status, err := enums.ParsePaymentStatus(raw)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment status")
		}
		input.PaymentStatus = &status
	}
	return input, nil
}

func GetSale(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sale service unavailable"))
			return
		}
		id, err := validators.PathID(r, "saleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sale, err := svc.GetSale(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sale)
	}
}

func GetSaleByInvoice(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sale service unavailable"))
			return
		}
		invoice := validators.SanitizeString(chiParam(r, "invoiceNumber"), 64)
		if invoice == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invoice number is required"))
			return
		}
		sale, err := svc.GetSaleByInvoice(r.Context(), invoice)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sale)
	}
}

type paymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" validate:"required,oneof=pending paid completed failed refunded"`
}

// UpdateSalePaymentStatus moves a sale's payment status. Stock is untouched.
func UpdateSalePaymentStatus(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sale service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.PathID(r, "saleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload paymentStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParsePaymentStatus(payload.PaymentStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment status"))
			return
		}

		sale, err := svc.UpdatePaymentStatus(r.Context(), sales.UpdatePaymentStatusInput{
			SaleID:    id,
			Status:    status,
			ActorID:   actor.UserID,
			ActorRole: string(actor.Role),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sale)
	}
}
