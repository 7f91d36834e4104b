package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storepos-backend/pkg/enums"
	"github.com/angelmondragon/storepos-backend/pkg/pagination"
)

// Cart is a not-yet-persisted sale proposal.
type Cart struct {
	UserID        int64
	UserRole      string
	CustomerID    *int64
	Items         []CartItem
	PaymentMethod enums.PaymentMethod
	// DiscountAmount is applied at the sale level.
	DiscountAmount decimal.Decimal
	// TaxAmount is honored as given; nil means subtotal × the configured rate.
	TaxAmount *decimal.Decimal
}

// CartItem is one cart line. A nil UnitPrice takes the product's current price.
type CartItem struct {
	ProductID       int64
	Quantity        int
	UnitPrice       *decimal.Decimal
	DiscountPercent decimal.Decimal
}

// SaleDTO is the hydrated sale returned to callers.
type SaleDTO struct {
	ID             int64               `json:"id"`
	InvoiceNumber  string              `json:"invoice_number"`
	CustomerID     *int64              `json:"customer_id,omitempty"`
	CustomerName   *string             `json:"customer_name,omitempty"`
	UserID         int64               `json:"user_id"`
	CashierName    string              `json:"cashier_name"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	DiscountAmount decimal.Decimal     `json:"discount_amount"`
	TaxAmount      decimal.Decimal     `json:"tax_amount"`
	TotalAmount    decimal.Decimal     `json:"total_amount"`
	PaymentMethod  enums.PaymentMethod `json:"payment_method"`
	PaymentStatus  enums.PaymentStatus `json:"payment_status"`
	SaleDate       time.Time           `json:"sale_date"`
	ItemCount      int                 `json:"item_count"`
	Items          []SaleItemDTO       `json:"items,omitempty"`
}

// SaleItemDTO is a booked line with the product name resolved.
type SaleItemDTO struct {
	ID              int64           `json:"id"`
	Position        int             `json:"position"`
	ProductID       int64           `json:"product_id"`
	ProductName     string          `json:"product_name"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Subtotal        decimal.Decimal `json:"subtotal"`
}

// ListSalesInput filters the sales listing. Bounds are inclusive of From and exclusive of To.
type ListSalesInput struct {
	From          *time.Time
	To            *time.Time
	PaymentMethod *enums.PaymentMethod
	PaymentStatus *enums.PaymentStatus
	CustomerID    *int64
	Pagination    pagination.Params
}

// SaleListResult is one page of sale headers, newest first.
type SaleListResult struct {
	Sales  []SaleDTO `json:"sales"`
	Total  int64     `json:"total"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

// UpdatePaymentStatusInput moves a sale along the payment status machine.
type UpdatePaymentStatusInput struct {
	SaleID    int64
	Status    enums.PaymentStatus
	ActorID   int64
	ActorRole string
}
