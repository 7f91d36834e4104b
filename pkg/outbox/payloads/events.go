package payloads

import (
	"time"

	"github.com/angelmondragon/storepos-backend/pkg/enums"
)

// SaleBookedEvent is emitted in the booking transaction of every sale.
type SaleBookedEvent struct {
	SaleID        int64               `json:"sale_id"`
	InvoiceNumber string              `json:"invoice_number"`
	CustomerID    *int64              `json:"customer_id,omitempty"`
	UserID        int64               `json:"user_id"`
	TotalAmount   string              `json:"total_amount"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	ItemCount     int                 `json:"item_count"`
	UnitsSold     int                 `json:"units_sold"`
	BookedAt      time.Time           `json:"booked_at"`
}

// SalePaymentStatusChangedEvent records a payment status transition.
type SalePaymentStatusChangedEvent struct {
	SaleID        int64               `json:"sale_id"`
	InvoiceNumber string              `json:"invoice_number"`
	From          enums.PaymentStatus `json:"from"`
	To            enums.PaymentStatus `json:"to"`
}

// StockAdjustedEvent is emitted for manual, correction and return movements.
type StockAdjustedEvent struct {
	ProductID        int64                          `json:"product_id"`
	TransactionID    int64                          `json:"transaction_id"`
	Type             enums.InventoryTransactionType `json:"transaction_type"`
	QuantityChange   int                            `json:"quantity_change"`
	PreviousQuantity int                            `json:"previous_quantity"`
	NewQuantity      int                            `json:"new_quantity"`
	LowStock         bool                           `json:"low_stock"`
}
