package analytics

import (
	"math/big"
	"time"
)

// SaleFactRow mirrors the sale_facts BigQuery schema.
type SaleFactRow struct {
	EventID       string    `bigquery:"event_id"`
	SaleID        int64     `bigquery:"sale_id"`
	InvoiceNumber string    `bigquery:"invoice_number"`
	CustomerID    *int64    `bigquery:"customer_id"`
	CashierID     int64     `bigquery:"cashier_id"`
	TotalAmount   *big.Rat  `bigquery:"total_amount"`
	PaymentMethod string    `bigquery:"payment_method"`
	ItemCount     int64     `bigquery:"item_count"`
	UnitsSold     int64     `bigquery:"units_sold"`
	BookedAt      time.Time `bigquery:"booked_at"`
}

// StockMovementRow mirrors the stock_movement_facts BigQuery schema.
type StockMovementRow struct {
	EventID          string    `bigquery:"event_id"`
	ProductID        int64     `bigquery:"product_id"`
	TransactionID    int64     `bigquery:"transaction_id"`
	TransactionType  string    `bigquery:"transaction_type"`
	QuantityChange   int64     `bigquery:"quantity_change"`
	PreviousQuantity int64     `bigquery:"previous_quantity"`
	NewQuantity      int64     `bigquery:"new_quantity"`
	LowStock         bool      `bigquery:"low_stock"`
	ActorID          *int64    `bigquery:"actor_id"`
	OccurredAt       time.Time `bigquery:"occurred_at"`
}
