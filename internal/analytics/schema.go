package analytics

import (
	bq "cloud.google.com/go/bigquery"

	"github.com/angelmondragon/storepos-backend/pkg/bigquery"
)

// saleFactSchema matches SaleFactRow column for column.
var saleFactSchema = bq.Schema{
	{Name: "event_id", Type: bq.StringFieldType, Required: true},
	{Name: "sale_id", Type: bq.IntegerFieldType, Required: true},
	{Name: "invoice_number", Type: bq.StringFieldType, Required: true},
	{Name: "customer_id", Type: bq.IntegerFieldType},
	{Name: "cashier_id", Type: bq.IntegerFieldType, Required: true},
	{Name: "total_amount", Type: bq.NumericFieldType, Required: true},
	{Name: "payment_method", Type: bq.StringFieldType, Required: true},
	{Name: "item_count", Type: bq.IntegerFieldType, Required: true},
	{Name: "units_sold", Type: bq.IntegerFieldType, Required: true},
	{Name: "booked_at", Type: bq.TimestampFieldType, Required: true},
}

// stockMovementSchema matches StockMovementRow column for column.
var stockMovementSchema = bq.Schema{
	{Name: "event_id", Type: bq.StringFieldType, Required: true},
	{Name: "product_id", Type: bq.IntegerFieldType, Required: true},
	{Name: "transaction_id", Type: bq.IntegerFieldType, Required: true},
	{Name: "transaction_type", Type: bq.StringFieldType, Required: true},
	{Name: "quantity_change", Type: bq.IntegerFieldType, Required: true},
	{Name: "previous_quantity", Type: bq.IntegerFieldType, Required: true},
	{Name: "new_quantity", Type: bq.IntegerFieldType, Required: true},
	{Name: "low_stock", Type: bq.BooleanFieldType, Required: true},
	{Name: "actor_id", Type: bq.IntegerFieldType},
	{Name: "occurred_at", Type: bq.TimestampFieldType, Required: true},
}

// TableSpecs describes the fact tables the worker may create on startup.
func TableSpecs(salesTable, stockTable string) []bigquery.TableSpec {
	return []bigquery.TableSpec{
		{Name: salesTable, Schema: saleFactSchema, PartitionField: "booked_at"},
		{Name: stockTable, Schema: stockMovementSchema, PartitionField: "occurred_at"},
	}
}
