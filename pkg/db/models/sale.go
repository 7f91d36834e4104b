package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storepos-backend/pkg/enums"
)

// Sale is a booked transaction header. Only PaymentStatus changes after insert.
type Sale struct {
	ID             int64               `gorm:"column:id;primaryKey;autoIncrement"`
	InvoiceNumber  string              `gorm:"column:invoice_number;not null;uniqueIndex:ux_sales_invoice_number"`
	CustomerID     *int64              `gorm:"column:customer_id;index"`
	UserID         int64               `gorm:"column:user_id;not null;index"`
	TotalAmount    decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	DiscountAmount decimal.Decimal     `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	TaxAmount      decimal.Decimal     `gorm:"column:tax_amount;type:numeric(12,2);not null;default:0"`
	PaymentMethod  enums.PaymentMethod `gorm:"column:payment_method;type:varchar(20);not null"`
	PaymentStatus  enums.PaymentStatus `gorm:"column:payment_status;type:varchar(20);not null"`
	SaleDate       time.Time           `gorm:"column:sale_date;not null;index"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
	Items          []SaleItem          `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
}

// SaleItem snapshots one cart line at booking time.
type SaleItem struct {
	ID              int64           `gorm:"column:id;primaryKey;autoIncrement"`
	SaleID          int64           `gorm:"column:sale_id;not null;index"`
	ProductID       int64           `gorm:"column:product_id;not null;index"`
	Position        int             `gorm:"column:position;not null"`
	Quantity        int             `gorm:"column:quantity;not null;check:chk_sale_items_quantity_positive,quantity > 0"`
	UnitPrice       decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	DiscountPercent decimal.Decimal `gorm:"column:discount_percent;type:numeric(5,2);not null;default:0"`
	Subtotal        decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}
