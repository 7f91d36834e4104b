package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry and the holder of current stock.
type Product struct {
	ID            int64           `gorm:"column:id;primaryKey;autoIncrement"`
	Name          string          `gorm:"column:name;not null"`
	Description   *string         `gorm:"column:description"`
	Category      *string         `gorm:"column:category;index:ix_products_category"`
	Barcode       *string         `gorm:"column:barcode;uniqueIndex:ux_products_barcode"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null;check:chk_products_price_non_negative,price >= 0"`
	CostPrice     decimal.Decimal `gorm:"column:cost_price;type:numeric(12,2);not null;default:0"`
	StockQuantity int             `gorm:"column:stock_quantity;not null;default:0;check:chk_products_stock_non_negative,stock_quantity >= 0"`
	ReorderLevel  int             `gorm:"column:reorder_level;not null"`
	IsActive      bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// IsLowStock reports whether stock is at or below the reorder level.
func (p Product) IsLowStock() bool {
	return p.StockQuantity <= p.ReorderLevel
}
