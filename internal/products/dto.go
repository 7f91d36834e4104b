package product

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storepos-backend/pkg/db/models"
)

// ProductDTO represents the catalog entry returned to clients.
type ProductDTO struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   *string         `json:"description,omitempty"`
	Category      *string         `json:"category,omitempty"`
	Barcode       *string         `json:"barcode,omitempty"`
	Price         decimal.Decimal `json:"price"`
	CostPrice     decimal.Decimal `json:"cost_price"`
	StockQuantity int             `json:"stock_quantity"`
	ReorderLevel  int             `json:"reorder_level"`
	LowStock      bool            `json:"low_stock"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// StockAdjustmentDTO is the result of an adjustStock call.
type StockAdjustmentDTO struct {
	Product       ProductDTO `json:"product"`
	TransactionID int64      `json:"transaction_id"`
	Previous      int        `json:"previous_quantity"`
	New           int        `json:"new_quantity"`
	Change        int        `json:"quantity_change"`
}

// NewProductDTO builds a DTO from the persisted model.
func NewProductDTO(product *models.Product) *ProductDTO {
	if product == nil {
		return nil
	}
	return &ProductDTO{
		ID:            product.ID,
		Name:          product.Name,
		Description:   product.Description,
		Category:      product.Category,
		Barcode:       product.Barcode,
		Price:         product.Price.Round(2),
		CostPrice:     product.CostPrice.Round(2),
		StockQuantity: product.StockQuantity,
		ReorderLevel:  product.ReorderLevel,
		LowStock:      product.IsLowStock(),
		IsActive:      product.IsActive,
		CreatedAt:     product.CreatedAt,
		UpdatedAt:     product.UpdatedAt,
	}
}

func newProductDTOs(rows []models.Product) []ProductDTO {
	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewProductDTO(&rows[i]))
	}
	return out
}
