package product

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storepos-backend/pkg/db/models"
	"github.com/angelmondragon/storepos-backend/pkg/pagination"
)

// Repository wires together product persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads the product.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads every product in ids keyed by id.
func (r *Repository) FindByIDs(ctx context.Context, ids []int64) (map[int64]models.Product, error) {
	out := make(map[int64]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// FindByBarcode loads the product carrying the barcode.
func (r *Repository) FindByBarcode(ctx context.Context, barcode string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "barcode = ?", barcode).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) listQuery(ctx context.Context, input ListProductsInput) *gorm.DB {
	qb := r.db.WithContext(ctx).Model(&models.Product{})
	if !input.IncludeInactive {
		qb = qb.Where("is_active = ?", true)
	}
	if input.Category != nil && strings.TrimSpace(*input.Category) != "" {
		qb = qb.Where("category = ?", strings.TrimSpace(*input.Category))
	}
	if search := strings.TrimSpace(input.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where("(LOWER(name) LIKE ? OR LOWER(COALESCE(barcode, '')) LIKE ? OR LOWER(COALESCE(category, '')) LIKE ?)", pattern, pattern, pattern)
	}
	return qb
}

// List returns one page of products ordered by name plus the total match count.
func (r *Repository) List(ctx context.Context, input ListProductsInput) ([]models.Product, int64, error) {
	page := input.Pagination.Normalize()

	var total int64
	if err := r.listQuery(ctx, input).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Product
	err := r.listQuery(ctx, input).
		Order("name ASC").
		Order("id ASC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&rows).Error
	return rows, total, err
}

// ListLowStock returns active products at or below their reorder level.
func (r *Repository) ListLowStock(ctx context.Context, limit int) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND stock_quantity <= reorder_level", true).
		Order("stock_quantity ASC").
		Order("name ASC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&rows).Error
	return rows, err
}

// CreateProduct inserts a new product row.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateDetails writes descriptive and pricing columns. Stock is never written here.
func (r *Repository) UpdateDetails(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", product.ID).
		Updates(map[string]any{
			"name":          product.Name,
			"description":   product.Description,
			"category":      product.Category,
			"barcode":       product.Barcode,
			"price":         product.Price,
			"cost_price":    product.CostPrice,
			"reorder_level": product.ReorderLevel,
			"updated_at":    time.Now().UTC(),
		}).Error
}

// SetActive flips the soft-delete flag and reports whether a row matched.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_active":  active,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected > 0, res.Error
}

// ApplyStockDelta adds delta to stock only when the result stays non-negative.
// The check and the write are one statement, so concurrent callers cannot both
// pass the check against the same stock. It reports whether a row changed.
func (r *Repository) ApplyStockDelta(ctx context.Context, id int64, delta int, requireActive bool) (bool, error) {
	qb := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock_quantity + ? >= 0", id, delta)
	if requireActive {
		qb = qb.Where("is_active = ?", true)
	}
	res := qb.Updates(map[string]any{
		"stock_quantity": gorm.Expr("stock_quantity + ?", delta),
		"updated_at":     time.Now().UTC(),
	})
	return res.RowsAffected > 0, res.Error
}
