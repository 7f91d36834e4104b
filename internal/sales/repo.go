package sales

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storepos-backend/pkg/db/models"
	"github.com/angelmondragon/storepos-backend/pkg/enums"
)

// SaleView is a sale header joined with customer and cashier names.
type SaleView struct {
	ID             int64
	InvoiceNumber  string
	CustomerID     *int64
	CustomerName   *string
	UserID         int64
	CashierName    *string
	TotalAmount    decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	PaymentMethod  enums.PaymentMethod
	PaymentStatus  enums.PaymentStatus
	SaleDate       time.Time
	ItemCount      int
}

// SaleItemView is a sale line joined with its product name.
type SaleItemView struct {
	ID              int64
	SaleID          int64
	Position        int
	ProductID       int64
	ProductName     string
	Quantity        int
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	Subtotal        decimal.Decimal
}

// Repository manages sale persistence.
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

// LatestInvoiceWithPrefix returns the highest invoice number starting with
// prefix, or "" when none exists. Longer numbers sort first so 10000 beats 9999.
func (r *Repository) LatestInvoiceWithPrefix(ctx context.Context, prefix string) (string, error) {
	var invoices []string
	err := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("invoice_number LIKE ?", prefix+"%").
		Order("LENGTH(invoice_number) DESC").
		Order("invoice_number DESC").
		Limit(1).
		Pluck("invoice_number", &invoices).Error
	if err != nil || len(invoices) == 0 {
		return "", err
	}
	return invoices[0], nil
}

// CurrentPrices returns the live price of each product in ids.
func (r *Repository) CurrentPrices(ctx context.Context, ids []int64) (map[int64]decimal.Decimal, error) {
	type priceRow struct {
		ID    int64
		Price decimal.Decimal
	}
	var rows []priceRow
	if err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select("id, price").
		Where("id IN ?", ids).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[int64]decimal.Decimal, len(rows))
	for _, row := range rows {
		out[row.ID] = row.Price
	}
	return out, nil
}

// UserExists reports whether the cashier id is known.
func (r *Repository) UserExists(ctx context.Context, id int64) (bool, error) {
	return r.exists(ctx, &models.User{}, id)
}

// CustomerExists reports whether the customer id is known.
func (r *Repository) CustomerExists(ctx context.Context, id int64) (bool, error) {
	return r.exists(ctx, &models.Customer{}, id)
}

func (r *Repository) exists(ctx context.Context, model any, id int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// CreateSale inserts the header only; items are written line by line.
func (r *Repository) CreateSale(ctx context.Context, sale *models.Sale) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(sale).Error
}

// CreateItem inserts one sale line.
func (r *Repository) CreateItem(ctx context.Context, item *models.SaleItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// FindByID loads the bare sale header.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Sale, error) {
	var sale models.Sale
	if err := r.db.WithContext(ctx).First(&sale, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

const saleViewColumns = `s.id, s.invoice_number, s.customer_id, c.name AS customer_name, s.user_id,
COALESCE(NULLIF(u.full_name, ''), u.username) AS cashier_name, s.total_amount, s.discount_amount, s.tax_amount, s.payment_method,
s.payment_status, s.sale_date,
(SELECT COUNT(*) FROM sale_items si WHERE si.sale_id = s.id) AS item_count`

func (r *Repository) views(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("sales AS s").
		Joins("LEFT JOIN customers c ON c.id = s.customer_id").
		Joins("LEFT JOIN users u ON u.id = s.user_id")
}

// FindView loads one header matching column = value. It returns
// gorm.ErrRecordNotFound when nothing matches.
func (r *Repository) FindView(ctx context.Context, column string, value any) (*SaleView, error) {
	var rows []SaleView
	if err := r.views(ctx).
		Select(saleViewColumns).
		Where("s."+column+" = ?", value).
		Limit(1).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}

// ListItems returns the lines of every sale in saleIDs in booking order.
func (r *Repository) ListItems(ctx context.Context, saleIDs []int64) ([]SaleItemView, error) {
	var rows []SaleItemView
	if len(saleIDs) == 0 {
		return rows, nil
	}
	err := r.db.WithContext(ctx).
		Table("sale_items AS si").
		Select(`si.id, si.sale_id, si.position, si.product_id, p.name AS product_name,
si.quantity, si.unit_price, si.discount_percent, si.subtotal`).
		Joins("JOIN products p ON p.id = si.product_id").
		Where("si.sale_id IN ?", saleIDs).
		Order("si.sale_id ASC").
		Order("si.position ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *Repository) filtered(ctx context.Context, input ListSalesInput) *gorm.DB {
	qb := r.views(ctx)
	if input.From != nil {
		qb = qb.Where("s.sale_date >= ?", *input.From)
	}
	if input.To != nil {
		qb = qb.Where("s.sale_date < ?", *input.To)
	}
	if input.PaymentMethod != nil {
		qb = qb.Where("s.payment_method = ?", *input.PaymentMethod)
	}
	if input.PaymentStatus != nil {
		qb = qb.Where("s.payment_status = ?", *input.PaymentStatus)
	}
	if input.CustomerID != nil {
		qb = qb.Where("s.customer_id = ?", *input.CustomerID)
	}
	return qb
}

// List returns one page of headers ordered by sale_date desc plus the total count.
func (r *Repository) List(ctx context.Context, input ListSalesInput) ([]SaleView, int64, error) {
	page := input.Pagination.Normalize()

	var total int64
	if err := r.filtered(ctx, input).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []SaleView
	err := r.filtered(ctx, input).
		Select(saleViewColumns).
		Order("s.sale_date DESC").
		Order("s.id DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Scan(&rows).Error
	return rows, total, err
}

// UpdatePaymentStatus moves the sale from one status to another and reports
// whether the sale was still in from.
func (r *Repository) UpdatePaymentStatus(ctx context.Context, id int64, from, to enums.PaymentStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("id = ? AND payment_status = ?", id, from).
		Updates(map[string]any{
			"payment_status": to,
			"updated_at":     time.Now().UTC(),
		})
	return res.RowsAffected > 0, res.Error
}
