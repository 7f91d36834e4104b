package ledger

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storepos-backend/pkg/db/models"
	"github.com/angelmondragon/storepos-backend/pkg/enums"
)

// Entry is a ledger row joined with the actor username and product name.
type Entry struct {
	ID               int64
	ProductID        int64
	ProductName      string
	QuantityChange   int
	PreviousQuantity int
	NewQuantity      int
	TransactionType  enums.InventoryTransactionType
	Reason           string
	Notes            *string
	UserID           *int64
	ActorUsername    *string
	CreatedAt        time.Time
}

// Repository manages persistence for inventory transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.InventoryTransaction) error
	ListByProduct(ctx context.Context, productID int64, limit int) ([]Entry, error)
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
	SumChanges(ctx context.Context, productID int64) (int, error)
	ListDrift(ctx context.Context, limit int) ([]Drift, error)
}

// Drift is a product whose stored stock disagrees with its latest ledger entry.
type Drift struct {
	ProductID      int64
	ProductName    string
	StockQuantity  int
	LedgerQuantity int
	LastEntryID    int64
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.InventoryTransaction) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

const entryColumns = `it.id, it.product_id, p.name AS product_name, it.quantity_change,
it.previous_quantity, it.new_quantity, it.transaction_type, it.reason, it.notes,
it.user_id, u.username AS actor_username, it.created_at`

func (r *repository) entries(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("inventory_transactions AS it").
		Select(entryColumns).
		Joins("JOIN products p ON p.id = it.product_id").
		Joins("LEFT JOIN users u ON u.id = it.user_id")
}

func (r *repository) ListByProduct(ctx context.Context, productID int64, limit int) ([]Entry, error) {
	var rows []Entry
	err := r.entries(ctx).
		Where("it.product_id = ?", productID).
		Order("it.created_at DESC").
		Order("it.id DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *repository) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	var rows []Entry
	err := r.entries(ctx).
		Order("it.created_at DESC").
		Order("it.id DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// SumChanges totals every quantity_change recorded for the product.
func (r *repository) SumChanges(ctx context.Context, productID int64) (int, error) {
	var total int
	err := r.db.WithContext(ctx).
		Model(&models.InventoryTransaction{}).
		Where("product_id = ?", productID).
		Select("COALESCE(SUM(quantity_change), 0)").
		Scan(&total).Error
	return total, err
}

// ListDrift compares each product's stock with the new_quantity of its most
// recent ledger entry. Products without entries are never reported.
func (r *repository) ListDrift(ctx context.Context, limit int) ([]Drift, error) {
	var rows []Drift
	err := r.db.WithContext(ctx).
		Table("products AS p").
		Select("p.id AS product_id, p.name AS product_name, p.stock_quantity, it.new_quantity AS ledger_quantity, it.id AS last_entry_id").
		Joins("JOIN inventory_transactions it ON it.id = (SELECT MAX(latest.id) FROM inventory_transactions latest WHERE latest.product_id = p.id)").
		Where("it.new_quantity <> p.stock_quantity").
		Order("p.id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
