package customers

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storepos-backend/pkg/db/models"
	"github.com/angelmondragon/storepos-backend/pkg/pagination"
)

// Repository manages customer and loyalty persistence.
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

func (r *Repository) Create(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// UpdateDetails writes contact fields only; loyalty points move through AddPoints.
func (r *Repository) UpdateDetails(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", customer.ID).
		Updates(map[string]any{
			"name":    customer.Name,
			"phone":   customer.Phone,
			"email":   customer.Email,
			"address": customer.Address,
		}).Error
}

func (r *Repository) searchQuery(ctx context.Context, term string) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Customer{})
	if term = strings.TrimSpace(term); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(COALESCE(phone, '')) LIKE ? OR LOWER(COALESCE(email, '')) LIKE ?", like, like, like)
	}
	return query
}

// Search matches term against name, phone and email, case-insensitively.
func (r *Repository) Search(ctx context.Context, term string, params pagination.Params) ([]models.Customer, int64, error) {
	page := params.Normalize()

	var total int64
	if err := r.searchQuery(ctx, term).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var customers []models.Customer
	err := r.searchQuery(ctx, term).
		Order("name ASC").
		Order("id ASC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&customers).Error
	return customers, total, err
}

// InsertAccrual records the accrual unless the sale already has one. It
// reports whether a row was written.
func (r *Repository) InsertAccrual(ctx context.Context, accrual *models.LoyaltyAccrual) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "sale_id"}}, DoNothing: true}).
		Create(accrual)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AddPoints credits points to the customer and reports whether the row exists.
func (r *Repository) AddPoints(ctx context.Context, customerID int64, points int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", customerID).
		Update("loyalty_points", gorm.Expr("loyalty_points + ?", points))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
