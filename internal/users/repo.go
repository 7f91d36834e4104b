package users

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storepos-backend/pkg/db/models"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new user and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByUsername retrieves the user matching the provided username.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID retrieves a user by primary key.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// List returns every staff account ordered by username.
func (r *Repository) List(ctx context.Context, includeInactive bool) ([]models.User, error) {
	query := r.db.WithContext(ctx).Model(&models.User{})
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	var users []models.User
	err := query.Order("username ASC").Find(&users).Error
	return users, err
}

// SetActive flips the active flag and reports whether the user exists.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Update applies the given column changes and reports whether the user exists.
func (r *Repository) Update(ctx context.Context, id int64, changes map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdatePasswordHash replaces the stored hash only while it still equals
// previous, so two concurrent changes cannot both succeed.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id int64, previous, next string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND password_hash = ?", id, previous).
		Update("password_hash", next)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdateLastLogin stamps the last successful login time.
func (r *Repository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_login_at", at).Error
}
