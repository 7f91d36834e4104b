package models

import (
	"time"

	"github.com/angelmondragon/storepos-backend/pkg/enums"
)

// User is a staff account able to act on the till.
type User struct {
	ID           int64          `gorm:"column:id;primaryKey;autoIncrement"`
	Username     string         `gorm:"column:username;not null;uniqueIndex:ux_users_username"`
	PasswordHash string         `gorm:"column:password_hash;not null"`
	FullName     string         `gorm:"column:full_name;not null"`
	Email        *string        `gorm:"column:email"`
	Role         enums.UserRole `gorm:"column:role;type:varchar(20);not null"`
	IsActive     bool           `gorm:"column:is_active;not null;default:true"`
	LastLoginAt  *time.Time     `gorm:"column:last_login_at"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
