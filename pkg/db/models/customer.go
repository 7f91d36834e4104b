package models

import "time"

// Customer is a loyalty-program member referenced by sales.
type Customer struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name          string    `gorm:"column:name;not null"`
	Phone         *string   `gorm:"column:phone;uniqueIndex:ux_customers_phone"`
	Email         *string   `gorm:"column:email"`
	Address       *string   `gorm:"column:address"`
	LoyaltyPoints int       `gorm:"column:loyalty_points;not null;default:0;check:chk_customers_points_non_negative,loyalty_points >= 0"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// LoyaltyAccrual records that a sale has already credited points.
type LoyaltyAccrual struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	SaleID     int64     `gorm:"column:sale_id;not null;uniqueIndex:ux_loyalty_accruals_sale"`
	CustomerID int64     `gorm:"column:customer_id;not null;index"`
	Points     int       `gorm:"column:points;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
