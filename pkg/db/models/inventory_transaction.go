package models

import (
	"time"

	"github.com/angelmondragon/storepos-backend/pkg/enums"
)

// InventoryTransaction is an immutable stock ledger entry.
type InventoryTransaction struct {
	ID               int64                          `gorm:"column:id;primaryKey;autoIncrement"`
	ProductID        int64                          `gorm:"column:product_id;not null;index:ix_inventory_transactions_product_created,priority:1"`
	QuantityChange   int                            `gorm:"column:quantity_change;not null"`
	PreviousQuantity int                            `gorm:"column:previous_quantity;not null"`
	NewQuantity      int                            `gorm:"column:new_quantity;not null;check:chk_inventory_transactions_balance,new_quantity = previous_quantity + quantity_change"`
	TransactionType  enums.InventoryTransactionType `gorm:"column:transaction_type;type:varchar(20);not null"`
	Reason           string                         `gorm:"column:reason;not null"`
	Notes            *string                        `gorm:"column:notes"`
	UserID           *int64                         `gorm:"column:user_id"`
	CreatedAt        time.Time                      `gorm:"column:created_at;autoCreateTime;index:ix_inventory_transactions_product_created,priority:2"`
}
