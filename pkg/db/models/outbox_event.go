package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storepos-backend/pkg/enums"
)

// OutboxEvent is an append-only domain event written in the producer's transaction.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:varchar(64);not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:varchar(32);not null"`
	AggregateID   int64                     `gorm:"column:aggregate_id;not null"`
	Payload       string                    `gorm:"column:payload;type:text;not null"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	PublishedAt   *time.Time                `gorm:"column:published_at;index"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
}

// All lists every model in dependency order, for AutoMigrate in dev and tests.
func All() []any {
	return []any{
		&User{},
		&Product{},
		&Customer{},
		&Sale{},
		&SaleItem{},
		&InventoryTransaction{},
		&LoyaltyAccrual{},
		&OutboxEvent{},
	}
}
