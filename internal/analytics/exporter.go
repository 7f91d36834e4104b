package analytics

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storepos-backend/pkg/enums"
	"github.com/angelmondragon/storepos-backend/pkg/logger"
	"github.com/angelmondragon/storepos-backend/pkg/outbox"
	"github.com/angelmondragon/storepos-backend/pkg/outbox/payloads"
)

type factWriter interface {
	InsertSale(ctx context.Context, row SaleFactRow) error
	InsertStockMovement(ctx context.Context, row StockMovementRow) error
}

// Exporter turns sale and stock events into BigQuery fact rows.
type Exporter struct {
	writer factWriter
	logg   *logger.Logger
}

func NewExporter(writer factWriter, logg *logger.Logger) (*Exporter, error) {
	if writer == nil {
		return nil, errors.New("fact writer required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Exporter{writer: writer, logg: logg}, nil
}

// EventTypes lists the outbox events the exporter consumes.
func (e *Exporter) EventTypes() []enums.OutboxEventType {
	return []enums.OutboxEventType{enums.EventSaleBooked, enums.EventStockAdjusted}
}

func (e *Exporter) Handle(ctx context.Context, _ *gorm.DB, event outbox.Event) error {
	switch event.Type {
	case enums.EventSaleBooked:
		row, err := saleFact(event)
		if err != nil {
			return err
		}
		return e.writer.InsertSale(ctx, row)
	case enums.EventStockAdjusted:
		row, err := stockFact(event)
		if err != nil {
			return err
		}
		return e.writer.InsertStockMovement(ctx, row)
	default:
		e.logg.Warn(e.logg.WithField(ctx, "event_type", string(event.Type)), "analytics exporter ignoring event")
		return nil
	}
}

func saleFact(event outbox.Event) (SaleFactRow, error) {
	var payload payloads.SaleBookedEvent
	if err := event.Envelope.DecodeData(&payload); err != nil {
		return SaleFactRow{}, err
	}
	total, err := decimal.NewFromString(payload.TotalAmount)
	if err != nil {
		return SaleFactRow{}, outbox.NewNonRetryableError(fmt.Errorf("sale %d total %q: %w", payload.SaleID, payload.TotalAmount, err))
	}
	bookedAt := payload.BookedAt
	if bookedAt.IsZero() {
		bookedAt = event.Envelope.OccurredAt
	}
	return SaleFactRow{
		EventID:       event.Envelope.EventID,
		SaleID:        payload.SaleID,
		InvoiceNumber: payload.InvoiceNumber,
		CustomerID:    payload.CustomerID,
		CashierID:     payload.UserID,
		TotalAmount:   total.Rat(),
		PaymentMethod: string(payload.PaymentMethod),
		ItemCount:     int64(payload.ItemCount),
		UnitsSold:     int64(payload.UnitsSold),
		BookedAt:      bookedAt.UTC(),
	}, nil
}

func stockFact(event outbox.Event) (StockMovementRow, error) {
	var payload payloads.StockAdjustedEvent
	if err := event.Envelope.DecodeData(&payload); err != nil {
		return StockMovementRow{}, err
	}
	var actor *int64
	if event.Envelope.Actor != nil && event.Envelope.Actor.UserID > 0 {
		id := event.Envelope.Actor.UserID
		actor = &id
	}
	return StockMovementRow{
		EventID:          event.Envelope.EventID,
		ProductID:        payload.ProductID,
		TransactionID:    payload.TransactionID,
		TransactionType:  string(payload.Type),
		QuantityChange:   int64(payload.QuantityChange),
		PreviousQuantity: int64(payload.PreviousQuantity),
		NewQuantity:      int64(payload.NewQuantity),
		LowStock:         payload.LowStock,
		ActorID:          actor,
		OccurredAt:       event.Envelope.OccurredAt.UTC(),
	}, nil
}
