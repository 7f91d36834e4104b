package analytics

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storepos-backend/pkg/enums"
	"github.com/angelmondragon/storepos-backend/pkg/logger"
	"github.com/angelmondragon/storepos-backend/pkg/outbox"
	"github.com/angelmondragon/storepos-backend/pkg/outbox/payloads"
)

type recordingWriter struct {
	sales []SaleFactRow
	stock []StockMovementRow
}

func (r *recordingWriter) InsertSale(ctx context.Context, row SaleFactRow) error {
	r.sales = append(r.sales, row)
	return nil
}

func (r *recordingWriter) InsertStockMovement(ctx context.Context, row StockMovementRow) error {
	r.stock = append(r.stock, row)
	return nil
}

func newExporter(t *testing.T) (*Exporter, *recordingWriter) {
	t.Helper()
	w := &recordingWriter{}
	e, err := NewExporter(w, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)
	return e, w
}

func eventWith(t *testing.T, eventType enums.OutboxEventType, data any, actor *outbox.ActorRef) outbox.Event {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return outbox.Event{
		Type: eventType,
		Envelope: outbox.PayloadEnvelope{
			Version:    1,
			EventID:    "evt-1",
			OccurredAt: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
			Actor:      actor,
			Data:       raw,
		},
	}
}

func TestExporterWritesSaleFact(t *testing.T) {
	e, w := newExporter(t)
	customer := int64(5)
	event := eventWith(t, enums.EventSaleBooked, payloads.SaleBookedEvent{
		SaleID:        11,
		InvoiceNumber: "INV-20260504-0003",
		CustomerID:    &customer,
		UserID:        2,
		TotalAmount:   "21.45",
		PaymentMethod: enums.PaymentMethodCard,
		ItemCount:     2,
		UnitsSold:     5,
	}, nil)

	require.NoError(t, e.Handle(context.Background(), nil, event))
	require.Len(t, w.sales, 1)
	row := w.sales[0]
	assert.Equal(t, "evt-1", row.EventID)
	assert.Equal(t, "21.45", row.TotalAmount.FloatString(2))
	assert.Equal(t, "card", row.PaymentMethod)
	assert.Equal(t, int64(5), row.UnitsSold)
	assert.Equal(t, event.Envelope.OccurredAt, row.BookedAt, "missing booked_at falls back to the event time")
}

func TestExporterWritesStockFactWithActor(t *testing.T) {
	e, w := newExporter(t)
	event := eventWith(t, enums.EventStockAdjusted, payloads.StockAdjustedEvent{
		ProductID:        3,
		TransactionID:    40,
		Type:             enums.InventoryTransactionCorrection,
		QuantityChange:   -2,
		PreviousQuantity: 12,
		NewQuantity:      10,
		LowStock:         true,
	}, &outbox.ActorRef{UserID: 9, Role: "inventory"})

	require.NoError(t, e.Handle(context.Background(), nil, event))
	require.Len(t, w.stock, 1)
	row := w.stock[0]
	assert.Equal(t, "correction", row.TransactionType)
	assert.Equal(t, int64(-2), row.QuantityChange)
	require.NotNil(t, row.ActorID)
	assert.Equal(t, int64(9), *row.ActorID)
}

func TestExporterRejectsBadTotalsWithoutRetry(t *testing.T) {
	e, _ := newExporter(t)
	event := eventWith(t, enums.EventSaleBooked, payloads.SaleBookedEvent{SaleID: 1, TotalAmount: "abc"}, nil)

	err := e.Handle(context.Background(), nil, event)
	require.Error(t, err)
	assert.True(t, outbox.IsNonRetryable(err))
}
