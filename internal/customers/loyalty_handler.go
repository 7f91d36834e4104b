package customers

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/storepos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storepos-backend/pkg/errors"
	"github.com/angelmondragon/storepos-backend/pkg/logger"
	"github.com/angelmondragon/storepos-backend/pkg/money"
	"github.com/angelmondragon/storepos-backend/pkg/outbox"
	"github.com/angelmondragon/storepos-backend/pkg/outbox/payloads"
)

// LoyaltyHandler credits loyalty points when a sale with a customer is booked.
type LoyaltyHandler struct {
	svc  Service
	logg *logger.Logger
}

// NewLoyaltyHandler builds the sale_booked handler.
func NewLoyaltyHandler(svc Service, logg *logger.Logger) (*LoyaltyHandler, error) {
	if svc == nil {
		return nil, fmt.Errorf("customer service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &LoyaltyHandler{svc: svc, logg: logg}, nil
}

// EventType is the outbox event this handler consumes.
func (h *LoyaltyHandler) EventType() enums.OutboxEventType {
	return enums.EventSaleBooked
}

func (h *LoyaltyHandler) Handle(ctx context.Context, tx *gorm.DB, event outbox.Event) error {
	var payload payloads.SaleBookedEvent
	if err := event.Envelope.DecodeData(&payload); err != nil {
		return err
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_id":       event.ID.String(),
		"sale_id":        payload.SaleID,
		"invoice_number": payload.InvoiceNumber,
	})
	if payload.CustomerID == nil {
		h.logg.Info(logCtx, "sale has no customer; no loyalty accrual")
		return nil
	}

	total, err := money.Parse(payload.TotalAmount)
	if err != nil {
		return outbox.NewNonRetryableError(fmt.Errorf("parse total_amount: %w", err))
	}
	result, err := h.svc.AccrueLoyaltyTx(ctx, tx, AccrualInput{
		SaleID:      payload.SaleID,
		CustomerID:  *payload.CustomerID,
		TotalAmount: total,
	})
	if err != nil {
		switch pkgerrors.CodeOf(err) {
		case pkgerrors.CodeValidation, pkgerrors.CodeNotFound:
			return outbox.NewNonRetryableError(err)
		}
		return err
	}

	logCtx = h.logg.WithFields(logCtx, map[string]any{
		"customer_id": *payload.CustomerID,
		"points":      result.Points,
	})
	if !result.Applied {
		h.logg.Info(logCtx, "loyalty already accrued for sale")
		return nil
	}
	h.logg.Info(logCtx, "loyalty points accrued")
	return nil
}
