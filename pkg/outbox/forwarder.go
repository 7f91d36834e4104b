package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"github.com/angelmondragon/storepos-backend/pkg/logger"
)

type messagePublisher interface {
	Publish(ctx context.Context, data []byte, attributes map[string]string) (string, error)
}

// Forwarder copies events to an external message bus. Publish failures are
// retried by the dispatcher like any other handler error.
type Forwarder struct {
	publisher messagePublisher
	logg      *logger.Logger
}

func NewForwarder(publisher messagePublisher, logg *logger.Logger) (*Forwarder, error) {
	if publisher == nil {
		return nil, fmt.Errorf("publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Forwarder{publisher: publisher, logg: logg}, nil
}

func (f *Forwarder) Handle(ctx context.Context, _ *gorm.DB, event Event) error {
	body, err := json.Marshal(event.Envelope)
	if err != nil {
		return NewNonRetryableError(fmt.Errorf("encode envelope: %w", err))
	}
	attrs := map[string]string{
		"event_id":       event.Envelope.EventID,
		"event_type":     string(event.Type),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   strconv.FormatInt(event.AggregateID, 10),
	}
	messageID, err := f.publisher.Publish(ctx, body, attrs)
	if err != nil {
		return err
	}
	f.logg.Info(f.logg.WithFields(ctx, map[string]any{
		"event_id":   event.Envelope.EventID,
		"message_id": messageID,
	}), "outbox event forwarded")
	return nil
}
