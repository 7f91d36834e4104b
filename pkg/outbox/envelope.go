package outbox

import (
	"encoding/json"
	"time"
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	UserID int64  `json:"userId"`
	Role   string `json:"role,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a stored payload.
func DecodeEnvelope(payload string) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return PayloadEnvelope{}, err
	}
	return env, nil
}

// DecodeData unmarshals the envelope data into dest.
func (e PayloadEnvelope) DecodeData(dest any) error {
	if len(e.Data) == 0 {
		return NewNonRetryableError(errEmptyData)
	}
	if err := json.Unmarshal(e.Data, dest); err != nil {
		return NewNonRetryableError(err)
	}
	return nil
}
