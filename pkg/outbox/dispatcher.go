package outbox

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storepos-backend/pkg/config"
	"github.com/angelmondragon/storepos-backend/pkg/db/models"
	"github.com/angelmondragon/storepos-backend/pkg/enums"
	"github.com/angelmondragon/storepos-backend/pkg/logger"
	"github.com/angelmondragon/storepos-backend/pkg/metrics"
)

const (
	defaultBatchSize   = 50
	defaultPollMs      = 1000
	defaultMaxAttempts = 10
	maxBackoff         = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond

	resultPublished = "published"
	resultSkipped   = "skipped"
	resultFailed    = "failed"
	resultTerminal  = "terminal"
)

var (
	jitterMu     sync.Mutex
	jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Event is a decoded outbox row handed to handlers.
type Event struct {
	ID            uuid.UUID
	Type          enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   int64
	Envelope      PayloadEnvelope
}

// Handler consumes one event. tx is scoped to a savepoint of the dispatch
// transaction: writes made through it commit together with the published mark.
type Handler interface {
	Handle(ctx context.Context, tx *gorm.DB, event Event) error
}

type HandlerFunc func(ctx context.Context, tx *gorm.DB, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, tx *gorm.DB, event Event) error {
	return f(ctx, tx, event)
}

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type dispatchRepository interface {
	FetchPendingTx(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type DispatcherParams struct {
	Config     config.OutboxConfig
	Logger     *logger.Logger
	DB         dbClient
	Repository dispatchRepository
	Metrics    *metrics.OutboxMetrics
}

// Dispatcher polls outbox_events and routes each event to the handlers
// registered for its type.
type Dispatcher struct {
	logg         *logger.Logger
	db           dbClient
	repo         dispatchRepository
	metrics      *metrics.OutboxMetrics
	handlers     map[enums.OutboxEventType][]Handler
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}

	batch := params.Config.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollMs := params.Config.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}
	maxAttempts := params.Config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Dispatcher{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		metrics:      params.Metrics,
		handlers:     map[enums.OutboxEventType][]Handler{},
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: time.Duration(pollMs) * time.Millisecond,
	}, nil
}

// Register adds a handler for eventType. Not safe to call once Run started.
func (d *Dispatcher) Register(eventType enums.OutboxEventType, handler Handler) {
	if handler == nil {
		return
	}
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// Run polls until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := d.db.Ping(ctx); err != nil {
		d.logg.Error(ctx, "database ping failed", err)
		return fmt.Errorf("database ping failed: %w", err)
	}

	interval := d.pollInterval
	backoff := interval

	d.logg.Info(d.logg.WithFields(ctx, map[string]any{
		"batch_size":   d.batchSize,
		"max_attempts": d.maxAttempts,
		"poll_ms":      interval.Milliseconds(),
	}), "outbox dispatcher started")

	for {
		select {
		case <-ctx.Done():
			d.logg.Info(ctx, "outbox dispatcher stopped")
			return nil
		default:
		}

		processed, err := d.ProcessBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			d.logg.Error(ctx, "outbox dispatcher batch error", err)
			backoff = nextBackoff(backoff, interval, maxBackoff)
			if err := sleep(ctx, withJitter(backoff)); err != nil {
				return nil
			}
			continue
		}

		backoff = interval
		if processed {
			continue
		}
		if err := sleep(ctx, withJitter(interval)); err != nil {
			return nil
		}
	}
}

// ProcessBatch handles one batch and reports whether any event was fetched.
func (d *Dispatcher) ProcessBatch(ctx context.Context) (bool, error) {
	processed := false
	err := d.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := d.repo.FetchPendingTx(tx, d.batchSize, d.maxAttempts)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		processed = true
		for _, row := range rows {
			if err := d.dispatch(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
	return processed, err
}

func (d *Dispatcher) dispatch(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	fields := d.eventFields(row)

	envelope, err := DecodeEnvelope(row.Payload)
	if err != nil {
		return d.markTerminal(ctx, tx, row, fields, fmt.Errorf("decode envelope: %w", err))
	}
	fields["event_id"] = envelope.EventID

	handlers := d.handlers[row.EventType]
	if len(handlers) == 0 {
		if err := d.repo.MarkPublishedTx(tx, row.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		d.metrics.IncDispatched(string(row.EventType), resultSkipped)
		return nil
	}

	event := Event{
		ID:            row.ID,
		Type:          row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Envelope:      envelope,
	}

	handleErr := tx.Transaction(func(eventTx *gorm.DB) error {
		for _, handler := range handlers {
			if err := handler.Handle(ctx, eventTx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if handleErr != nil {
		if IsNonRetryable(handleErr) {
			return d.markTerminal(ctx, tx, row, fields, handleErr)
		}
		nextAttempt := row.AttemptCount + 1
		fields["attempt_count"] = nextAttempt
		if nextAttempt >= d.maxAttempts {
			fields["terminal_reason"] = "max_attempts"
			return d.markTerminal(ctx, tx, row, fields, fmt.Errorf("max dispatch attempts reached: %w", handleErr))
		}
		logCtx := d.logg.WithField(d.logg.WithFields(ctx, fields), "error", handleErr.Error())
		d.logg.Warn(logCtx, "outbox handler failed")
		if err := d.repo.MarkFailedTx(tx, row.ID, handleErr); err != nil {
			return fmt.Errorf("mark failure %s: %w", row.ID, err)
		}
		d.metrics.IncDispatched(string(row.EventType), resultFailed)
		return nil
	}

	if err := d.repo.MarkPublishedTx(tx, row.ID); err != nil {
		return fmt.Errorf("mark published %s: %w", row.ID, err)
	}
	d.metrics.IncDispatched(string(row.EventType), resultPublished)
	d.logg.Info(d.logg.WithFields(ctx, fields), "outbox event dispatched")
	return nil
}

func (d *Dispatcher) markTerminal(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, fields map[string]any, cause error) error {
	logCtx := d.logg.WithField(d.logg.WithFields(ctx, fields), "error", cause.Error())
	d.logg.Warn(logCtx, "outbox event will not be retried")
	if err := d.repo.MarkTerminalTx(tx, row.ID, cause, d.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	d.metrics.IncDispatched(string(row.EventType), resultTerminal)
	return nil
}

func (d *Dispatcher) eventFields(row models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID,
		"attempt_count":  row.AttemptCount,
	}
	if row.LastError != nil {
		fields["last_error"] = *row.LastError
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitterMu.Lock()
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	jitterMu.Unlock()
	return d + jitter
}
