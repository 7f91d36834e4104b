package analytics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// WriterConfig names the target tables and the insert retry policy.
type WriterConfig struct {
	SalesTable     string
	StockTable     string
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

// Writer streams fact rows into BigQuery, retrying transient failures.
type Writer struct {
	client         tableInserter
	salesTable     string
	stockTable     string
	maxAttempts    int
	initialBackoff time.Duration
	maximumBackoff time.Duration
}

func NewWriter(client tableInserter, cfg WriterConfig) (*Writer, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	sales := strings.TrimSpace(cfg.SalesTable)
	stock := strings.TrimSpace(cfg.StockTable)
	if sales == "" || stock == "" {
		return nil, errors.New("sales and stock tables are required")
	}
	w := &Writer{
		client:         client,
		salesTable:     sales,
		stockTable:     stock,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maximumBackoff: cfg.MaximumBackoff,
	}
	if w.maxAttempts <= 0 {
		w.maxAttempts = defaultMaxAttempts
	}
	if w.initialBackoff <= 0 {
		w.initialBackoff = defaultInitialBackoff
	}
	if w.maximumBackoff < w.initialBackoff {
		w.maximumBackoff = max(defaultMaximumBackoff, w.initialBackoff)
	}
	return w, nil
}

func (w *Writer) InsertSale(ctx context.Context, row SaleFactRow) error {
	return w.insertWithRetry(ctx, w.salesTable, []any{&row})
}

func (w *Writer) InsertStockMovement(ctx context.Context, row StockMovementRow) error {
	return w.insertWithRetry(ctx, w.stockTable, []any{&row})
}

func (w *Writer) insertWithRetry(ctx context.Context, table string, rows []any) error {
	backoff := w.initialBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := w.client.InsertRows(ctx, table, rows)
		if err == nil {
			return nil
		}
		if attempt >= w.maxAttempts || !isRetryable(err) {
			return fmt.Errorf("insert %s rows: %w", table, err)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff = min(backoff*2, w.maximumBackoff)
	}
}

func isRetryable(err error) bool {
	var pme cbigquery.PutMultiError
	if errors.As(err, &pme) {
		if len(pme) == 0 {
			return false
		}
		for _, rowErr := range pme {
			if !isRetryable(rowErr.Errors) {
				return false
			}
		}
		return true
	}

	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		if len(multi) == 0 {
			return false
		}
		for _, inner := range multi {
			if !isRetryable(inner) {
				return false
			}
		}
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusRequestTimeout, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.Aborted, codes.DeadlineExceeded, codes.Internal, codes.ResourceExhausted, codes.Unavailable:
			return true
		}
	}
	return false
}
