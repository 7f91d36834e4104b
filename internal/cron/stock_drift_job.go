package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storepos-backend/internal/ledger"
	"github.com/angelmondragon/storepos-backend/pkg/logger"
	"github.com/angelmondragon/storepos-backend/pkg/metrics"
)

const stockDriftScanLimit = 500

type driftReconciler interface {
	Reconcile(ctx context.Context, limit int) ([]ledger.DriftDTO, error)
}

type StockDriftJobParams struct {
	Logger  *logger.Logger
	Ledger  driftReconciler
	Metrics *metrics.CronJobMetrics
	Limit   int
}

// NewStockDriftJob compares each product's stock with its latest ledger entry
// and logs every mismatch. It never corrects stock on its own.
func NewStockDriftJob(params StockDriftJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger reconciler required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = stockDriftScanLimit
	}
	return &stockDriftJob{
		logg:    params.Logger,
		ledger:  params.Ledger,
		metrics: params.Metrics,
		limit:   limit,
	}, nil
}

type stockDriftJob struct {
	logg    *logger.Logger
	ledger  driftReconciler
	metrics *metrics.CronJobMetrics
	limit   int
}

func (j *stockDriftJob) Name() string { return "stock-drift" }

func (j *stockDriftJob) Run(ctx context.Context) error {
	drifts, err := j.ledger.Reconcile(ctx, j.limit)
	if err != nil {
		return fmt.Errorf("reconcile stock: %w", err)
	}
	j.metrics.SetFindings(j.Name(), len(drifts))
	for _, d := range drifts {
		j.logg.Error(j.logg.WithFields(ctx, map[string]any{
			"product_id":      d.ProductID,
			"product_name":    d.ProductName,
			"stock_quantity":  d.StockQuantity,
			"ledger_quantity": d.LedgerQuantity,
			"last_entry_id":   d.LastEntryID,
		}), "stock does not match ledger", fmt.Errorf("drift of %d", d.StockQuantity-d.LedgerQuantity))
	}
	return nil
}
