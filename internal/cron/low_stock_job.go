package cron

import (
	"context"
	"fmt"

	product "github.com/angelmondragon/storepos-backend/internal/products"
	"github.com/angelmondragon/storepos-backend/pkg/logger"
	"github.com/angelmondragon/storepos-backend/pkg/metrics"
)

const lowStockScanLimit = 200

type lowStockLister interface {
	ListLowStock(ctx context.Context, limit int) ([]product.ProductDTO, error)
}

type LowStockJobParams struct {
	Logger   *logger.Logger
	Products lowStockLister
	Metrics  *metrics.CronJobMetrics
	Limit    int
}

// NewLowStockJob reports active products at or below their reorder level.
func NewLowStockJob(params LowStockJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product lister required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = lowStockScanLimit
	}
	return &lowStockJob{
		logg:     params.Logger,
		products: params.Products,
		metrics:  params.Metrics,
		limit:    limit,
	}, nil
}

type lowStockJob struct {
	logg     *logger.Logger
	products lowStockLister
	metrics  *metrics.CronJobMetrics
	limit    int
}

func (j *lowStockJob) Name() string { return "low-stock-report" }

func (j *lowStockJob) Run(ctx context.Context) error {
	rows, err := j.products.ListLowStock(ctx, j.limit)
	if err != nil {
		return fmt.Errorf("list low stock: %w", err)
	}
	j.metrics.SetFindings(j.Name(), len(rows))
	for _, p := range rows {
		j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
			"product_id":     p.ID,
			"product_name":   p.Name,
			"stock_quantity": p.StockQuantity,
			"reorder_level":  p.ReorderLevel,
		}), "product below reorder level")
	}
	j.logg.Info(j.logg.WithField(ctx, "low_stock_count", len(rows)), "low stock scan complete")
	return nil
}
