package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storepos-backend/internal/cron"
	"github.com/angelmondragon/storepos-backend/internal/ledger"
	product "github.com/angelmondragon/storepos-backend/internal/products"
	"github.com/angelmondragon/storepos-backend/pkg/config"
	"github.com/angelmondragon/storepos-backend/pkg/db"
	"github.com/angelmondragon/storepos-backend/pkg/instance"
	"github.com/angelmondragon/storepos-backend/pkg/logger"
	"github.com/angelmondragon/storepos-backend/pkg/metrics"
	"github.com/angelmondragon/storepos-backend/pkg/migrate"
	"github.com/angelmondragon/storepos-backend/pkg/outbox"
	"github.com/angelmondragon/storepos-backend/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run every job a single time and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       cfg.App.LogLevel,
		Version:     cfg.App.Version,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	var lock cron.Lock = &cron.LocalLock{}
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		lock, err = cron.NewRedisLock(redisClient, cron.LockKey(cfg.App.Env), 0)
		if err != nil {
			logg.Error(context.Background(), "failed to create cron lock", err)
			os.Exit(1)
		}
	}

	jobMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	registry, err := buildRegistry(cfg, logg, dbClient, jobMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  jobMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
		"jobs":     registry.Names(),
	})

	if *once {
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron run failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, jobMetrics *metrics.CronJobMetrics) (*cron.Registry, error) {
	gormDB := dbClient.DB()
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(gormDB))
	if err != nil {
		return nil, err
	}
	productSvc, err := product.NewService(product.ServiceParams{
		Repository:          product.NewRepository(gormDB),
		DB:                  dbClient,
		Ledger:              ledgerSvc,
		Logger:              logg,
		DefaultReorderLevel: cfg.Sales.LowStockThreshold,
	})
	if err != nil {
		return nil, err
	}

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(gormDB),
		Metrics:    jobMetrics,
		Retention:  time.Duration(cfg.Outbox.RetentionDays) * 24 * time.Hour,
		BatchSize:  cfg.Outbox.BatchSize * 10,
	})
	if err != nil {
		return nil, err
	}
	lowStock, err := cron.NewLowStockJob(cron.LowStockJobParams{
		Logger:   logg,
		Products: productSvc,
		Metrics:  jobMetrics,
	})
	if err != nil {
		return nil, err
	}
	drift, err := cron.NewStockDriftJob(cron.StockDriftJobParams{
		Logger:  logg,
		Ledger:  ledgerSvc,
		Metrics: jobMetrics,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(retention, lowStock, drift), nil
}
