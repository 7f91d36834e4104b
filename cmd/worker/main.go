package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storepos-backend/internal/analytics"
	"github.com/angelmondragon/storepos-backend/internal/customers"
	"github.com/angelmondragon/storepos-backend/pkg/bigquery"
	"github.com/angelmondragon/storepos-backend/pkg/config"
	"github.com/angelmondragon/storepos-backend/pkg/db"
	"github.com/angelmondragon/storepos-backend/pkg/enums"
	"github.com/angelmondragon/storepos-backend/pkg/instance"
	"github.com/angelmondragon/storepos-backend/pkg/logger"
	"github.com/angelmondragon/storepos-backend/pkg/metrics"
	"github.com/angelmondragon/storepos-backend/pkg/migrate"
	"github.com/angelmondragon/storepos-backend/pkg/outbox"
	"github.com/angelmondragon/storepos-backend/pkg/pubsub"
	"github.com/angelmondragon/storepos-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
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

	var redisPinger pinger
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
		redisPinger = redisClient
	}

	dispatcher, err := outbox.NewDispatcher(outbox.DispatcherParams{
		Config:     cfg.Outbox,
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		Metrics:    metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox dispatcher", err)
		os.Exit(1)
	}

	customerSvc, err := customers.NewService(customers.NewRepository(dbClient.DB()), dbClient, cfg.Sales.LoyaltyPointsPerUnit)
	if err != nil {
		logg.Error(context.Background(), "failed to create customer service", err)
		os.Exit(1)
	}
	loyalty, err := customers.NewLoyaltyHandler(customerSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create loyalty handler", err)
		os.Exit(1)
	}
	dispatcher.Register(loyalty.EventType(), loyalty)

	var pubsubPinger pinger
	if cfg.PubSub.Enabled() {
		pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub client", err)
			}
		}()
		forwarder, err := outbox.NewForwarder(pubsubClient, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create event forwarder", err)
			os.Exit(1)
		}
		for _, eventType := range enums.OutboxEventTypes() {
			dispatcher.Register(eventType, forwarder)
		}
		pubsubPinger = pubsubClient
	}

	var bigqueryPinger pinger
	if cfg.BigQuery.Enabled() {
		var create []bigquery.TableSpec
		if cfg.BigQuery.CreateTables {
			create = analytics.TableSpecs(cfg.BigQuery.SalesTable, cfg.BigQuery.StockTable)
		}
		bqClient, err := bigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, logg, create...)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap bigquery", err)
			os.Exit(1)
		}
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing bigquery client", err)
			}
		}()
		writer, err := analytics.NewWriter(bqClient, analytics.WriterConfig{
			SalesTable: cfg.BigQuery.SalesTable,
			StockTable: cfg.BigQuery.StockTable,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create analytics writer", err)
			os.Exit(1)
		}
		exporter, err := analytics.NewExporter(writer, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create analytics exporter", err)
			os.Exit(1)
		}
		for _, eventType := range exporter.EventTypes() {
			dispatcher.Register(eventType, exporter)
		}
		bigqueryPinger = bqClient
	}

	service, err := NewService(ServiceParams{
		Logger:     logg,
		DB:         dbClient,
		Redis:      redisPinger,
		PubSub:     pubsubPinger,
		BigQuery:   bigqueryPinger,
		Dispatcher: dispatcher,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"instance":     instance.GetID(),
		"driver":       dbClient.Dialect(),
		"event_export": cfg.PubSub.Enabled(),
		"analytics":    cfg.BigQuery.Enabled(),
	})
	if cfg.FeatureFlags.InProcessOutbox {
		logg.Warn(ctx, "api also dispatches the outbox in-process; both will share the table")
	}
	logg.Info(ctx, "starting outbox worker")

	if err := service.Run(ctx); err != nil {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "worker shutting down gracefully")
}
