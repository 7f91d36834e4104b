package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storepos-backend/api/routes"
	"github.com/angelmondragon/storepos-backend/internal/auth"
	"github.com/angelmondragon/storepos-backend/internal/customers"
	"github.com/angelmondragon/storepos-backend/internal/ledger"
	product "github.com/angelmondragon/storepos-backend/internal/products"
	"github.com/angelmondragon/storepos-backend/internal/sales"
	"github.com/angelmondragon/storepos-backend/internal/users"
	"github.com/angelmondragon/storepos-backend/pkg/config"
	"github.com/angelmondragon/storepos-backend/pkg/db"
	"github.com/angelmondragon/storepos-backend/pkg/logger"
	"github.com/angelmondragon/storepos-backend/pkg/metrics"
	"github.com/angelmondragon/storepos-backend/pkg/migrate"
	"github.com/angelmondragon/storepos-backend/pkg/outbox"
	"github.com/angelmondragon/storepos-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       cfg.App.LogLevel,
		Version:     cfg.App.Version,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, redisClient.Close()) }()
	} else {
		logg.Warn(ctx, "redis not configured; idempotency replay and login rate limits are disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	salesMetrics := metrics.NewSalesMetrics(registry)
	outboxMetrics := metrics.NewOutboxMetrics(registry)

	gormDB := dbClient.DB()
	outboxRepo := outbox.NewRepository(gormDB)
	emitter := outbox.NewService(outboxRepo, logg)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(gormDB))
	if err != nil {
		return err
	}
	productSvc, err := product.NewService(product.ServiceParams{
		Repository:          product.NewRepository(gormDB),
		DB:                  dbClient,
		Ledger:              ledgerSvc,
		Outbox:              emitter,
		Metrics:             salesMetrics,
		Logger:              logg,
		DefaultReorderLevel: cfg.Sales.LowStockThreshold,
	})
	if err != nil {
		return err
	}
	saleSvc, err := sales.NewService(sales.ServiceParams{
		Repository: sales.NewRepository(gormDB),
		DB:         dbClient,
		Stock:      productSvc,
		Outbox:     emitter,
		Metrics:    salesMetrics,
		Logger:     logg,
		Config:     cfg.Sales,
	})
	if err != nil {
		return err
	}
	customerSvc, err := customers.NewService(customers.NewRepository(gormDB), dbClient, cfg.Sales.LoyaltyPointsPerUnit)
	if err != nil {
		return err
	}
	userRepo := users.NewRepository(gormDB)
	var userOpts []users.Option
	if redisClient != nil {
		userOpts = append(userOpts, users.WithRevocations(redisClient, cfg.JWT.Expiration()))
	}
	userSvc, err := users.NewService(userRepo, cfg.Password, userOpts...)
	if err != nil {
		return err
	}
	authSvc, err := auth.NewService(auth.ServiceParams{UserRepo: userRepo, JWTConfig: cfg.JWT})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, registry, routes.Services{
			Auth:      authSvc,
			Products:  productSvc,
			Ledger:    ledgerSvc,
			Sales:     saleSvc,
			Customers: customerSvc,
			Users:     userSvc,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":               cfg.App.Env,
		"addr":              addr,
		"driver":            dbClient.Dialect(),
		"in_process_outbox": cfg.FeatureFlags.InProcessOutbox,
	})

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logg.Info(groupCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(groupCtx), shutdownTimeout)
		defer cancel()
		logg.Info(groupCtx, "api server shutting down")
		return server.Shutdown(shutdownCtx)
	})

	if cfg.FeatureFlags.InProcessOutbox {
		dispatcher, err := outbox.NewDispatcher(outbox.DispatcherParams{
			Config:     cfg.Outbox,
			Logger:     logg,
			DB:         dbClient,
			Repository: outboxRepo,
			Metrics:    outboxMetrics,
		})
		if err != nil {
			return err
		}
		loyalty, err := customers.NewLoyaltyHandler(customerSvc, logg)
		if err != nil {
			return err
		}
		dispatcher.Register(loyalty.EventType(), loyalty)
		group.Go(func() error {
			return dispatcher.Run(groupCtx)
		})
	}

	return group.Wait()
}
