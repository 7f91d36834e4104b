package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storepos-backend/pkg/logger"
)

const defaultHeartbeat = 30 * time.Second

type pinger interface {
	Ping(context.Context) error
}

type eventDispatcher interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger     *logger.Logger
	DB         pinger
	Redis      pinger
	PubSub     pinger
	BigQuery   pinger
	Dispatcher eventDispatcher
	Heartbeat  time.Duration
}

// Service runs the outbox dispatcher outside the api process.
type Service struct {
	logg       *logger.Logger
	db         pinger
	redis      pinger
	pubsub     pinger
	bigquery   pinger
	dispatcher eventDispatcher
	heartbeat  time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Dispatcher == nil {
		return nil, errors.New("outbox dispatcher is required")
	}
	heartbeat := params.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &Service{
		logg:       params.Logger,
		db:         params.DB,
		redis:      params.Redis,
		pubsub:     params.PubSub,
		bigquery:   params.BigQuery,
		dispatcher: params.Dispatcher,
		heartbeat:  heartbeat,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db); err != nil {
		return err
	}
	optional := map[string]pinger{"redis": s.redis, "pubsub": s.pubsub, "bigquery": s.bigquery}
	for _, name := range []string{"redis", "pubsub", "bigquery"} {
		if optional[name] == nil {
			continue
		}
		if err := pingDependency(ctx, s.logg, name, optional[name]); err != nil {
			return err
		}
	}
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, dep pinger) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := dep.Ping(pingCtx); err != nil {
		logg.Error(logg.WithField(ctx, "dependency", name), "dependency not ready", err)
		return fmt.Errorf("%s ping: %w", name, err)
	}
	return nil
}

// Run blocks until ctx ends or the dispatcher exits.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.dispatcher.Run(ctx)
	}()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "worker context canceled")
			if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(ctx, "dispatcher stopped unexpectedly", err)
				return err
			}
			return nil
		case <-ticker.C:
			s.logg.Info(ctx, "worker heartbeat")
		}
	}
}
