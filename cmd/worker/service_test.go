package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storepos-backend/pkg/logger"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeDispatcher struct {
	started chan struct{}
	err     error
}

func (f *fakeDispatcher) Run(ctx context.Context) error {
	close(f.started)
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return nil
}

func newTestService(t *testing.T, db, redis, pubsub pinger, d eventDispatcher) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:     logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard}),
		DB:         db,
		Redis:      redis,
		PubSub:     pubsub,
		Dispatcher: d,
		Heartbeat:  time.Hour,
	})
	require.NoError(t, err)
	return svc
}

func TestRunFailsWhenDatabaseIsDown(t *testing.T) {
	d := &fakeDispatcher{started: make(chan struct{})}
	svc := newTestService(t, fakePinger{err: errors.New("refused")}, nil, nil, d)

	err := svc.Run(context.Background())
	require.ErrorContains(t, err, "database ping")
	select {
	case <-d.started:
		t.Fatal("dispatcher must not start before dependencies are ready")
	default:
	}
}

func TestRunStopsWithContext(t *testing.T) {
	d := &fakeDispatcher{started: make(chan struct{})}
	svc := newTestService(t, fakePinger{}, fakePinger{}, fakePinger{}, d)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	<-d.started
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestRunReturnsDispatcherError(t *testing.T) {
	d := &fakeDispatcher{started: make(chan struct{}), err: errors.New("ping failed")}
	svc := newTestService(t, fakePinger{}, nil, nil, d)

	require.EqualError(t, svc.Run(context.Background()), "ping failed")
}

func TestRunChecksConfiguredPubSub(t *testing.T) {
	d := &fakeDispatcher{started: make(chan struct{})}
	svc := newTestService(t, fakePinger{}, nil, fakePinger{err: errors.New("topic missing")}, d)

	require.ErrorContains(t, svc.Run(context.Background()), "pubsub ping")
}
