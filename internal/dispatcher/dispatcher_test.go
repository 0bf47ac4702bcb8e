package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/venue-scraper/internal/venue"
	"github.com/JakeFAU/venue-scraper/internal/worker"
)

type nopRunner struct{}

func (nopRunner) Run(context.Context, string) venue.Status { return venue.StatusReady }

// TestDispatcherRunStartsWorkers ensures workers begin processing and stop on cancel.
func TestDispatcherRunStartsWorkers(t *testing.T) {
	t.Parallel()

	queue := &blockingQueue{started: make(chan struct{}, 1)}
	dispatch := New(queue, []*worker.Worker{worker.New(0, queue, nopRunner{}, zap.NewNop())})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dispatch.Run(ctx)
		close(done)
	}()

	select {
	case <-queue.started:
	case <-time.After(time.Second):
		t.Fatal("worker did not begin dequeuing")
	}

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancel")
	}
}

// TestDispatcherEnqueueForwardsErrors verifies queue errors are wrapped for callers.
func TestDispatcherEnqueueForwardsErrors(t *testing.T) {
	t.Parallel()

	dispatch := New(&errorQueue{err: errors.New("boom")}, nil)
	require.EqualError(t, dispatch.Enqueue(context.Background(), "t1"), "queue enqueue: boom")
}

func TestNewPool(t *testing.T) {
	t.Parallel()

	require.Equal(t, 4, NewPool(4, &errorQueue{}, nopRunner{}, nil).Size())
	require.Equal(t, 1, NewPool(0, &errorQueue{}, nopRunner{}, nil).Size())
}

type blockingQueue struct {
	started chan struct{}
}

func (q *blockingQueue) Enqueue(context.Context, string) error {
	return nil
}

func (q *blockingQueue) Dequeue(ctx context.Context) (string, error) {
	select {
	case q.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return "", fmt.Errorf("blocking dequeue canceled: %w", ctx.Err())
}

type errorQueue struct {
	err error
}

func (q *errorQueue) Enqueue(context.Context, string) error {
	return q.err
}

func (q *errorQueue) Dequeue(context.Context) (string, error) {
	return "", nil
}
