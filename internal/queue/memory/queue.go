// Package memory provides queue implementations for local development.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned once the queue has been closed.
var ErrClosed = errors.New("queue closed")

// Queue is a bounded in-memory queue of task ids with context-aware operations.
type Queue struct {
	ch        chan string
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch:   make(chan string, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue pushes a task id into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, taskID string) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case <-q.done:
		return ErrClosed
	case q.ch <- taskID:
		return nil
	}
}

// Dequeue pops the next task id, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case <-q.done:
		return "", ErrClosed
	case taskID := <-q.ch:
		return taskID, nil
	}
}

// Len reports how many task ids are buffered.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops the queue; pending and future calls return ErrClosed.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}
