// Package redis provides a Redis list-backed task queue shared across workers.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultKey is the list that holds pending task ids.
const DefaultKey = "venue:tasks"

const defaultBlock = 5 * time.Second

// listClient is the subset of the go-redis client the queue relies on.
type listClient interface {
	LPush(ctx context.Context, key string, values ...interface{}) *goredis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *goredis.StringSliceCmd
	Close() error
}

// Config controls the Redis queue.
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
	// Block bounds each BRPOP call so cancellation is observed promptly.
	Block time.Duration
}

// Queue pushes task ids with LPUSH and pops them with BRPOP.
type Queue struct {
	client listClient
	key    string
	block  time.Duration
}

// New dials Redis and returns a queue bound to cfg.Key.
func New(cfg Config) *Queue {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newQueue(client, cfg)
}

func newQueue(client listClient, cfg Config) *Queue {
	key := cfg.Key
	if key == "" {
		key = DefaultKey
	}
	block := cfg.Block
	if block <= 0 {
		block = defaultBlock
	}
	return &Queue{client: client, key: key, block: block}
}

// Enqueue appends a task id to the list.
func (q *Queue) Enqueue(ctx context.Context, taskID string) error {
	if err := q.client.LPush(ctx, q.key, taskID).Err(); err != nil {
		return fmt.Errorf("failed to push task %s to %s: %w", taskID, q.key, err)
	}
	return nil
}

// Dequeue blocks until a task id is available or ctx ends.
func (q *Queue) Dequeue(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("dequeue canceled: %w", err)
		}
		result, err := q.client.BRPop(ctx, q.block, q.key).Result()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				continue // block window elapsed with no task
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", fmt.Errorf("dequeue canceled: %w", ctxErr)
			}
			return "", fmt.Errorf("failed to pop task from %s: %w", q.key, err)
		}
		// BRPOP replies with [key, value].
		if len(result) != 2 {
			return "", fmt.Errorf("unexpected BRPOP reply of length %d", len(result))
		}
		return result[1], nil
	}
}

// Close releases the Redis connection pool.
func (q *Queue) Close() error {
	if err := q.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}
