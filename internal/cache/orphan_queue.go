// Package cache holds Redis-backed work queues.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Orphan is an account, and possibly its avatar, that a failed compensating
// delete left behind.
type Orphan struct {
	AccountID      string    `json:"account_id"`
	AvatarPublicID string    `json:"avatar_public_id,omitempty"`
	Attempts       int       `json:"attempts"`
	QueuedAt       time.Time `json:"queued_at"`
}

// OrphanQueue is a FIFO of cleanup work
type OrphanQueue interface {
	Push(ctx context.Context, o Orphan) error
	// Pop returns false when the queue is empty.
	Pop(ctx context.Context) (Orphan, bool, error)
	Len(ctx context.Context) (int64, error)
}

// NewRedisClient connects and pings.
func NewRedisClient(ctx context.Context, addr, password string, db int, logger *slog.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}

	logger.Info("connected to redis", slog.String("address", addr))
	return rdb, nil
}

// RedisOrphanQueue keeps orphans in a Redis list so they survive restarts.
type RedisOrphanQueue struct {
	client *redis.Client
	key    string
}

func NewRedisOrphanQueue(client *redis.Client, key string) *RedisOrphanQueue {
	return &RedisOrphanQueue{client: client, key: key}
}

func (q *RedisOrphanQueue) Push(ctx context.Context, o Orphan) error {
	if o.QueuedAt.IsZero() {
		o.QueuedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode orphan: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("redis rpush %s: %w", q.key, err)
	}
	return nil
}

func (q *RedisOrphanQueue) Pop(ctx context.Context) (Orphan, bool, error) {
	payload, err := q.client.LPop(ctx, q.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Orphan{}, false, nil
	}
	if err != nil {
		return Orphan{}, false, fmt.Errorf("redis lpop %s: %w", q.key, err)
	}

	var o Orphan
	if err := json.Unmarshal(payload, &o); err != nil {
		return Orphan{}, false, fmt.Errorf("decode orphan: %w", err)
	}
	return o, true, nil
}

func (q *RedisOrphanQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// MemoryOrphanQueue is used when Redis is not configured. Entries are lost on
// restart; the stale-account sweep still catches what remains in the database.
type MemoryOrphanQueue struct {
	mu    sync.Mutex
	items []Orphan
}

func NewMemoryOrphanQueue() *MemoryOrphanQueue {
	return &MemoryOrphanQueue{}
}

func (q *MemoryOrphanQueue) Push(_ context.Context, o Orphan) error {
	if o.QueuedAt.IsZero() {
		o.QueuedAt = time.Now().UTC()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, o)
	return nil
}

func (q *MemoryOrphanQueue) Pop(_ context.Context) (Orphan, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Orphan{}, false, nil
	}
	o := q.items[0]
	q.items = q.items[1:]
	return o, true, nil
}

func (q *MemoryOrphanQueue) Len(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}
