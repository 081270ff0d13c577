// Package cache tracks recently delivered webhook messages so retried
// deliveries are not answered twice.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers message ids for a limited time.
type Deduper interface {
	// FirstSeen records id and reports whether it had not been seen before.
	FirstSeen(ctx context.Context, id string) (bool, error)
}

// RedisDeduper shares seen ids between replicas through Redis.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisDeduper connects to Redis and verifies the connection.
func NewRedisDeduper(addr, password string, db int, ttl time.Duration) (*RedisDeduper, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newRedisDeduper(client, ttl), nil
}

func newRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl, prefix: "hrbot:webhook:"}
}

// FirstSeen implements Deduper with SET NX.
func (d *RedisDeduper) FirstSeen(ctx context.Context, id string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+id, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record message id: %w", err)
	}
	return ok, nil
}

// Forget removes id so a redelivery is processed again.
func (d *RedisDeduper) Forget(ctx context.Context, id string) error {
	if err := d.client.Del(ctx, d.prefix+id).Err(); err != nil {
		return fmt.Errorf("failed to forget message id: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (d *RedisDeduper) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (d *RedisDeduper) Close() error {
	return d.client.Close()
}

// MemoryDeduper is a process-local Deduper.
type MemoryDeduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

// NewMemoryDeduper creates an in-memory deduper.
func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	return &MemoryDeduper{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

// FirstSeen implements Deduper.
func (d *MemoryDeduper) FirstSeen(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, exp := range d.seen {
		if now.After(exp) {
			delete(d.seen, k)
		}
	}
	if _, ok := d.seen[id]; ok {
		return false, nil
	}
	d.seen[id] = now.Add(d.ttl)
	return true, nil
}

// Forget implements Deduper.
func (d *MemoryDeduper) Forget(_ context.Context, id string) error {
	d.mu.Lock()
	delete(d.seen, id)
	d.mu.Unlock()
	return nil
}
