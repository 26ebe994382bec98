package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker acquires an expiring lock. Locks are never released early.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Guard suppresses overlapping invocations of a cadence job across
// processes by taking the cadence lock before running it.
type Guard struct {
	locker   Locker
	cooldown func(ctx context.Context) time.Duration
	logger   *slog.Logger
}

func NewGuard(logger *slog.Logger, locker Locker, cooldown func(ctx context.Context) time.Duration) *Guard {
	return &Guard{
		locker:   locker,
		cooldown: cooldown,
		logger:   logger.With("module", "scheduler_guard"),
	}
}

// TTL is the configured cooldown, capped below the cadence interval so
// the next tick can take the lock.
func (g *Guard) TTL(ctx context.Context, cadence Cadence) time.Duration {
	ttl := g.cooldown(ctx)

	if limit := cadence.Interval() - 5*time.Second; limit > 0 && ttl > limit {
		ttl = limit
	}

	return max(ttl, time.Second)
}

func (g *Guard) Wrap(cadence Cadence, name string, job Job) Job {
	key := fmt.Sprintf("shopflow:lock:%s:%s", cadence, name)

	return func(ctx context.Context, args map[string]any) error {
		ok, err := g.locker.Acquire(ctx, key, g.TTL(ctx, cadence))
		if err != nil {
			return fmt.Errorf("failed to acquire cadence lock: %w", err)
		}

		if !ok {
			g.logger.DebugContext(ctx, "Cadence lock held, skipping", "job", name, "cadence", cadence)

			return nil
		}

		return job(ctx, args)
	}
}

type MemoryLocker struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func NewMemoryLocker(now func() time.Time) *MemoryLocker {
	if now == nil {
		now = time.Now
	}

	return &MemoryLocker{until: map[string]time.Time{}, now: now}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if exp, ok := l.until[key]; ok && now.Before(exp) {
		return false, nil
	}

	l.until[key] = now.Add(ttl)

	return true, nil
}

type RedisLocker struct {
	client redis.UniversalClient
}

func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set lock %s: %w", key, err)
	}

	return ok, nil
}
