package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dukex/shopflow/pkg/options"
	"github.com/dukex/shopflow/pkg/scheduler"
)

var (
	ErrUnsupportedEventBus = errors.New("unsupported event bus provider")
	ErrUnsupportedStore    = errors.New("unsupported store url")
)

func isRedisURL(url string) bool {
	return strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://")
}

// NewOptionStore keeps options in memory unless url points at redis.
func NewOptionStore(ctx context.Context, url string) (options.Store, error) {
	switch {
	case url == "" || url == "memory":
		return options.NewMemory(), nil
	case isRedisURL(url):
		store, err := options.NewRedis(ctx, url)
		if err != nil {
			return nil, err
		}

		return store, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStore, url)
	}
}

// NewLocker returns the cadence locker for url. A redis option store is
// reused when url is empty, so every process sharing options also shares
// cadence locks.
func NewLocker(url string, store options.Store, now func() time.Time) (scheduler.Locker, func() error, error) {
	noop := func() error { return nil }

	switch {
	case url == "":
		if r, ok := store.(*options.Redis); ok {
			return scheduler.NewRedisLocker(r.Client()), noop, nil
		}

		return scheduler.NewMemoryLocker(now), noop, nil
	case url == "memory":
		return scheduler.NewMemoryLocker(now), noop, nil
	case isRedisURL(url):
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis url: %w", err)
		}

		client := redis.NewClient(opts)

		return scheduler.NewRedisLocker(client), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedStore, url)
	}
}
