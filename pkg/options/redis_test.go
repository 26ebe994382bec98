package options_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dukex/shopflow/pkg/options"
)

func startRedis(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	t.Cleanup(cancel)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	return "redis://" + endpoint + "/0"
}

func TestRedis_GetSetDelete(t *testing.T) {
	url := startRedis(t)
	ctx := t.Context()

	store, err := options.NewRedis(ctx, url)
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	_, ok, err := store.Get(ctx, options.QueueBatchSize)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, options.QueueBatchSize, "10"))

	v, ok, err := store.Get(ctx, options.QueueBatchSize)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "10", v)

	require.NoError(t, store.Delete(ctx, options.QueueBatchSize))

	_, ok, err = store.Get(ctx, options.QueueBatchSize)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRedis_InvalidURL(t *testing.T) {
	_, err := options.NewRedis(t.Context(), "://nope")
	require.Error(t, err)
}
