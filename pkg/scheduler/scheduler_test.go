package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/shopflow/pkg/log"
)

func TestCadence_Spec(t *testing.T) {
	tests := []struct {
		cadence Cadence
		want    string
	}{
		{EveryThirtySeconds, "@every 30s"},
		{EveryMinute, "@every 1m0s"},
		{EveryFifteenMinutes, "@every 15m0s"},
		{Daily, "@every 24h0m0s"},
	}

	for _, tt := range tests {
		t.Run(string(tt.cadence), func(t *testing.T) {
			got, err := tt.cadence.Spec()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Cadence("fortnightly").Spec()
	require.ErrorIs(t, err, ErrUnknownCadence)

	all := Cadences()
	assert.Len(t, all, 11)
	assert.Equal(t, EveryThirtySeconds, all[0])
	assert.Equal(t, Weekly, all[len(all)-1])
}

func TestManual_Drain(t *testing.T) {
	m := NewManual(log.Discard())
	ctx := t.Context()

	var seen []int

	m.Register("page", func(ctx context.Context, args map[string]any) error {
		n := args["n"].(int)
		seen = append(seen, n)

		if n < 3 {
			return m.EnqueueAsync(ctx, "page", map[string]any{"n": n + 1})
		}

		return nil
	})

	require.NoError(t, m.EnqueueAsync(ctx, "page", map[string]any{"n": 1}))
	assert.Empty(t, seen)

	require.NoError(t, m.Drain(ctx))
	assert.Equal(t, []int{1, 2, 3}, seen)

	require.ErrorIs(t, m.EnqueueAsync(ctx, "missing", nil), ErrUnknownJob)
}

func TestManual_SingleAndCancel(t *testing.T) {
	m := NewManual(log.Discard())
	ctx := t.Context()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	var ran []string

	m.Register("run", func(_ context.Context, args map[string]any) error {
		ran = append(ran, args["id"].(string))

		return nil
	})

	require.NoError(t, m.ScheduleSingle(ctx, now.Add(time.Hour), "run", map[string]any{"id": "b"}))
	require.NoError(t, m.ScheduleSingle(ctx, now.Add(time.Minute), "run", map[string]any{"id": "a"}))
	require.NoError(t, m.ScheduleSingle(ctx, now.Add(time.Minute), "run", map[string]any{"id": "c"}))
	require.NoError(t, m.Cancel(ctx, "run", map[string]any{"id": "c"}))
	assert.Len(t, m.Pending(), 2)

	require.NoError(t, m.RunDue(ctx, now.Add(2*time.Minute)))
	assert.Equal(t, []string{"a"}, ran)

	require.NoError(t, m.RunDue(ctx, now.Add(2*time.Hour)))
	assert.Equal(t, []string{"a", "b"}, ran)
	assert.Empty(t, m.Pending())
}

func TestManual_Tick(t *testing.T) {
	m := NewManual(log.Discard())
	ctx := t.Context()

	var calls int

	m.Register("scan", func(context.Context, map[string]any) error {
		calls++

		return errors.New("boom")
	})

	require.NoError(t, m.ScheduleRecurring(ctx, EveryTwoMinutes, "scan"))
	require.NoError(t, m.ScheduleRecurring(ctx, EveryTwoMinutes, "scan"))
	assert.Equal(t, []string{"scan"}, m.Recurring(EveryTwoMinutes))

	require.Error(t, m.Tick(ctx, EveryTwoMinutes))
	require.NoError(t, m.Tick(ctx, Daily))
	assert.Equal(t, 1, calls)

	require.ErrorIs(t, m.ScheduleRecurring(ctx, "never", "scan"), ErrUnknownCadence)
}

func TestGuard_SuppressesOverlap(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	locker := NewMemoryLocker(func() time.Time { return now })
	guard := NewGuard(log.Discard(), locker, func(context.Context) time.Duration { return 55 * time.Second })

	var calls int

	job := guard.Wrap(EveryMinute, "queue", func(context.Context, map[string]any) error {
		calls++

		return nil
	})

	ctx := t.Context()

	require.NoError(t, job(ctx, nil))
	require.NoError(t, job(ctx, nil))
	assert.Equal(t, 1, calls)

	now = now.Add(56 * time.Second)

	require.NoError(t, job(ctx, nil))
	assert.Equal(t, 2, calls)
}

func TestGuard_TTL(t *testing.T) {
	guard := NewGuard(log.Discard(), NewMemoryLocker(nil), func(context.Context) time.Duration { return 55 * time.Second })

	assert.Equal(t, 55*time.Second, guard.TTL(t.Context(), EveryMinute))
	assert.Equal(t, 25*time.Second, guard.TTL(t.Context(), EveryThirtySeconds))
	assert.Equal(t, 55*time.Second, guard.TTL(t.Context(), Daily))
}

func TestCron_EnqueueAsyncAndPastSingle(t *testing.T) {
	c := NewCron(log.Discard())
	ctx := t.Context()

	var calls atomic.Int32

	c.Register("job", func(context.Context, map[string]any) error {
		calls.Add(1)

		return nil
	})

	require.NoError(t, c.EnqueueAsync(ctx, "job", nil))
	require.NoError(t, c.ScheduleSingle(ctx, time.Now().Add(-time.Minute), "job", nil))
	c.Wait()

	assert.Equal(t, int32(2), calls.Load())
	require.ErrorIs(t, c.ScheduleSingle(ctx, time.Now(), "other", nil), ErrUnknownJob)
}

func TestCron_SingleRunsOnceAndCancel(t *testing.T) {
	c := NewCron(log.Discard())
	ctx := t.Context()

	done := make(chan string, 2)

	c.Register("job", func(_ context.Context, args map[string]any) error {
		done <- args["id"].(string)

		return nil
	})

	c.Start()
	t.Cleanup(c.Stop)

	require.NoError(t, c.ScheduleSingle(ctx, time.Now().Add(time.Second), "job", map[string]any{"id": "keep"}))
	require.NoError(t, c.ScheduleSingle(ctx, time.Now().Add(time.Second), "job", map[string]any{"id": "drop"}))
	require.NoError(t, c.Cancel(ctx, "job", map[string]any{"id": "drop"}))
	assert.Len(t, c.Pending(), 1)

	select {
	case id := <-done:
		assert.Equal(t, "keep", id)
	case <-time.After(5 * time.Second):
		t.Fatal("single job did not run")
	}

	select {
	case id := <-done:
		t.Fatalf("unexpected run of %s", id)
	case <-time.After(1500 * time.Millisecond):
	}

	assert.Empty(t, c.Pending())
}
