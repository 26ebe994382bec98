package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/dukex/shopflow/pkg/models"
)

// Cron is the in-process Scheduler backed by robfig/cron. Recurring jobs
// are wrapped by the Guard when one is configured.
type Cron struct {
	jobs

	cron   *cron.Cron
	guard  *Guard
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	entries map[string]cron.EntryID
	pending map[string]*models.Schedule
}

type CronOption func(*Cron)

func WithGuard(g *Guard) CronOption {
	return func(c *Cron) { c.guard = g }
}

func NewCron(logger *slog.Logger, opts ...CronOption) *Cron {
	logger = logger.With("module", "scheduler")

	c := &Cron{
		logger:  logger,
		entries: map[string]cron.EntryID{},
		pending: map[string]*models.Schedule{},
	}

	cl := cronLogger{logger: logger}
	c.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
	)

	c.ctx, c.cancel = context.WithCancel(context.Background())

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Cron) Start() {
	c.logger.Info("Starting scheduler")
	c.cron.Start()
}

// Stop halts the cron loop and waits for running and async jobs.
func (c *Cron) Stop() {
	c.logger.Info("Stopping scheduler")
	<-c.cron.Stop().Done()
	c.cancel()
	c.wg.Wait()
}

// Wait blocks until all async jobs enqueued so far have finished.
func (c *Cron) Wait() {
	c.wg.Wait()
}

func (c *Cron) ScheduleSingle(ctx context.Context, at time.Time, job string, args map[string]any) error {
	if _, err := c.get(job); err != nil {
		return err
	}

	entry, err := models.NewSingleSchedule(uuid.NewString(), job, maps.Clone(args), at)
	if err != nil {
		return err
	}

	if entry.IsDue(time.Now()) {
		return c.EnqueueAsync(ctx, job, args)
	}

	key := entry.Key()

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.cron.Remove(old)
	}

	id := c.cron.Schedule(once{at: entry.NextDueAt}, cron.FuncJob(func() {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok {
			c.cron.Remove(cur)
			delete(c.entries, key)
			delete(c.pending, key)
		}
		c.mu.Unlock()

		c.run(entry.Job, entry.Args)
	}))

	c.entries[key] = id
	c.pending[key] = entry

	c.logger.DebugContext(ctx, "Scheduled single job", "job", job, "at", entry.NextDueAt)

	return nil
}

func (c *Cron) ScheduleRecurring(ctx context.Context, cadence Cadence, job string) error {
	fn, err := c.get(job)
	if err != nil {
		return err
	}

	spec, err := cadence.Spec()
	if err != nil {
		return err
	}

	if c.guard != nil {
		fn = c.guard.Wrap(cadence, job, fn)
	}

	key := models.ScheduleKey(job, map[string]any{"cadence": string(cadence)})

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		return nil
	}

	id, err := c.cron.AddFunc(spec, func() {
		if err := fn(c.ctx, nil); err != nil {
			c.logger.Error("Recurring job failed", "job", job, "cadence", cadence, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", job, err)
	}

	c.entries[key] = id

	c.logger.InfoContext(ctx, "Scheduled recurring job", "job", job, "cadence", cadence)

	return nil
}

func (c *Cron) Cancel(ctx context.Context, job string, args map[string]any) error {
	key := models.ScheduleKey(job, args)

	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.entries[key]; ok {
		c.cron.Remove(id)
		delete(c.entries, key)
		delete(c.pending, key)

		c.logger.DebugContext(ctx, "Cancelled job", "job", job)
	}

	return nil
}

func (c *Cron) EnqueueAsync(_ context.Context, job string, args map[string]any) error {
	if _, err := c.get(job); err != nil {
		return err
	}

	args = maps.Clone(args)

	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		c.run(job, args)
	}()

	return nil
}

// Pending lists single-shot entries that have not run yet.
func (c *Cron) Pending() []*models.Schedule {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*models.Schedule, 0, len(c.pending))
	for _, s := range c.pending {
		out = append(out, s)
	}

	return out
}

func (c *Cron) run(name string, args map[string]any) {
	job, err := c.get(name)
	if err != nil {
		c.logger.Error("Job disappeared", "job", name, "error", err)

		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Job panicked", "job", name, "panic", r)
		}
	}()

	if err := job(c.ctx, args); err != nil {
		c.logger.Error("Job failed", "job", name, "error", err)
	}
}

// once fires a single time at the given instant.
type once struct {
	at time.Time
}

func (o once) Next(t time.Time) time.Time {
	if t.Before(o.at) {
		return o.at
	}

	return time.Time{}
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
