package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/shopflow/pkg/models"
)

// Manual is a Scheduler driven explicitly by its caller: async jobs run on
// Drain, single jobs on RunDue and recurring jobs on Tick. It backs the
// one-shot CLI commands and deterministic tests.
type Manual struct {
	jobs

	logger *slog.Logger

	mu        sync.Mutex
	async     []models.Schedule
	singles   map[string]*models.Schedule
	recurring map[Cadence][]string
}

func NewManual(logger *slog.Logger) *Manual {
	return &Manual{
		logger:    logger.With("module", "scheduler"),
		singles:   map[string]*models.Schedule{},
		recurring: map[Cadence][]string{},
	}
}

func (m *Manual) ScheduleSingle(_ context.Context, at time.Time, job string, args map[string]any) error {
	if _, err := m.get(job); err != nil {
		return err
	}

	entry, err := models.NewSingleSchedule(uuid.NewString(), job, maps.Clone(args), at)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.singles[entry.Key()] = entry

	return nil
}

func (m *Manual) ScheduleRecurring(_ context.Context, cadence Cadence, job string) error {
	if _, err := m.get(job); err != nil {
		return err
	}

	if !cadence.Valid() {
		return ErrUnknownCadence
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, name := range m.recurring[cadence] {
		if name == job {
			return nil
		}
	}

	m.recurring[cadence] = append(m.recurring[cadence], job)

	return nil
}

func (m *Manual) Cancel(_ context.Context, job string, args map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.singles, models.ScheduleKey(job, args))

	return nil
}

func (m *Manual) EnqueueAsync(_ context.Context, job string, args map[string]any) error {
	if _, err := m.get(job); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.async = append(m.async, models.Schedule{Job: job, Args: maps.Clone(args)})

	return nil
}

// Drain runs queued async jobs, including ones enqueued while draining,
// until none are left.
func (m *Manual) Drain(ctx context.Context) error {
	var errs []error

	for {
		m.mu.Lock()
		if len(m.async) == 0 {
			m.mu.Unlock()

			return errors.Join(errs...)
		}

		next := m.async[0]
		m.async = m.async[1:]
		m.mu.Unlock()

		if err := m.call(ctx, next.Job, next.Args); err != nil {
			errs = append(errs, err)
		}
	}
}

// RunDue runs and removes the single jobs due at now, earliest first.
func (m *Manual) RunDue(ctx context.Context, now time.Time) error {
	m.mu.Lock()

	var due []*models.Schedule

	for key, s := range m.singles {
		if s.IsDue(now) {
			due = append(due, s)
			delete(m.singles, key)
		}
	}
	m.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].NextDueAt.Before(due[j].NextDueAt) })

	var errs []error

	for _, s := range due {
		if err := m.call(ctx, s.Job, s.Args); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Tick runs every recurring job registered for the cadence.
func (m *Manual) Tick(ctx context.Context, cadence Cadence) error {
	m.mu.Lock()
	names := append([]string(nil), m.recurring[cadence]...)
	m.mu.Unlock()

	var errs []error

	for _, name := range names {
		if err := m.call(ctx, name, nil); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (m *Manual) Pending() []*models.Schedule {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.Schedule, 0, len(m.singles))
	for _, s := range m.singles {
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].NextDueAt.Before(out[j].NextDueAt) })

	return out
}

func (m *Manual) Recurring(cadence Cadence) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.recurring[cadence]...)
}

func (m *Manual) call(ctx context.Context, name string, args map[string]any) error {
	job, err := m.get(name)
	if err != nil {
		return err
	}

	m.logger.DebugContext(ctx, "Running job", "job", name)

	return job(ctx, args)
}
