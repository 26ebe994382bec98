// Package scheduler runs registered jobs once at a time, on recurring
// cadences, or asynchronously as soon as possible.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	ErrUnknownJob     = errors.New("unknown job")
	ErrUnknownCadence = errors.New("unknown cadence")
)

// Job is a unit of scheduled work. Args round-trip through JSON when a
// persistent backend is used, so numbers arrive as float64.
type Job func(ctx context.Context, args map[string]any) error

// Scheduler is the collaborator interface used by the engine.
type Scheduler interface {
	Register(name string, job Job)
	ScheduleSingle(ctx context.Context, at time.Time, job string, args map[string]any) error
	ScheduleRecurring(ctx context.Context, cadence Cadence, job string) error
	Cancel(ctx context.Context, job string, args map[string]any) error
	EnqueueAsync(ctx context.Context, job string, args map[string]any) error
}

type Cadence string

const (
	EveryThirtySeconds  Cadence = "every_thirty_seconds"
	EveryMinute         Cadence = "every_minute"
	EveryTwoMinutes     Cadence = "every_two_minutes"
	EveryFiveMinutes    Cadence = "every_five_minutes"
	EveryFifteenMinutes Cadence = "every_fifteen_minutes"
	EveryThirtyMinutes  Cadence = "every_thirty_minutes"
	Hourly              Cadence = "hourly"
	EveryFourHours      Cadence = "every_four_hours"
	Daily               Cadence = "daily"
	EveryTwoDays        Cadence = "every_two_days"
	Weekly              Cadence = "weekly"
)

var cadenceIntervals = map[Cadence]time.Duration{
	EveryThirtySeconds:  30 * time.Second,
	EveryMinute:         time.Minute,
	EveryTwoMinutes:     2 * time.Minute,
	EveryFiveMinutes:    5 * time.Minute,
	EveryFifteenMinutes: 15 * time.Minute,
	EveryThirtyMinutes:  30 * time.Minute,
	Hourly:              time.Hour,
	EveryFourHours:      4 * time.Hour,
	Daily:               24 * time.Hour,
	EveryTwoDays:        48 * time.Hour,
	Weekly:              7 * 24 * time.Hour,
}

func Cadences() []Cadence {
	out := make([]Cadence, 0, len(cadenceIntervals))
	for c := range cadenceIntervals {
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		return cadenceIntervals[out[i]] < cadenceIntervals[out[j]]
	})

	return out
}

func (c Cadence) Valid() bool {
	_, ok := cadenceIntervals[c]

	return ok
}

func (c Cadence) Interval() time.Duration {
	return cadenceIntervals[c]
}

// Spec is the robfig/cron expression for the cadence.
func (c Cadence) Spec() (string, error) {
	d, ok := cadenceIntervals[c]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCadence, c)
	}

	return "@every " + d.String(), nil
}

// jobs is the name to Job table shared by the scheduler implementations.
type jobs struct {
	mu    sync.RWMutex
	table map[string]Job
}

func (j *jobs) Register(name string, job Job) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.table == nil {
		j.table = map[string]Job{}
	}

	j.table[name] = job
}

func (j *jobs) get(name string) (Job, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	job, ok := j.table[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	return job, nil
}
