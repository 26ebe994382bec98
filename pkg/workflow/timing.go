package workflow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dukex/shopflow/pkg/datalayer"
	"github.com/dukex/shopflow/pkg/models"
)

var ErrInvalidTiming = errors.New("invalid workflow timing")

// DueDate computes when a workflow matched at now should run.
func (s *Service) DueDate(ctx context.Context, wf *models.Workflow, dl *datalayer.DataLayer, now time.Time) (time.Time, error) {
	timing := wf.Timing

	switch timing.Kind() {
	case models.TimingImmediate:
		return now, nil
	case models.TimingDelayed:
		return now.Add(timing.Delay.Std()), nil
	case models.TimingScheduled:
		return NextScheduled(timing, now, s.settings.Location(ctx))
	case models.TimingFixed:
		if timing.FixedAt == nil {
			return time.Time{}, fmt.Errorf("%w: fixed timing without a date", ErrInvalidTiming)
		}

		return *timing.FixedAt, nil
	case models.TimingDatetime:
		due, ok := s.resolver.Time(timing.Variable, dl)
		if !ok {
			return time.Time{}, fmt.Errorf("%w: %q did not resolve to a date", ErrInvalidTiming, timing.Variable)
		}

		return due, nil
	default:
		return time.Time{}, fmt.Errorf("%w: unknown type %q", ErrInvalidTiming, timing.Type)
	}
}

// NextScheduled returns the first time of day on an allowed weekday that is
// at least MinWait after now. Weekdays are evaluated in loc; no weekdays
// means every day.
func NextScheduled(timing models.Timing, now time.Time, loc *time.Location) (time.Time, error) {
	at, err := time.Parse("15:04", timing.TimeOfDay)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: time of day %q: %w", ErrInvalidTiming, timing.TimeOfDay, err)
	}

	earliest := now.Add(timing.MinWait.Std()).In(loc)
	day := time.Date(earliest.Year(), earliest.Month(), earliest.Day(), at.Hour(), at.Minute(), 0, 0, loc)

	for range 8 {
		if !day.Before(earliest) && (len(timing.Weekdays) == 0 || slices.Contains(timing.Weekdays, day.Weekday())) {
			return day, nil
		}

		day = time.Date(day.Year(), day.Month(), day.Day()+1, at.Hour(), at.Minute(), 0, 0, loc)
	}

	return time.Time{}, fmt.Errorf("%w: no matching weekday", ErrInvalidTiming)
}
