package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule is a pending scheduler entry: either a single-shot job due at
// NextDueAt or a recurring job with a cron Spec.
type Schedule struct {
	ID string `json:"id" validate:"required"`

	// Job names the registered job to run.
	Job string `json:"job" validate:"required"`

	Args map[string]any `json:"args,omitempty"`

	// Spec is set for recurring entries only.
	Spec string `json:"spec,omitempty"`

	NextDueAt time.Time `json:"next_due_at" validate:"required"`

	CreatedAt time.Time `json:"created_at"`
}

var ErrInvalidSchedule = errors.New("invalid schedule configuration")

var specParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewSingleSchedule creates a one-off entry due at the given time.
func NewSingleSchedule(id, job string, args map[string]any, at time.Time) (*Schedule, error) {
	s := &Schedule{
		ID:        id,
		Job:       job,
		Args:      args,
		NextDueAt: at.UTC(),
		CreatedAt: time.Now().UTC(),
	}

	return s, s.Validate()
}

// NewRecurringSchedule creates a recurring entry with its first due time
// computed from now.
func NewRecurringSchedule(id, job, spec string, now time.Time) (*Schedule, error) {
	s := &Schedule{
		ID:        id,
		Job:       job,
		Spec:      spec,
		CreatedAt: now.UTC(),
	}

	err := s.Validate()
	if err != nil {
		return nil, err
	}

	return s, s.Advance(now)
}

// Advance moves a recurring entry to its next due time after ref.
func (s *Schedule) Advance(ref time.Time) error {
	if s.Spec == "" {
		return ErrInvalidSchedule
	}

	sched, err := specParser.Parse(s.Spec)
	if err != nil {
		return err
	}

	s.NextDueAt = sched.Next(ref).UTC()

	return nil
}

func (s *Schedule) IsRecurring() bool {
	return s.Spec != ""
}

func (s *Schedule) IsDue(now time.Time) bool {
	return !s.NextDueAt.After(now)
}

// Key identifies the entry by job and arguments, so equal requests map to
// the same entry.
func (s *Schedule) Key() string {
	return ScheduleKey(s.Job, s.Args)
}

func ScheduleKey(job string, args map[string]any) string {
	if len(args) == 0 {
		return job
	}

	b, err := json.Marshal(args)
	if err != nil {
		return job
	}

	return job + ":" + string(b)
}

func (s *Schedule) Validate() error {
	if s.ID == "" || s.Job == "" {
		return ErrInvalidSchedule
	}

	if s.Spec != "" {
		_, err := specParser.Parse(s.Spec)

		return err
	}

	if s.NextDueAt.IsZero() {
		return ErrInvalidSchedule
	}

	return nil
}
