package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimingType selects when a matched workflow runs.
type TimingType string

const (
	TimingImmediate TimingType = "immediate"
	TimingDelayed   TimingType = "delayed"
	TimingScheduled TimingType = "scheduled"
	TimingFixed     TimingType = "fixed"
	TimingDatetime  TimingType = "datetime"
)

// Timing is a workflow's run-timing policy. The zero value is immediate.
type Timing struct {
	Type TimingType `json:"type,omitempty" validate:"omitempty,oneof=immediate delayed scheduled fixed datetime"`

	// Delay is the offset for delayed timing.
	Delay Duration `json:"delay,omitempty"`

	// TimeOfDay ("HH:MM" in the shop timezone), Weekdays and MinWait
	// configure scheduled timing.
	TimeOfDay string         `json:"time_of_day,omitempty" validate:"omitempty,datetime=15:04"`
	Weekdays  []time.Weekday `json:"weekdays,omitempty"    validate:"dive,min=0,max=6"`
	MinWait   Duration       `json:"min_wait,omitempty"`

	// FixedAt is the absolute run time for fixed timing.
	FixedAt *time.Time `json:"fixed_at,omitempty"`

	// Variable is a variable expression resolving to a time, for datetime
	// timing, e.g. "subscription.next_payment_date | modify: '-3 days'".
	Variable string `json:"variable,omitempty"`
}

func (t Timing) Kind() TimingType {
	if t.Type == "" {
		return TimingImmediate
	}

	return t.Type
}

// Duration marshals as a Go duration string and accepts either a string or
// a number of seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("failed to unmarshal duration: %w", err)
	}

	switch v := raw.(type) {
	case float64:
		*d = Duration(time.Duration(v) * time.Second)
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}

		*d = Duration(parsed)
	case nil:
		*d = 0
	default:
		return fmt.Errorf("invalid duration type %T", raw)
	}

	return nil
}
