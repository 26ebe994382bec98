package triggers

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/shopflow/pkg/actions"
	"github.com/dukex/shopflow/pkg/models"
)

const (
	OptionTimeOfDay = "time_of_day"
	OptionWeekdays  = "weekdays"
)

// Schedule is the time-of-day and day-of-week window in which a batched
// workflow runs, at most once per day.
type Schedule struct {
	Hour     int
	Minute   int
	Weekdays []time.Weekday
}

// scheduleFields are composed into every batched trigger.
func scheduleFields() []actions.Field {
	return []actions.Field{
		{Name: OptionTimeOfDay, Title: "Time of Day", Type: actions.FieldText, Default: "00:00",
			Description: "Earliest local time (HH:MM) the workflow runs each day."},
		{Name: OptionWeekdays, Title: "Days of the Week", Type: actions.FieldText,
			Description: "Comma separated days (monday, tuesday, ...). Leave empty for every day."},
	}
}

// timeOfDay is embedded by batched triggers.
type timeOfDay struct{}

func (timeOfDay) ScheduleFor(wf *models.Workflow) (Schedule, error) {
	return ParseSchedule(stringOption(wf, OptionTimeOfDay), listOption(wf, OptionWeekdays))
}

func ParseSchedule(at string, days []string) (Schedule, error) {
	var s Schedule

	if at != "" {
		t, err := time.Parse("15:04", at)
		if err != nil {
			return s, fmt.Errorf("invalid time of day %q: %w", at, err)
		}

		s.Hour, s.Minute = t.Hour(), t.Minute()
	}

	for _, day := range days {
		wd, ok := parseWeekday(day)
		if !ok {
			return s, fmt.Errorf("invalid weekday %q", day)
		}

		if !slices.Contains(s.Weekdays, wd) {
			s.Weekdays = append(s.Weekdays, wd)
		}
	}

	return s, nil
}

// Due reports whether now, in loc, is on an allowed weekday at or after the
// time of day.
func (s Schedule) Due(now time.Time, loc *time.Location) bool {
	start, ok := s.Start(now, loc)

	return ok && !now.Before(start)
}

// Start is the time of day on now's local day, or false when that day is
// not an allowed weekday.
func (s Schedule) Start(now time.Time, loc *time.Location) (time.Time, bool) {
	local := now.In(loc)

	if len(s.Weekdays) > 0 && !slices.Contains(s.Weekdays, local.Weekday()) {
		return time.Time{}, false
	}

	return time.Date(local.Year(), local.Month(), local.Day(), s.Hour, s.Minute, 0, 0, loc), true
}

// Day is the local calendar day of now, used to run once per day.
func (s Schedule) Day(now time.Time, loc *time.Location) string {
	return now.In(loc).Format(time.DateOnly)
}

func parseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))

	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n <= 7 {
		return time.Weekday(n % 7), true
	}

	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, true
		}
	}

	return 0, false
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)

	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
