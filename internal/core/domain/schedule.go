package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Mode is the operating mode of the relay under the schedule engine.
type Mode int

const (
	ModeAuto Mode = iota
	ModeOn
	ModeOff
)

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "AUTO"
	case ModeOn:
		return "ON"
	case ModeOff:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

var ErrInvalidMode = errors.New("invalid mode")

// ParseMode accepts AUTO, ON and OFF in any letter case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AUTO":
		return ModeAuto, nil
	case "ON":
		return ModeOn, nil
	case "OFF":
		return ModeOff, nil
	}
	return ModeAuto, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

const minutesPerDay = 24 * 60

// TimeOfDay is a wall clock time with minute resolution, as minutes since midnight.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

func TimeOfDayOf(t time.Time) TimeOfDay {
	return NewTimeOfDay(t.Hour(), t.Minute())
}

// ParseTimeOfDay parses "HH:MM" (24h).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDayOf(t), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// ScheduleEntry is a time window with the thresholds that apply inside it.
type ScheduleEntry struct {
	Start TimeOfDay
	End   TimeOfDay
	Low   float64
	High  float64
}

// Contains reports whether t falls inside [Start, End). Windows with End before
// Start wrap past midnight; Start == End covers the whole day.
func (e ScheduleEntry) Contains(t TimeOfDay) bool {
	t = TimeOfDay(((int(t) % minutesPerDay) + minutesPerDay) % minutesPerDay)
	switch {
	case e.Start == e.End:
		return true
	case e.Start < e.End:
		return t >= e.Start && t < e.End
	default:
		return t >= e.Start || t < e.End
	}
}

func (e ScheduleEntry) Validate() error {
	if e.Low > e.High {
		return fmt.Errorf("schedule entry %s-%s: low %.2f greater than high %.2f", e.Start, e.End, e.Low, e.High)
	}
	if e.Start < 0 || e.Start >= minutesPerDay || e.End < 0 || e.End >= minutesPerDay {
		return fmt.Errorf("schedule entry %s-%s: time out of range", e.Start, e.End)
	}
	return nil
}
