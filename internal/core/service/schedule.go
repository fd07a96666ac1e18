package service

import (
	"time"

	"github.com/berfenger/kal2mqtt/internal/core/domain"
	"github.com/berfenger/kal2mqtt/internal/core/port"
)

// Decide computes the desired relay level.
//
// ModeOn and ModeOff force the level. In ModeAuto the first entry of schedule
// whose window contains now is selected and its thresholds are applied with
// hysteresis: at or below Low the relay turns on, at or above High it turns off,
// and in between previous is kept. Without a matching entry previous is kept.
func Decide(now time.Time, temperature float64, schedule []domain.ScheduleEntry, mode domain.Mode, previous bool) bool {
	switch mode {
	case domain.ModeOn:
		return true
	case domain.ModeOff:
		return false
	}

	entry, ok := ActiveEntry(now, schedule)
	if !ok {
		return previous
	}
	switch {
	case temperature <= entry.Low:
		return true
	case temperature >= entry.High:
		return false
	default:
		return previous
	}
}

// ActiveEntry returns the first entry, in declaration order, whose window contains now.
func ActiveEntry(now time.Time, schedule []domain.ScheduleEntry) (domain.ScheduleEntry, bool) {
	tod := domain.TimeOfDayOf(now)
	for _, entry := range schedule {
		if entry.Contains(tod) {
			return entry, true
		}
	}
	return domain.ScheduleEntry{}, false
}

type DefaultScheduleLogic struct {
	Entries []domain.ScheduleEntry
}

func (l *DefaultScheduleLogic) Decide(now time.Time, temperature float64, mode domain.Mode, previous bool) bool {
	return Decide(now, temperature, l.Entries, mode, previous)
}

func (l *DefaultScheduleLogic) Schedule() []domain.ScheduleEntry {
	return l.Entries
}

// ensure interface compliance
var _ port.ScheduleLogic = (*DefaultScheduleLogic)(nil)
