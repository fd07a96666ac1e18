package port

import (
	"time"

	"github.com/berfenger/kal2mqtt/internal/core/domain"
)

type ScheduleLogic interface {
	Decide(now time.Time, temperature float64, mode domain.Mode, previous bool) bool
	Schedule() []domain.ScheduleEntry
}
