package supervisor

import (
	"context"
	"time"

	"github.com/nature40/radiotracking-go/internal/config"
)

// Schedule is the supervisor's view of the configured daily intervals:
// it tracks whether "now" falls inside any interval, so Supervisor can
// start/stop all workers on interval transitions, per spec.md §4.7.
type Schedule struct {
	intervals []config.ScheduleInterval
	wasActive bool
	started   bool // has the first evaluation happened yet
}

// NewSchedule builds a Schedule from validated, non-overlapping
// intervals (overlap is rejected earlier, at config load time).
func NewSchedule(intervals []config.ScheduleInterval) *Schedule {
	return &Schedule{intervals: intervals}
}

// active reports whether t's local time-of-day falls within any
// configured interval. An empty schedule is always active (no schedule
// configured means "always on").
func (sch *Schedule) active(t time.Time) bool {
	if len(sch.intervals) == 0 {
		return true
	}
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	tod := t.Sub(midnight)
	for _, iv := range sch.intervals {
		if tod >= iv.Start && tod < iv.Stop {
			return true
		}
	}
	return false
}

// applySchedule starts all workers on entering an active interval and
// stops them on leaving one, per spec.md §4.7.
func (s *Supervisor) applySchedule(ctx context.Context, sch *Schedule, now time.Time) {
	active := sch.active(now)
	if !sch.started {
		sch.started = true
		sch.wasActive = active
		if active {
			s.StartAll(ctx)
		} else {
			s.StopAll()
		}
		return
	}

	if active && !sch.wasActive {
		s.logger.Printf("entering scheduled interval, starting workers")
		s.StartAll(ctx)
	} else if !active && sch.wasActive {
		s.logger.Printf("leaving scheduled interval, stopping workers")
		s.StopAll()
	}
	sch.wasActive = active
}
