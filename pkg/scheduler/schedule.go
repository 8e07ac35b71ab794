package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule computes the next run time after a given instant. It is
// satisfied by both a cron expression and a fixed interval.
type Schedule interface {
	Next(after time.Time) time.Time
}

// CronSchedule wraps a standard five-field cron expression.
type CronSchedule struct {
	expr     string
	schedule cron.Schedule
}

// NewCronSchedule parses a standard cron expression (minute hour dom
// month dow).
func NewCronSchedule(expr string) (CronSchedule, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return CronSchedule{}, fmt.Errorf("parsing cron expression %q: %w", expr, err)
	}
	return CronSchedule{expr: expr, schedule: sched}, nil
}

// Next returns the next scheduled run after t.
func (c CronSchedule) Next(after time.Time) time.Time {
	return c.schedule.Next(after)
}

// String returns the original cron expression.
func (c CronSchedule) String() string { return c.expr }

// IntervalSchedule runs every fixed duration.
type IntervalSchedule struct {
	Interval time.Duration
}

// Next returns after+Interval.
func (i IntervalSchedule) Next(after time.Time) time.Time {
	return after.Add(i.Interval)
}
