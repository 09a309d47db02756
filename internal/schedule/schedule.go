package schedule

import (
	"fmt"
	"time"

	"github.com/gorhill/cronexpr"
)

// Type discriminates schedule variants
type Type string

const (
	// TypeImmediate runs once, as soon as a worker is free
	TypeImmediate Type = "IMMEDIATE"
	// TypeOneTime runs once at a stored future instant
	TypeOneTime Type = "ONE_TIME"
	// TypeRecurring runs on a cron expression in a stored timezone
	TypeRecurring Type = "RECURRING"
)

// Schedule describes when a job should run
type Schedule struct {
	Type Type `json:"type"`
	// RunAt is the instant for ONE_TIME schedules
	RunAt *time.Time `json:"run_at,omitempty"`
	// CronExpr is the cron expression for RECURRING schedules
	CronExpr string `json:"cron_expr,omitempty"`
	// Timezone is the IANA zone the cron expression is evaluated in
	// (empty = UTC)
	Timezone string `json:"timezone,omitempty"`
}

// Validate checks a schedule at job-creation time. A malformed cron
// expression or unknown timezone is a configuration error surfaced here,
// never at run time.
func Validate(s Schedule) error {
	switch s.Type {
	case "", TypeImmediate:
		return nil
	case TypeOneTime:
		if s.RunAt == nil {
			return fmt.Errorf("one-time schedule requires run_at")
		}
		return nil
	case TypeRecurring:
		if s.CronExpr == "" {
			return fmt.Errorf("recurring schedule requires a cron expression")
		}
		if _, err := cronexpr.Parse(s.CronExpr); err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		if _, err := location(s.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
		}
		return nil
	default:
		return fmt.Errorf("invalid schedule type: %s", s.Type)
	}
}

// NextRun computes the next execution instant for a schedule, given the
// last run (nil if never run) and the current time. The second return value
// is false when the schedule has no further runs.
//
// Immediate schedules fire once, now. One-time schedules return the stored
// instant until it has fired. Recurring schedules always produce a next
// instant; only cancellation or deletion stops them.
func NextRun(s Schedule, lastRun *time.Time, now time.Time) (time.Time, bool) {
	switch s.Type {
	case "", TypeImmediate:
		if lastRun != nil {
			return time.Time{}, false
		}
		return now, true

	case TypeOneTime:
		if lastRun != nil || s.RunAt == nil {
			return time.Time{}, false
		}
		return *s.RunAt, true

	case TypeRecurring:
		expr, err := cronexpr.Parse(s.CronExpr)
		if err != nil {
			// Rejected at creation; unreachable for stored jobs
			return time.Time{}, false
		}
		loc, err := location(s.Timezone)
		if err != nil {
			return time.Time{}, false
		}
		base := now
		if lastRun != nil && lastRun.After(base) {
			base = *lastRun
		}
		next := expr.Next(base.In(loc))
		if next.IsZero() {
			return time.Time{}, false
		}
		return next, true

	default:
		return time.Time{}, false
	}
}

func location(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(tz)
}
