package recurrence

import (
	"time"
)

// NextFireAfter computes the first fire time strictly after the given
// instant. When after precedes the rule's start, the start itself is
// returned. Seconds are truncated so fire times never drift below minute
// resolution. The computation is pure: same rule and same after always yield
// the same result.
func (r *Rule) NextFireAfter(after time.Time) (time.Time, error) {
	if err := r.Validate(); err != nil {
		return time.Time{}, err
	}

	start := r.Start.UTC().Truncate(time.Minute)
	after = after.UTC()

	if after.Before(start) {
		return start, nil
	}

	switch r.Freq {
	case FreqNone:
		return time.Time{}, ErrNoNextFire
	case FreqDaily:
		return stepFrom(start, after, 0, 0, 1), nil
	case FreqWeekly:
		return r.nextWeekly(start, after), nil
	case FreqMonthly:
		return r.nextMonthly(start, after), nil
	case FreqYearly:
		return stepFrom(start, after, 1, 0, 0), nil
	case FreqEveryWeekday:
		return nextBusinessDay(start, after), nil
	case FreqCustom:
		return r.nextCustom(start, after), nil
	case FreqCron:
		return r.nextCron(start, after), nil
	default:
		return time.Time{}, ErrInvalidRule
	}
}

// stepFrom walks fixed calendar steps from start until strictly after the
// reference instant. AddDate keeps the time-of-day stable across DST-free UTC
// arithmetic.
func stepFrom(start, after time.Time, years, months, days int) time.Time {
	candidate := start
	for !candidate.After(after) {
		candidate = candidate.AddDate(years, months, days)
	}

	return candidate
}

func (r *Rule) nextWeekly(start, after time.Time) time.Time {
	weekday := r.weeklyWeekday()

	// First occurrence on or after start that lands on the rule weekday.
	candidate := start
	for candidate.Weekday() != weekday {
		candidate = candidate.AddDate(0, 0, 1)
	}

	for !candidate.After(after) {
		candidate = candidate.AddDate(0, 0, 7)
	}

	return candidate
}

func (r *Rule) nextMonthly(start, after time.Time) time.Time {
	ordinal, last := ordinalWeekdayOfMonth(start)
	weekday := start.Weekday()

	year, month := start.Year(), start.Month()

	for {
		day := nthWeekdayOfMonth(year, month, weekday, ordinal)
		if last || day > daysInMonth(year, month) {
			day = lastWeekdayOfMonth(year, month, weekday)
		}

		candidate := time.Date(year, month, day,
			start.Hour(), start.Minute(), 0, 0, time.UTC)

		if candidate.After(after) && !candidate.Before(start) {
			return candidate
		}

		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
}

func nextBusinessDay(start, after time.Time) time.Time {
	candidate := start
	for !candidate.After(after) || !isWeekday(candidate) {
		candidate = candidate.AddDate(0, 0, 1)
	}

	return candidate
}

func isWeekday(t time.Time) bool {
	wd := t.Weekday()

	return wd != time.Saturday && wd != time.Sunday
}

func (r *Rule) nextCustom(start, after time.Time) time.Time {
	switch r.Period {
	case PeriodWeekly:
		return r.nextCustomWeekly(start, after)
	case PeriodMonthly:
		return stepFrom(start, after, 0, r.Interval, 0)
	default:
		return stepFrom(start, after, 0, 0, r.Interval)
	}
}

// nextCustomWeekly repeats on the configured weekdays within every N-th week,
// week blocks anchored at the start's week (weeks begin on Monday).
func (r *Rule) nextCustomWeekly(start, after time.Time) time.Time {
	anchor := startOfWeek(start)

	allowed := make(map[time.Weekday]bool, len(r.Weekdays))
	for _, d := range r.Weekdays {
		allowed[d] = true
	}

	for block := 0; ; block++ {
		weekStart := anchor.AddDate(0, 0, block*r.Interval*7)
		for day := range 7 {
			candidate := weekStart.AddDate(0, 0, day)
			candidate = time.Date(candidate.Year(), candidate.Month(), candidate.Day(),
				start.Hour(), start.Minute(), 0, 0, time.UTC)

			if !allowed[candidate.Weekday()] {
				continue
			}

			if candidate.After(after) && !candidate.Before(start) {
				return candidate
			}
		}
	}
}

func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) - int(time.Monday) + 7) % 7
	day := t.AddDate(0, 0, -offset)

	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
}

func (r *Rule) nextCron(start, after time.Time) time.Time {
	// Validated already; the parser cannot fail here.
	sched, _ := cronParser.Parse(r.CronExpression)

	base := after
	if base.Before(start) {
		base = start
	}

	return sched.Next(base).Truncate(time.Minute)
}
