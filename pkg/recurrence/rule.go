// Package recurrence turns a start time plus a repeat pattern into a
// canonical rule string and concrete fire timestamps.
package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Frequency identifies the repeat pattern of a rule.
type Frequency string

const (
	FreqNone         Frequency = "none"
	FreqDaily        Frequency = "daily"
	FreqWeekly       Frequency = "weekly"
	FreqMonthly      Frequency = "monthly"
	FreqYearly       Frequency = "yearly"
	FreqEveryWeekday Frequency = "every_weekday"
	FreqCustom       Frequency = "custom"
	FreqCron         Frequency = "cron"
)

// Period is the base unit of a custom rule.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

var (
	// ErrInvalidRule is returned for malformed rules. Rules fail fast at
	// configuration time, never at fire time.
	ErrInvalidRule = errors.New("invalid recurrence rule")

	// ErrNoNextFire is returned when a rule has no occurrence after the
	// given instant (a no-repeat rule whose start already passed).
	ErrNoNextFire = errors.New("rule has no next fire time")
)

// Rule is a declarative repeat pattern anchored at Start. Rules are derived
// values: computed deterministically from (start, pattern) and never stored
// independently.
type Rule struct {
	Freq  Frequency `json:"freq"  validate:"required"`
	Start time.Time `json:"start" validate:"required"`

	// Weekday applies to weekly rules. Defaults to the start's weekday.
	Weekday *time.Weekday `json:"weekday,omitempty"`

	// Custom-rule fields.
	Period   Period         `json:"period,omitempty"`
	Interval int            `json:"interval,omitempty"`
	Weekdays []time.Weekday `json:"weekdays,omitempty"`

	// CronExpression applies to cron rules, standard 5-field format.
	CronExpression string `json:"cron_expression,omitempty"`
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Validate rejects malformed rules synchronously at trigger-activation time.
func (r *Rule) Validate() error {
	if r.Start.IsZero() {
		return fmt.Errorf("%w: start time is required", ErrInvalidRule)
	}

	switch r.Freq {
	case FreqNone, FreqDaily, FreqWeekly, FreqMonthly, FreqYearly, FreqEveryWeekday:
		return nil
	case FreqCustom:
		if r.Interval < 1 {
			return fmt.Errorf("%w: custom rule requires interval >= 1", ErrInvalidRule)
		}

		switch r.Period {
		case PeriodDaily, PeriodMonthly:
			return nil
		case PeriodWeekly:
			if len(r.Weekdays) == 0 {
				return fmt.Errorf("%w: custom weekly rule requires at least one weekday", ErrInvalidRule)
			}

			return nil
		default:
			return fmt.Errorf("%w: unknown custom period %q", ErrInvalidRule, r.Period)
		}
	case FreqCron:
		if _, err := cronParser.Parse(r.CronExpression); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}

		return nil
	default:
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidRule, r.Freq)
	}
}

var weekdayCodes = map[time.Weekday]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

// Canonical renders the rule as a deterministic RRULE-style string. Two rules
// with the same canonical string always produce the same fire times.
func (r *Rule) Canonical() string {
	switch r.Freq {
	case FreqNone:
		return "FREQ=NONE"
	case FreqDaily:
		return "FREQ=DAILY"
	case FreqWeekly:
		return "FREQ=WEEKLY;BYDAY=" + weekdayCodes[r.weeklyWeekday()]
	case FreqMonthly:
		ordinal, last := ordinalWeekdayOfMonth(r.Start)
		if last {
			return "FREQ=MONTHLY;BYDAY=-1" + weekdayCodes[r.Start.Weekday()]
		}

		return fmt.Sprintf("FREQ=MONTHLY;BYDAY=%d%s", ordinal, weekdayCodes[r.Start.Weekday()])
	case FreqYearly:
		return "FREQ=YEARLY"
	case FreqEveryWeekday:
		return "FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR"
	case FreqCustom:
		return r.canonicalCustom()
	case FreqCron:
		return "CRON=" + r.CronExpression
	default:
		return "FREQ=NONE"
	}
}

func (r *Rule) canonicalCustom() string {
	var b strings.Builder

	switch r.Period {
	case PeriodWeekly:
		b.WriteString("FREQ=WEEKLY")
	case PeriodMonthly:
		b.WriteString("FREQ=MONTHLY")
	default:
		b.WriteString("FREQ=DAILY")
	}

	fmt.Fprintf(&b, ";INTERVAL=%d", r.Interval)

	if r.Period == PeriodWeekly {
		days := append([]time.Weekday(nil), r.Weekdays...)
		sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

		codes := make([]string, 0, len(days))
		for _, d := range days {
			codes = append(codes, weekdayCodes[d])
		}

		b.WriteString(";BYDAY=" + strings.Join(codes, ","))
	}

	return b.String()
}

// weeklyWeekday resolves the weekday of a weekly rule, defaulting to the
// start's weekday.
func (r *Rule) weeklyWeekday() time.Weekday {
	if r.Weekday != nil {
		return *r.Weekday
	}

	return r.Start.Weekday()
}

// ordinalWeekdayOfMonth computes which occurrence-of-its-weekday-in-the-month
// the given date is. The final occurrence in a month reports last=true.
func ordinalWeekdayOfMonth(t time.Time) (ordinal int, last bool) {
	ordinal = (t.Day()-1)/7 + 1
	last = t.Day()+7 > daysInMonth(t.Year(), t.Month())

	return ordinal, last
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// nthWeekdayOfMonth returns the day-of-month of the n-th given weekday. Every
// month has at least four occurrences of each weekday, so n in 1..4 always
// exists.
func nthWeekdayOfMonth(year int, month time.Month, weekday time.Weekday, n int) int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Weekday()
	offset := (int(weekday) - int(first) + 7) % 7

	return 1 + offset + (n-1)*7
}

// lastWeekdayOfMonth returns the day-of-month of the final given weekday.
func lastWeekdayOfMonth(year int, month time.Month, weekday time.Weekday) int {
	lastDay := daysInMonth(year, month)
	lastWd := time.Date(year, month, lastDay, 0, 0, 0, 0, time.UTC).Weekday()
	offset := (int(lastWd) - int(weekday) + 7) % 7

	return lastDay - offset
}
