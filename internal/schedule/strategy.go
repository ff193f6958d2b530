package schedule

import (
	"fmt"
	"time"

	"entrate/internal/core"
)

// Strategy computes the next occurrence for one frequency. Next returns the
// earliest occurrence strictly after from, or false when the configuration
// cannot produce one.
type Strategy interface {
	Next(cfg core.ScheduleConfig, from time.Time) (time.Time, bool)
}

// WeeklyStrategy pays on the same weekday every week.
type WeeklyStrategy struct{}

func (WeeklyStrategy) Next(cfg core.ScheduleConfig, from time.Time) (time.Time, bool) {
	weekday, ok := validWeekday(cfg.ScheduleWeekday)
	if !ok {
		return time.Time{}, false
	}
	diff := weekday - int(from.Weekday())
	if diff <= 0 {
		diff += 7
	}
	return withClock(from.AddDate(0, 0, diff), cfg), true
}

// BiweeklyStrategy pays once a month on a weekday inside a given week of the
// month (first, second, third, fourth or last).
type BiweeklyStrategy struct{}

func (BiweeklyStrategy) Next(cfg core.ScheduleConfig, from time.Time) (time.Time, bool) {
	weekday, ok := validWeekday(cfg.ScheduleWeekday)
	if !ok || !cfg.ScheduleWeek.Valid() {
		return time.Time{}, false
	}
	loc := from.Location()

	anchor, _ := weekAnchor(cfg.ScheduleWeek, from.Year(), from.Month(), loc)
	target := weekdayFrom(anchor, weekday)
	if !target.After(from) {
		y, m := nextMonth(from.Year(), from.Month())
		anchor, _ = weekAnchor(cfg.ScheduleWeek, y, m, loc)
		target = weekdayFrom(anchor, weekday)
	}
	return withClock(target, cfg), true
}

// MonthlyStrategy pays on one or more days of each month.
type MonthlyStrategy struct{}

func (MonthlyStrategy) Next(cfg core.ScheduleConfig, from time.Time) (time.Time, bool) {
	days := monthlyDays(cfg)
	if len(days) == 0 {
		return time.Time{}, false
	}
	loc := from.Location()
	year, month := from.Year(), from.Month()

	for _, day := range days {
		candidate := midnight(year, month, day, loc)
		if day == core.LastDayOfMonth {
			candidate = lastDayOf(year, month, loc)
		}
		// the 30th does not exist in February
		if candidate.Month() != month {
			continue
		}
		if candidate.After(from) {
			return withClock(candidate, cfg), true
		}
	}

	y, m := nextMonth(year, month)
	target := midnight(y, m, days[0], loc)
	if days[0] == core.LastDayOfMonth {
		target = lastDayOf(y, m, loc)
	}
	return withClock(target, cfg), true
}

// QuarterlyStrategy pays at the start of the next quarter (April, July,
// October, January) on the smallest schedule day.
type QuarterlyStrategy struct{}

func (QuarterlyStrategy) Next(cfg core.ScheduleConfig, from time.Time) (time.Time, bool) {
	day, ok := anchorDay(cfg)
	if !ok {
		return time.Time{}, false
	}
	year := from.Year()
	var month time.Month
	switch m := from.Month(); {
	case m <= time.March:
		month = time.April
	case m <= time.June:
		month = time.July
	case m <= time.September:
		month = time.October
	default:
		year, month = year+1, time.January
	}
	return withClock(midnight(year, month, day, from.Location()), cfg), true
}

// YearlyStrategy pays in January of the following year on the smallest
// schedule day. It always advances a full year, even when January of the
// current year is still ahead of from.
type YearlyStrategy struct{}

func (YearlyStrategy) Next(cfg core.ScheduleConfig, from time.Time) (time.Time, bool) {
	day, ok := anchorDay(cfg)
	if !ok {
		return time.Time{}, false
	}
	return withClock(midnight(from.Year()+1, time.January, day, from.Location()), cfg), true
}

var strategies = map[core.Frequency]Strategy{
	core.Weekly:    WeeklyStrategy{},
	core.Biweekly:  BiweeklyStrategy{},
	core.Monthly:   MonthlyStrategy{},
	core.Quarterly: QuarterlyStrategy{},
	core.Yearly:    YearlyStrategy{},
}

// StrategyFor returns the strategy for a recurring frequency. ONE_TIME and
// unknown frequencies have none.
func StrategyFor(freq core.Frequency) (Strategy, error) {
	s, ok := strategies[freq]
	if !ok {
		return nil, fmt.Errorf("no schedule strategy for frequency %q", freq)
	}
	return s, nil
}

// NextOccurrence returns the earliest occurrence strictly after from.
// It reports false for one-time sources and incomplete configurations.
func NextOccurrence(cfg core.ScheduleConfig, from time.Time) (time.Time, bool) {
	s, err := StrategyFor(cfg.Frequency)
	if err != nil {
		return time.Time{}, false
	}
	return s.Next(cfg, from)
}
