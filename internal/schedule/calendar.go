package schedule

import (
	"slices"
	"time"

	"entrate/internal/core"
)

const (
	defaultHour   = 9
	defaultMinute = 0
)

// clock returns the time of day payments land on. An empty or malformed
// scheduleTime falls back to 09:00.
func clock(cfg core.ScheduleConfig) (hour, minute int) {
	if cfg.ScheduleTime == "" {
		return defaultHour, defaultMinute
	}
	h, m, err := core.ParseScheduleTime(cfg.ScheduleTime)
	if err != nil {
		return defaultHour, defaultMinute
	}
	return h, m
}

// midnight builds a date at 00:00. Out of range days normalize into the
// following month, as time.Date does.
func midnight(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// withClock moves d to the configured time of day, zeroing seconds.
func withClock(d time.Time, cfg core.ScheduleConfig) time.Time {
	h, m := clock(cfg)
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, d.Location())
}

func lastDayOf(year int, month time.Month, loc *time.Location) time.Time {
	return midnight(year, month+1, 0, loc)
}

func isLastDayOfMonth(t time.Time) bool {
	return t.AddDate(0, 0, 1).Month() != t.Month()
}

func nextMonth(year int, month time.Month) (int, time.Month) {
	if month == time.December {
		return year + 1, time.January
	}
	return year, month + 1
}

// monthlyDays returns the usable schedule days in ascending order. With
// manual amounts enabled only days carrying a positive amount remain.
func monthlyDays(cfg core.ScheduleConfig) []int {
	days := make([]int, 0, len(cfg.ScheduleDays))
	for _, d := range cfg.ScheduleDays {
		if d < 1 || d > core.LastDayOfMonth {
			continue
		}
		if cfg.UseManualAmounts {
			v, ok := cfg.ScheduleDayAmounts.Lookup(d)
			if !ok || !isPositive(v) {
				continue
			}
		}
		days = append(days, d)
	}
	slices.Sort(days)
	return days
}

// anchorDay is the smallest in-range schedule day, used by the quarterly and
// yearly rules.
func anchorDay(cfg core.ScheduleConfig) (int, bool) {
	day, found := 0, false
	for _, d := range cfg.ScheduleDays {
		if d < 1 || d > core.LastDayOfMonth {
			continue
		}
		if !found || d < day {
			day, found = d, true
		}
	}
	return day, found
}

// weekAnchor returns the first day of the requested week window of a month.
// SECOND, THIRD and FOURTH count from the first occurrence of the month's
// opening weekday; LAST is the final seven days.
func weekAnchor(week core.WeekOfMonth, year int, month time.Month, loc *time.Location) (time.Time, bool) {
	first := midnight(year, month, 1, loc)
	offset := int(first.Weekday())
	switch week {
	case core.FirstWeek:
		return first, true
	case core.SecondWeek:
		return midnight(year, month, 8-offset, loc), true
	case core.ThirdWeek:
		return midnight(year, month, 15-offset, loc), true
	case core.FourthWeek:
		return midnight(year, month, 22-offset, loc), true
	case core.LastWeek:
		last := lastDayOf(year, month, loc)
		return midnight(year, month, last.Day()-6, loc), true
	}
	return time.Time{}, false
}

// weekdayFrom returns the first date on or after anchor that falls on weekday.
func weekdayFrom(anchor time.Time, weekday int) time.Time {
	diff := (weekday - int(anchor.Weekday()) + 7) % 7
	return anchor.AddDate(0, 0, diff)
}

func validWeekday(w *int) (int, bool) {
	if w == nil || *w < 0 || *w > 6 {
		return 0, false
	}
	return *w, true
}
