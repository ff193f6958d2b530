// Package schedule computes payment occurrences for recurring income.
//
// Everything here is a pure function of a core.ScheduleConfig and a
// reference time: no I/O, no clock reads, no package state that callers can
// change. Results are built in the location of the reference time.
package schedule

import (
	"math"
	"slices"
	"time"

	"entrate/internal/core"
)

// PerOccurrenceAmount returns the amount of a single payment. day is the
// schedule day the payment belongs to, or 0 when no specific day applies.
//
// Rules, first match wins:
//   - a missing, non-finite or non-positive amount yields 0
//   - monthly schedules with manual amounts return the entry for day
//     (0 if that entry is not finite)
//   - monthly schedules with several days split the amount evenly
//   - otherwise the full amount is returned
func PerOccurrenceAmount(cfg core.ScheduleConfig, day int) float64 {
	if !isPositive(cfg.Amount) {
		return 0
	}

	if cfg.Frequency == core.Monthly && cfg.UseManualAmounts && day > 0 {
		if v, ok := cfg.ScheduleDayAmounts.Lookup(day); ok {
			if !isFinite(v) {
				return 0
			}
			return v
		}
	}

	if cfg.Frequency == core.Monthly && len(cfg.ScheduleDays) > 1 {
		return cfg.Amount / float64(len(cfg.ScheduleDays))
	}
	return cfg.Amount
}

// occurrenceAmount resolves the amount for an occurrence produced by
// Upcoming. Manual monthly schedules look the day up, mapping the final day
// of the month to the last-day entry when one is configured; a day without a
// positive manual amount yields 0 so the caller drops it.
func occurrenceAmount(cfg core.ScheduleConfig, day int, lastOfMonth bool) float64 {
	if cfg.Frequency != core.Monthly || !cfg.UseManualAmounts {
		return PerOccurrenceAmount(cfg, 0)
	}

	key := day
	if lastOfMonth && slices.Contains(cfg.ScheduleDays, core.LastDayOfMonth) {
		key = core.LastDayOfMonth
	}
	manual, ok := cfg.ScheduleDayAmounts.Lookup(key)
	if !ok || !isPositive(manual) {
		return 0
	}
	return PerOccurrenceAmount(cfg, key)
}

// AmountOn is the amount Upcoming would report for an occurrence at t.
func AmountOn(cfg core.ScheduleConfig, t time.Time) float64 {
	return occurrenceAmount(cfg, t.Day(), isLastDayOfMonth(t))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func isPositive(v float64) bool {
	return isFinite(v) && v > 0
}
