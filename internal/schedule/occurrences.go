package schedule

import (
	"iter"
	"slices"
	"time"

	"entrate/internal/core"
)

// MaxOccurrences bounds how many occurrences a single call may produce.
const MaxOccurrences = 100

// Upcoming yields the occurrences in (from, from+daysAhead days] in
// ascending order. Each step searches from the day after the previous
// occurrence, so a schedule whose days are adjacent (15 and 16) yields only
// the first of the pair within a month. Occurrences whose amount is not
// positive are skipped; at most MaxOccurrences steps are taken.
func Upcoming(cfg core.ScheduleConfig, from time.Time, daysAhead int) iter.Seq[core.Occurrence] {
	return func(yield func(core.Occurrence) bool) {
		if cfg.Frequency == core.OneTime {
			return
		}
		end := from.AddDate(0, 0, daysAhead)

		next, ok := NextOccurrence(cfg, from)
		for steps := 0; ok && !next.After(end) && steps < MaxOccurrences; steps++ {
			amount := occurrenceAmount(cfg, next.Day(), isLastDayOfMonth(next))
			if isPositive(amount) {
				if !yield(core.Occurrence{Date: next, Amount: amount}) {
					return
				}
			}
			next, ok = NextOccurrence(cfg, next.AddDate(0, 0, 1))
		}
	}
}

// Recent returns the distinct occurrences in [to-daysBefore days, to],
// newest first. Every day of the window seeds a NextOccurrence search.
//
// All occurrences carry PerOccurrenceAmount(cfg, 0): manual per-day amounts
// are not resolved here, unlike Upcoming.
func Recent(cfg core.ScheduleConfig, to time.Time, daysBefore int) []core.Occurrence {
	if cfg.Frequency == core.OneTime {
		return nil
	}
	amount := PerOccurrenceAmount(cfg, 0)
	if !isPositive(amount) {
		return nil
	}

	start := to.AddDate(0, 0, -daysBefore)
	seen := make(map[string]struct{})
	var out []core.Occurrence
	for cur := start; !cur.After(to) && len(out) < MaxOccurrences; cur = cur.AddDate(0, 0, 1) {
		next, ok := NextOccurrence(cfg, cur)
		if !ok || next.Before(start) || next.After(to) {
			continue
		}
		key := core.DayKey(next)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, core.Occurrence{Date: next, Amount: amount})
	}

	slices.SortFunc(out, func(a, b core.Occurrence) int {
		return b.Date.Compare(a.Date)
	})
	return out
}
