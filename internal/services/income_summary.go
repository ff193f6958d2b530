package services

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"entrate/internal/core"
	"entrate/internal/schedule"
	"entrate/internal/storage"
)

const (
	recentPaymentsLimit = 10
	upcomingFeedLimit   = 10
)

// CalculationRequest selects the period to summarize.
type CalculationRequest struct {
	Period core.Period
	Year   int
	Month  int
}

func (r CalculationRequest) Validate() error {
	switch r.Period {
	case core.PeriodMonthly:
		if r.Month < 1 || r.Month > 12 {
			return fmt.Errorf("invalid month %d: must be between 1 and 12", r.Month)
		}
	case core.PeriodYearly:
	default:
		return fmt.Errorf("invalid period %q: must be monthly or yearly", r.Period)
	}
	if r.Year < 1970 || r.Year > 9999 {
		return fmt.Errorf("invalid year %d", r.Year)
	}
	return nil
}

// SummaryService aggregates records and schedules into period summaries.
type SummaryService struct {
	storage     *storage.SQLiteRepository
	loc         *time.Location
	feedHorizon int
}

// NewSummaryService creates a summary service projecting feedHorizonDays
// ahead in loc.
func NewSummaryService(storage *storage.SQLiteRepository, loc *time.Location, feedHorizonDays int) *SummaryService {
	if loc == nil {
		loc = time.Local
	}
	if feedHorizonDays <= 0 {
		feedHorizonDays = 60
	}
	return &SummaryService{storage: storage, loc: loc, feedHorizon: feedHorizonDays}
}

func (s *SummaryService) bounds(req CalculationRequest) (time.Time, time.Time) {
	if req.Period == core.PeriodYearly {
		start := time.Date(req.Year, time.January, 1, 0, 0, 0, 0, s.loc)
		return start, start.AddDate(1, 0, 0)
	}
	start := time.Date(req.Year, time.Month(req.Month), 1, 0, 0, 0, 0, s.loc)
	return start, start.AddDate(0, 1, 0)
}

// Calculate builds the summary of the requested period as seen at now.
func (s *SummaryService) Calculate(ctx context.Context, req CalculationRequest, now time.Time) (*core.IncomeCalculation, error) {
	if err := req.Validate(); err != nil {
		return nil, invalid(err)
	}
	now = now.In(s.loc)
	start, end := s.bounds(req)

	sources, err := s.storage.ListSources(ctx, storage.SourceFilter{})
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	records, err := s.storage.ListRecords(ctx, storage.RecordFilter{
		FromDay: core.DayKey(start),
		ToDay:   core.DayKey(end),
	})
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	bySource := make(map[int64][]core.IncomeRecord)
	for _, rec := range records {
		bySource[rec.SourceID] = append(bySource[rec.SourceID], rec)
	}

	calc := &core.IncomeCalculation{
		Period:   req.Period,
		Year:     req.Year,
		Start:    start,
		End:      end,
		Sources:  []core.SourceBreakdown{},
		Recent:   []core.ReceivedPayment{},
		Upcoming: []core.UpcomingPayment{},
	}
	if req.Period == core.PeriodMonthly {
		calc.Month = req.Month
	}

	for _, src := range sources {
		line := core.SourceBreakdown{
			SourceID:  src.ID,
			Name:      src.Name,
			Category:  src.Category,
			Frequency: src.Frequency,
		}
		if recs := bySource[src.ID]; len(recs) > 0 {
			line.Records = len(recs)
			line.Totals = recordTotals(src, recs, now)
		} else if src.IsActive && src.IsRecurring() {
			estimate := estimatedAmount(src.Schedule(), req.Period, time.Month(req.Month))
			if estimate.Cents <= 0 {
				continue
			}
			line.Estimated = true
			line.Totals = core.Totals{Expected: estimate, Pending: estimate}
		} else {
			continue
		}
		calc.Totals.Add(line.Totals)
		calc.Sources = append(calc.Sources, line)
	}

	if req.Period == core.PeriodYearly {
		if calc.Projections, err = s.projections(ctx, req.Year, sources); err != nil {
			return nil, err
		}
	}

	recent, err := s.storage.ListRecentReceived(ctx, recentPaymentsLimit)
	if err != nil {
		return nil, fmt.Errorf("list recent payments: %w", err)
	}
	if recent != nil {
		calc.Recent = recent
	}

	if calc.Upcoming, err = s.UpcomingFeed(ctx, now, upcomingFeedLimit); err != nil {
		return nil, err
	}
	return calc, nil
}

func recordTotals(src core.IncomeSource, recs []core.IncomeRecord, now time.Time) core.Totals {
	var t core.Totals
	for _, rec := range recs {
		expected := expectedAmount(src, rec)
		t.Expected = t.Expected.Add(expected)
		switch rec.Status {
		case core.StatusReceived:
			if rec.ActualAmount.Cents > 0 {
				t.Received = t.Received.Add(rec.ActualAmount)
			}
		case core.StatusPending, core.StatusOverdue:
			t.Pending = t.Pending.Add(expected)
			if rec.ExpectedDate.Before(now) {
				t.Overdue = t.Overdue.Add(expected)
			}
		}
	}
	return t
}

// expectedAmount prefers the amount stored on the record and falls back to
// the schedule's amount for the record's day.
func expectedAmount(src core.IncomeSource, rec core.IncomeRecord) core.Money {
	if rec.ExpectedAmount.Cents > 0 {
		return rec.ExpectedAmount
	}
	return core.MoneyFromAmount(schedule.PerOccurrenceAmount(src.Schedule(), rec.ExpectedDate.Day()))
}

// estimatedAmount is the heuristic expectation for a source without records
// in the period. month is ignored for yearly periods.
func estimatedAmount(cfg core.ScheduleConfig, period core.Period, month time.Month) core.Money {
	yearly := period == core.PeriodYearly
	perPayment := schedule.PerOccurrenceAmount(cfg, 0)

	switch cfg.Frequency {
	case core.Weekly:
		return core.MultiplyAmount(perPayment, pick(yearly, 52, 4))
	case core.Biweekly:
		return core.MultiplyAmount(perPayment, pick(yearly, 26, 2))
	case core.Monthly:
		return core.MultiplyAmount(monthlyAmount(cfg), pick(yearly, 12, 1))
	case core.Quarterly:
		if yearly {
			return core.MultiplyAmount(perPayment, 4)
		}
		if (month-1)%3 == 0 {
			return core.MoneyFromAmount(perPayment)
		}
	case core.Yearly:
		if yearly || month == time.January {
			return core.MoneyFromAmount(perPayment)
		}
	}
	return core.Money{}
}

// monthlyAmount is one month of a MONTHLY source. Manual days without a
// positive amount never occur and add nothing.
func monthlyAmount(cfg core.ScheduleConfig) float64 {
	perPayment := schedule.PerOccurrenceAmount(cfg, 0)
	if perPayment <= 0 {
		return 0
	}
	if !cfg.UseManualAmounts {
		return perPayment * float64(max(len(cfg.ScheduleDays), 1))
	}

	total := 0.0
	for _, day := range slices.Compact(slices.Sorted(slices.Values(cfg.ScheduleDays))) {
		if v, ok := cfg.ScheduleDayAmounts.Lookup(day); ok && v > 0 && !math.IsInf(v, 0) {
			total += v
		}
	}
	return total
}

func pick(cond bool, a, b int) int {
	if cond {
		return a
	}
	return b
}

func (s *SummaryService) projections(ctx context.Context, year int, sources []core.IncomeSource) ([]core.MonthProjection, error) {
	received, err := s.storage.ReceivedByMonth(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("received by month: %w", err)
	}

	out := make([]core.MonthProjection, 0, 12)
	for m := time.January; m <= time.December; m++ {
		p := core.MonthProjection{Month: int(m), Actual: received[int(m)]}
		for _, src := range sources {
			if src.IsActive && src.IsRecurring() {
				p.Expected = p.Expected.Add(estimatedAmount(src.Schedule(), core.PeriodMonthly, m))
			}
		}
		out = append(out, p)
	}
	return out, nil
}

// UpcomingFeed merges persisted outstanding records with live projections
// of active schedules. A projection is dropped when its source already has
// a record on that calendar day, whatever the record's status.
func (s *SummaryService) UpcomingFeed(ctx context.Context, now time.Time, limit int) ([]core.UpcomingPayment, error) {
	now = now.In(s.loc)
	today := midnight(now)
	horizonEnd := today.AddDate(0, 0, s.feedHorizon+1)

	sources, err := s.storage.ListSources(ctx, storage.SourceFilter{})
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	byID := make(map[int64]core.IncomeSource, len(sources))
	for _, src := range sources {
		byID[src.ID] = src
	}

	records, err := s.storage.ListRecords(ctx, storage.RecordFilter{
		FromDay: core.DayKey(today),
		ToDay:   core.DayKey(horizonEnd),
	})
	if err != nil {
		return nil, fmt.Errorf("list upcoming records: %w", err)
	}

	feed := []core.UpcomingPayment{}
	persisted := make(map[string]bool, len(records))
	for _, rec := range records {
		persisted[feedKey(rec.SourceID, rec.ExpectedDate)] = true
		if rec.Status != core.StatusPending {
			continue
		}
		src := byID[rec.SourceID]
		feed = append(feed, core.UpcomingPayment{
			RecordID:   rec.ID,
			SourceID:   rec.SourceID,
			SourceName: src.Name,
			Category:   src.Category,
			Date:       rec.ExpectedDate,
			Amount:     expectedAmount(src, rec),
			Status:     rec.Status,
		})
	}

	for _, src := range sources {
		if !src.IsActive || !src.IsRecurring() {
			continue
		}
		for occ := range schedule.Upcoming(src.Schedule(), now, s.feedHorizon) {
			if persisted[feedKey(src.ID, occ.Date)] {
				continue
			}
			amount := core.MoneyFromAmount(occ.Amount)
			if amount.Cents <= 0 {
				continue
			}
			feed = append(feed, core.UpcomingPayment{
				SourceID:   src.ID,
				SourceName: src.Name,
				Category:   src.Category,
				Date:       occ.Date,
				Amount:     amount,
				Status:     core.StatusPending,
				Calculated: true,
			})
		}
	}

	slices.SortStableFunc(feed, func(a, b core.UpcomingPayment) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.SourceID, b.SourceID)
	})
	if limit > 0 && len(feed) > limit {
		feed = feed[:limit]
	}
	return feed, nil
}

func feedKey(sourceID int64, t time.Time) string {
	return strconv.FormatInt(sourceID, 10) + "|" + core.DayKey(t)
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
