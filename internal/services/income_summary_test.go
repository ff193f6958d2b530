package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entrate/internal/core"
)

type summaryFixture struct {
	salary, lessons, rent int64
}

func seedSummary(t *testing.T, svc *IncomeService) summaryFixture {
	t.Helper()
	ctx := context.Background()
	var f summaryFixture
	var err error

	f.salary, err = svc.CreateSource(ctx, monthlySource("Stipendio", 1500, 5))
	require.NoError(t, err)
	f.lessons, err = svc.CreateSource(ctx, weeklySource("Ripetizioni", 100, 1))
	require.NoError(t, err)
	f.rent, err = svc.CreateSource(ctx, monthlySource("Affitto", 200, 10))
	require.NoError(t, err)

	old := monthlySource("Vecchio lavoro", 900, 3)
	old.IsActive = false
	_, err = svc.CreateSource(ctx, old)
	require.NoError(t, err)

	paid := day(2024, 3, 6, 11)
	_, err = svc.CreateRecord(ctx, core.IncomeRecord{
		SourceID:       f.salary,
		ExpectedDate:   day(2024, 3, 5, 9),
		ExpectedAmount: core.Money{Cents: 150000},
		ActualAmount:   core.Money{Cents: 150000},
		ActualDate:     &paid,
		Status:         core.StatusReceived,
	})
	require.NoError(t, err)

	_, err = svc.CreateRecord(ctx, core.IncomeRecord{
		SourceID:     f.rent,
		ExpectedDate: day(2024, 3, 10, 9),
		Status:       core.StatusPending,
	})
	require.NoError(t, err)
	return f
}

func TestSummaryService_CalculateMonthly(t *testing.T) {
	ctx := context.Background()
	repo := newTestStorage(t)
	f := seedSummary(t, NewIncomeService(repo, nil))
	svc := NewSummaryService(repo, time.UTC, 60)

	calc, err := svc.Calculate(ctx, CalculationRequest{Period: core.PeriodMonthly, Year: 2024, Month: 3}, day(2024, 3, 20, 12))
	require.NoError(t, err)

	assert.Equal(t, day(2024, 3, 1, 0), calc.Start)
	assert.Equal(t, day(2024, 4, 1, 0), calc.End)
	assert.Equal(t, core.Totals{
		Expected: core.Money{Cents: 210000},
		Received: core.Money{Cents: 150000},
		Pending:  core.Money{Cents: 60000},
		Overdue:  core.Money{Cents: 20000},
	}, calc.Totals)
	assert.InDelta(t, 71.43, calc.Totals.ReceiptRate(), 0.01)

	require.Len(t, calc.Sources, 3)
	byID := map[int64]core.SourceBreakdown{}
	for _, line := range calc.Sources {
		byID[line.SourceID] = line
	}
	assert.Equal(t, 1, byID[f.salary].Records)
	assert.True(t, byID[f.lessons].Estimated)
	assert.Equal(t, int64(40000), byID[f.lessons].Totals.Expected.Cents)
	assert.Equal(t, int64(20000), byID[f.rent].Totals.Expected.Cents, "falls back to the schedule amount")

	require.Len(t, calc.Recent, 1)
	assert.Equal(t, "Stipendio", calc.Recent[0].SourceName)

	require.Len(t, calc.Upcoming, 10)
	assert.Equal(t, f.lessons, calc.Upcoming[0].SourceID)
	assert.Equal(t, "2024-03-25", core.DayKey(calc.Upcoming[0].Date))
	assert.True(t, calc.Upcoming[0].Calculated)
	for i := 1; i < len(calc.Upcoming); i++ {
		assert.False(t, calc.Upcoming[i].Date.Before(calc.Upcoming[i-1].Date))
	}
	assert.Empty(t, calc.Projections)
}

func TestSummaryService_CalculateYearly(t *testing.T) {
	ctx := context.Background()
	repo := newTestStorage(t)
	seedSummary(t, NewIncomeService(repo, nil))
	svc := NewSummaryService(repo, time.UTC, 60)

	calc, err := svc.Calculate(ctx, CalculationRequest{Period: core.PeriodYearly, Year: 2024}, day(2024, 3, 20, 12))
	require.NoError(t, err)
	assert.Zero(t, calc.Month)
	require.Len(t, calc.Projections, 12)

	march := calc.Projections[2]
	assert.Equal(t, 3, march.Month)
	assert.Equal(t, int64(150000), march.Actual.Cents)
	assert.Equal(t, int64(210000), march.Expected.Cents)
	assert.Zero(t, calc.Projections[0].Actual.Cents)
}

func TestSummaryService_InvalidRequest(t *testing.T) {
	svc := NewSummaryService(newTestStorage(t), time.UTC, 60)

	for _, req := range []CalculationRequest{
		{Period: core.PeriodMonthly, Year: 2024, Month: 13},
		{Period: "weekly", Year: 2024},
		{Period: core.PeriodYearly, Year: 12},
	} {
		_, err := svc.Calculate(context.Background(), req, time.Now())
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr, "%+v", req)
	}
}

func TestSummaryService_UpcomingFeedPrefersPersisted(t *testing.T) {
	ctx := context.Background()
	repo := newTestStorage(t)
	svc := NewSummaryService(repo, time.UTC, 60)

	id := mustCreateSource(t, repo, monthlySource("Affitto", 500, 25))

	paid := day(2024, 3, 22, 9)
	mustCreateRecord(t, repo, core.IncomeRecord{
		SourceID:       id,
		ExpectedDate:   day(2024, 3, 25, 9),
		ExpectedAmount: core.Money{Cents: 50000},
		ActualAmount:   core.Money{Cents: 50000},
		ActualDate:     &paid,
		Status:         core.StatusReceived,
	})
	pendingID := mustCreateRecord(t, repo, core.IncomeRecord{
		SourceID:       id,
		ExpectedDate:   day(2024, 4, 25, 9),
		ExpectedAmount: core.Money{Cents: 45000},
		Status:         core.StatusPending,
	})

	feed, err := svc.UpcomingFeed(ctx, day(2024, 3, 20, 12), 10)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, pendingID, feed[0].RecordID)
	assert.False(t, feed[0].Calculated)
	assert.Equal(t, int64(45000), feed[0].Amount.Cents)
	assert.Equal(t, "Affitto", feed[0].SourceName)
}

func TestEstimatedAmount(t *testing.T) {
	manual := core.ScheduleConfig{
		Frequency:          core.Monthly,
		ScheduleDays:       []int{1, 15},
		Amount:             1000,
		UseManualAmounts:   true,
		ScheduleDayAmounts: core.DayAmountsOf(map[int]float64{1: 100}),
	}

	tests := []struct {
		name   string
		cfg    core.ScheduleConfig
		period core.Period
		month  time.Month
		want   int64
	}{
		{"weekly month", core.ScheduleConfig{Frequency: core.Weekly, Amount: 100}, core.PeriodMonthly, time.May, 40000},
		{"weekly year", core.ScheduleConfig{Frequency: core.Weekly, Amount: 100}, core.PeriodYearly, 0, 520000},
		{"biweekly year", core.ScheduleConfig{Frequency: core.Biweekly, Amount: 10}, core.PeriodYearly, 0, 26000},
		{"monthly split", core.ScheduleConfig{Frequency: core.Monthly, ScheduleDays: []int{1, 15, 31}, Amount: 100}, core.PeriodMonthly, time.May, 10000},
		{"monthly year", core.ScheduleConfig{Frequency: core.Monthly, ScheduleDays: []int{1}, Amount: 100}, core.PeriodYearly, 0, 120000},
		{"monthly manual skips missing day", manual, core.PeriodMonthly, time.May, 10000},
		{"quarterly in quarter month", core.ScheduleConfig{Frequency: core.Quarterly, ScheduleDays: []int{1}, Amount: 300}, core.PeriodMonthly, time.April, 30000},
		{"quarterly off month", core.ScheduleConfig{Frequency: core.Quarterly, ScheduleDays: []int{1}, Amount: 300}, core.PeriodMonthly, time.May, 0},
		{"yearly january", core.ScheduleConfig{Frequency: core.Yearly, ScheduleDays: []int{1}, Amount: 300}, core.PeriodMonthly, time.January, 30000},
		{"yearly february", core.ScheduleConfig{Frequency: core.Yearly, ScheduleDays: []int{1}, Amount: 300}, core.PeriodMonthly, time.February, 0},
		{"one time", core.ScheduleConfig{Frequency: core.OneTime, Amount: 300}, core.PeriodYearly, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := estimatedAmount(tt.cfg, tt.period, tt.month)
			assert.Equal(t, tt.want, got.Cents)
		})
	}
}
