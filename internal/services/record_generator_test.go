package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entrate/internal/core"
	"entrate/internal/storage"
)

func TestRecordGenerator_GenerateUpcoming(t *testing.T) {
	ctx := context.Background()
	repo := newTestStorage(t)
	events := &recordingPublisher{}
	gen := NewRecordGenerator(repo, events, time.UTC, GeneratorConfig{HorizonDays: 90})

	salaryID := mustCreateSource(t, repo, monthlySource("Stipendio", 2000, 1, 15))

	inactive := monthlySource("Vecchio lavoro", 900, 10)
	inactive.IsActive = false
	mustCreateSource(t, repo, inactive)

	oneTime := core.IncomeSource{
		Name:      "Rimborso",
		Category:  core.CategoryOther,
		Frequency: core.OneTime,
		Amount:    core.Money{Cents: 5000},
		IsActive:  true,
	}
	mustCreateSource(t, repo, oneTime)

	now := day(2024, 3, 10, 12)
	result, err := gen.GenerateUpcoming(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sources)
	assert.Equal(t, 6, result.Created)
	assert.Empty(t, result.Errors)
	assert.Len(t, events.records, 6)

	records, err := repo.ListRecords(ctx, storage.RecordFilter{SourceID: salaryID})
	require.NoError(t, err)
	require.Len(t, records, 6)

	days := make([]string, 0, len(records))
	for _, rec := range records {
		days = append(days, core.DayKey(rec.ExpectedDate))
		assert.Equal(t, core.StatusPending, rec.Status)
		assert.True(t, rec.AutoGenerated)
		assert.Equal(t, int64(100000), rec.ExpectedAmount.Cents)
		assert.Equal(t, "Auto-generated: expected 1000.00", rec.Notes)
	}
	assert.Equal(t, []string{
		"2024-03-15", "2024-04-01", "2024-04-15",
		"2024-05-01", "2024-05-15", "2024-06-01",
	}, days)

	t.Run("second pass is idempotent", func(t *testing.T) {
		again, err := gen.GenerateUpcoming(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, 0, again.Created)
		assert.Len(t, events.records, 6)
	})
}

func TestRecordGenerator_ManualAmounts(t *testing.T) {
	ctx := context.Background()
	repo := newTestStorage(t)
	gen := NewRecordGenerator(repo, nil, time.UTC, GeneratorConfig{HorizonDays: 60})

	src := monthlySource("Consulenza", 3000, 10, 31)
	src.UseManualAmounts = true
	src.ScheduleDayAmounts = core.DayAmountsOf(map[int]float64{10: 1000.555})
	id := mustCreateSource(t, repo, src)

	stored, err := repo.GetSource(ctx, id)
	require.NoError(t, err)

	created, err := gen.GenerateForSource(ctx, *stored, day(2024, 3, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	records, err := repo.ListRecords(ctx, storage.RecordFilter{SourceID: id})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2024-03-10", core.DayKey(records[0].ExpectedDate))
	assert.Equal(t, "2024-04-10", core.DayKey(records[1].ExpectedDate))
	assert.Equal(t, int64(100056), records[0].ExpectedAmount.Cents)
}

func TestRecordGenerator_CleanupStale(t *testing.T) {
	ctx := context.Background()
	repo := newTestStorage(t)
	gen := NewRecordGenerator(repo, nil, time.UTC, GeneratorConfig{StaleAfterDays: 30})

	id := mustCreateSource(t, repo, monthlySource("Stipendio", 2000, 1))

	_, created, err := repo.InsertPendingRecord(ctx, core.IncomeRecord{
		SourceID:      id,
		ExpectedDate:  day(2024, 1, 1, 9),
		AutoGenerated: true,
	})
	require.NoError(t, err)
	require.True(t, created)

	manualID := mustCreateRecord(t, repo, core.IncomeRecord{
		SourceID:     id,
		ExpectedDate: day(2024, 1, 2, 9),
		Status:       core.StatusPending,
	})
	recentID, _, err := repo.InsertPendingRecord(ctx, core.IncomeRecord{
		SourceID:      id,
		ExpectedDate:  day(2024, 2, 20, 9),
		AutoGenerated: true,
	})
	require.NoError(t, err)

	deleted, err := gen.CleanupStale(ctx, day(2024, 3, 10, 12))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.GetRecord(ctx, manualID)
	assert.NoError(t, err)
	_, err = repo.GetRecord(ctx, recentID)
	assert.NoError(t, err)
}

func TestRecordGenerator_Run(t *testing.T) {
	ctx := context.Background()
	repo := newTestStorage(t)
	gen := NewRecordGenerator(repo, nil, time.UTC, DefaultGeneratorConfig())

	id := mustCreateSource(t, repo, weeklySource("Ripetizioni", 50, 1))

	result, err := gen.Run(ctx, day(2024, 3, 20, 12))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sources)
	assert.Greater(t, result.Created, 10)
	assert.Equal(t, 1, result.NextUpdated)

	src, err := repo.GetSource(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, src.NextPaymentDate)
	assert.Equal(t, "2024-03-25", core.DayKey(*src.NextPaymentDate))
}

func TestRecordGenerator_GenerateForSourceID(t *testing.T) {
	ctx := context.Background()
	repo := newTestStorage(t)
	gen := NewRecordGenerator(repo, nil, time.UTC, GeneratorConfig{HorizonDays: 31})

	created, err := gen.GenerateForSourceID(ctx, 77, day(2024, 3, 1, 0))
	require.NoError(t, err)
	assert.Zero(t, created)

	id := mustCreateSource(t, repo, monthlySource("Stipendio", 2000, 27))
	created, err = gen.GenerateForSourceID(ctx, id, day(2024, 3, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	src, err := repo.GetSource(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, src.NextPaymentDate)
	assert.Equal(t, "2024-03-27", core.DayKey(*src.NextPaymentDate))
}
