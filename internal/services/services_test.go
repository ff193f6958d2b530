package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"entrate/internal/core"
	"entrate/internal/storage"
)

type recordingPublisher struct {
	mu      sync.Mutex
	sources []int64
	records []int64
}

func (p *recordingPublisher) PublishSourceChanged(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources = append(p.sources, id)
	return nil
}

func (p *recordingPublisher) PublishRecordSync(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, id)
	return nil
}

func newTestStorage(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "entrate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func intPtr(v int) *int { return &v }

func day(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func monthlySource(name string, amount float64, days ...int) core.IncomeSource {
	return core.IncomeSource{
		Name:         name,
		Category:     core.CategorySalary,
		Frequency:    core.Monthly,
		ScheduleDays: days,
		Amount:       core.MoneyFromAmount(amount),
		IsActive:     true,
	}
}

func weeklySource(name string, amount float64, weekday int) core.IncomeSource {
	return core.IncomeSource{
		Name:            name,
		Category:        core.CategoryFreelance,
		Frequency:       core.Weekly,
		ScheduleWeekday: intPtr(weekday),
		Amount:          core.MoneyFromAmount(amount),
		IsActive:        true,
	}
}

func mustCreateSource(t *testing.T, repo *storage.SQLiteRepository, src core.IncomeSource) int64 {
	t.Helper()
	id, err := repo.CreateSource(context.Background(), src)
	require.NoError(t, err)
	return id
}

func mustCreateRecord(t *testing.T, repo *storage.SQLiteRepository, rec core.IncomeRecord) int64 {
	t.Helper()
	id, err := repo.CreateRecord(context.Background(), rec)
	require.NoError(t, err)
	return id
}
