package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entrate/internal/core"
	"entrate/internal/storage"
)

const splitSalary = `
frequency = "monthly"
scheduleDays = [10, 31]
amount = 1500.0
useManualAmounts = true

[scheduleDayAmounts]
10 = 1000.0
31 = 500.0
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoadScheduleFile(t *testing.T) {
	cfg, err := LoadScheduleFile(writeFile(t, "salary.toml", splitSalary))
	require.NoError(t, err)
	assert.Equal(t, core.Monthly, cfg.Frequency)
	assert.Equal(t, []int{10, 31}, cfg.ScheduleDays)
	v, ok := cfg.ScheduleDayAmounts.Lookup(31)
	require.True(t, ok)
	assert.Equal(t, 500.0, v)

	js := `{"frequency":"WEEKLY","scheduleWeekday":5,"amount":300,"scheduleTime":"08:30"}`
	cfg, err = LoadScheduleFile(writeFile(t, "weekly.json", js))
	require.NoError(t, err)
	require.NotNil(t, cfg.ScheduleWeekday)
	assert.Equal(t, 5, *cfg.ScheduleWeekday)

	_, err = LoadScheduleFile(writeFile(t, "salary.yaml", "frequency: MONTHLY"))
	assert.Error(t, err)

	_, err = LoadScheduleFile(writeFile(t, "bad.toml", `frequency = "DAILY"`))
	assert.ErrorIs(t, err, core.ErrInvalidFrequency)
}

func TestUpcomingCommand(t *testing.T) {
	path := writeFile(t, "salary.toml", splitSalary)

	out, err := run(t, "upcoming", path, "--from", "2024-02-01", "--days", "40", "--tz", "UTC", "--json")
	require.NoError(t, err)

	var occs []core.Occurrence
	require.NoError(t, json.Unmarshal([]byte(out), &occs))
	require.Len(t, occs, 3)
	assert.Equal(t, time.Date(2024, time.February, 10, 9, 0, 0, 0, time.UTC), occs[0].Date.UTC())
	assert.Equal(t, 1000.0, occs[0].Amount)
	assert.Equal(t, time.Date(2024, time.February, 29, 9, 0, 0, 0, time.UTC), occs[1].Date.UTC())
	assert.Equal(t, 500.0, occs[1].Amount)
}

func TestNextCommandTable(t *testing.T) {
	path := writeFile(t, "salary.toml", splitSalary)

	out, err := run(t, "next", path, "--from", "2024-02-10", "--tz", "UTC")
	require.NoError(t, err)
	assert.Contains(t, out, "DATE")
	assert.Contains(t, out, "2024-02-29")
	assert.Contains(t, out, "Thu")
	assert.Contains(t, out, "500.00")
}

func TestRecentCommandUsesEvenSplit(t *testing.T) {
	path := writeFile(t, "salary.toml", splitSalary)

	out, err := run(t, "recent", path, "--to", "2024-03-12", "--days", "40", "--tz", "UTC", "--json")
	require.NoError(t, err)

	var occs []core.Occurrence
	require.NoError(t, json.Unmarshal([]byte(out), &occs))
	require.Len(t, occs, 3)
	assert.Equal(t, time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC), occs[0].Date.UTC())
	for _, occ := range occs {
		assert.Equal(t, 750.0, occ.Amount)
	}
}

func TestScheduleCommandErrors(t *testing.T) {
	path := writeFile(t, "salary.toml", splitSalary)

	_, err := run(t, "upcoming", path, "--days", "0")
	assert.Error(t, err)
	_, err = run(t, "next", path, "--from", "10/02/2024")
	assert.Error(t, err)
	_, err = run(t, "next", path, "--tz", "Mars/Olympus")
	assert.Error(t, err)
	_, err = run(t, "next")
	assert.Error(t, err)
}

func TestGenerateCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "entrate.db")
	t.Setenv("SQLITE_DB_PATH", dbPath)
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("EXPORT_BACKEND", "memory")
	t.Setenv("AMQP_URL", "")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("LOG_FORMAT", "text")

	repo, err := storage.NewSQLiteRepository(dbPath)
	require.NoError(t, err)
	_, err = repo.CreateSource(context.Background(), core.IncomeSource{
		Name:         "Salary",
		Category:     core.CategorySalary,
		Frequency:    core.Monthly,
		ScheduleDays: []int{15},
		Amount:       core.MoneyFromAmount(2000),
		IsActive:     true,
	})
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	out, err := run(t, "generate", "--as-of", "2024-03-10")
	require.NoError(t, err, out)
	assert.Contains(t, out, "created:       3")
	assert.Contains(t, out, "component=cli")
	assert.Contains(t, out, "operation=generate")

	out, err = run(t, "generate", "--as-of", "2024-03-10")
	require.NoError(t, err, out)
	assert.Contains(t, out, "created:       0")
}
