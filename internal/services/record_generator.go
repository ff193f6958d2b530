package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"entrate/internal/core"
	"entrate/internal/log"
	"entrate/internal/metrics"
	"entrate/internal/schedule"
	"entrate/internal/storage"
)

// GeneratorConfig holds the horizons used by the record generator
type GeneratorConfig struct {
	// HorizonDays is how far ahead pending records are materialized (default: 90)
	HorizonDays int

	// StaleAfterDays is how old an untouched auto-generated record may get
	// before it is pruned (default: 30)
	StaleAfterDays int
}

// DefaultGeneratorConfig returns sensible defaults
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		HorizonDays:    90,
		StaleAfterDays: 30,
	}
}

// GenerationResult summarizes one GenerateUpcoming pass.
type GenerationResult struct {
	Sources int
	Created int
	Errors  []error
}

// RunResult summarizes a full materialization run.
type RunResult struct {
	GenerationResult
	StaleDeleted int64
	NextUpdated  int
}

// RecordGenerator turns source schedules into PENDING income records.
type RecordGenerator struct {
	storage *storage.SQLiteRepository
	events  EventPublisher
	loc     *time.Location
	config  GeneratorConfig
}

// NewRecordGenerator creates a new record generator. events may be nil;
// loc is the zone calendar days are resolved in.
func NewRecordGenerator(storage *storage.SQLiteRepository, events EventPublisher, loc *time.Location, config GeneratorConfig) *RecordGenerator {
	if loc == nil {
		loc = time.Local
	}
	defaults := DefaultGeneratorConfig()
	if config.HorizonDays <= 0 {
		config.HorizonDays = defaults.HorizonDays
	}
	if config.StaleAfterDays <= 0 {
		config.StaleAfterDays = defaults.StaleAfterDays
	}
	return &RecordGenerator{
		storage: storage,
		events:  events,
		loc:     loc,
		config:  config,
	}
}

// GenerateUpcoming materializes every active recurring source. A failing
// source is recorded in the result and does not stop the pass.
func (g *RecordGenerator) GenerateUpcoming(ctx context.Context, now time.Time) (GenerationResult, error) {
	var result GenerationResult
	if g.storage == nil {
		return result, fmt.Errorf("generator not properly initialized")
	}

	sources, err := g.storage.ListSources(ctx, storage.SourceFilter{ActiveOnly: true, RecurringOnly: true})
	if err != nil {
		return result, fmt.Errorf("list active sources: %w", err)
	}

	slog.InfoContext(ctx, "Generating upcoming income records",
		"sources", len(sources),
		"horizon_days", g.config.HorizonDays)

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Sources++
		created, err := g.GenerateForSource(ctx, src, now)
		result.Created += created
		if err != nil {
			slog.ErrorContext(ctx, "Failed to generate records for source", log.NewFields().
				WithOperation(log.OpGenerate).
				WithSource(src.ID, src.Name, string(src.Frequency)).
				WithError(err).
				ToSlice()...)
			result.Errors = append(result.Errors, fmt.Errorf("source %d: %w", src.ID, err))
		}
	}

	slog.InfoContext(ctx, "Upcoming income records generated",
		"sources", result.Sources,
		"created", result.Created,
		"failed", len(result.Errors))
	return result, nil
}

// GenerateForSource inserts one PENDING record per projected calendar day
// that has none yet and returns how many were created.
func (g *RecordGenerator) GenerateForSource(ctx context.Context, src core.IncomeSource, now time.Time) (int, error) {
	if !src.IsActive || !src.IsRecurring() {
		return 0, nil
	}

	created := 0
	for occ := range schedule.Upcoming(src.Schedule(), now.In(g.loc), g.config.HorizonDays) {
		amount := core.MoneyFromAmount(occ.Amount)
		if amount.Cents <= 0 {
			slog.WarnContext(ctx, "Skipping occurrence with invalid amount",
				log.FieldSourceID, src.ID,
				log.FieldDay, core.DayKey(occ.Date),
				"amount", occ.Amount)
			continue
		}

		id, ok, err := g.storage.InsertPendingRecord(ctx, core.IncomeRecord{
			SourceID:       src.ID,
			ExpectedDate:   occ.Date,
			ExpectedAmount: amount,
			Status:         core.StatusPending,
			Notes:          fmt.Sprintf("Auto-generated: expected %s", amount),
			AutoGenerated:  true,
		})
		if err != nil {
			return created, err
		}
		if !ok {
			continue
		}

		created++
		slog.DebugContext(ctx, "Pending income record created", log.NewFields().
			WithRecord(id, core.DayKey(occ.Date), amount.Cents).
			WithSource(src.ID, src.Name, string(src.Frequency)).
			ToSlice()...)
		g.publishRecordSync(ctx, id)
	}
	return created, nil
}

// GenerateForSourceID reloads a source and materializes it. Unknown ids
// are ignored since the source may have been deleted after the event.
func (g *RecordGenerator) GenerateForSourceID(ctx context.Context, id int64, now time.Time) (int, error) {
	src, err := g.storage.GetSource(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		slog.WarnContext(ctx, "Income source no longer exists", log.FieldSourceID, id)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	created, err := g.GenerateForSource(ctx, *src, now)
	if err != nil {
		return created, err
	}
	if err := g.updateNextPayment(ctx, *src, now); err != nil {
		return created, err
	}
	return created, nil
}

// CleanupStale prunes auto-generated PENDING records whose expected day is
// older than the stale threshold.
func (g *RecordGenerator) CleanupStale(ctx context.Context, now time.Time) (int64, error) {
	cutoff := core.DayKey(now.In(g.loc).AddDate(0, 0, -g.config.StaleAfterDays))
	n, err := g.storage.DeleteStalePending(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.InfoContext(ctx, "Stale pending records pruned",
			log.FieldOperation, log.OpCleanup,
			log.FieldDay, cutoff,
			log.FieldCount, n)
	}
	return n, nil
}

// UpdateNextPaymentDates stores the next occurrence of every active
// recurring source and returns how many sources were updated.
func (g *RecordGenerator) UpdateNextPaymentDates(ctx context.Context, now time.Time) (int, error) {
	sources, err := g.storage.ListSources(ctx, storage.SourceFilter{ActiveOnly: true, RecurringOnly: true})
	if err != nil {
		return 0, fmt.Errorf("list active sources: %w", err)
	}

	updated := 0
	for _, src := range sources {
		if err := g.updateNextPayment(ctx, src, now); err != nil {
			slog.ErrorContext(ctx, "Failed to update next payment date",
				log.FieldSourceID, src.ID,
				log.FieldError, err)
			continue
		}
		updated++
	}
	return updated, nil
}

func (g *RecordGenerator) updateNextPayment(ctx context.Context, src core.IncomeSource, now time.Time) error {
	var next *time.Time
	if src.IsActive {
		if t, ok := schedule.NextOccurrence(src.Schedule(), now.In(g.loc)); ok {
			next = &t
		}
	}
	return g.storage.UpdateNextPaymentDate(ctx, src.ID, next)
}

// Run performs a full pass: prune stale records, materialize upcoming ones
// and refresh next payment dates.
func (g *RecordGenerator) Run(ctx context.Context, now time.Time) (RunResult, error) {
	start := time.Now()
	defer func() {
		metrics.GeneratorDuration.Observe(time.Since(start).Seconds())
	}()

	var result RunResult
	stale, err := g.CleanupStale(ctx, now)
	if err != nil {
		metrics.GeneratorRuns.WithLabelValues("error").Inc()
		return result, fmt.Errorf("cleanup stale records: %w", err)
	}
	result.StaleDeleted = stale
	metrics.StaleRecordsDeleted.Add(float64(stale))

	gen, err := g.GenerateUpcoming(ctx, now)
	result.GenerationResult = gen
	metrics.RecordsGenerated.Add(float64(gen.Created))
	if err != nil {
		metrics.GeneratorRuns.WithLabelValues("error").Inc()
		return result, fmt.Errorf("generate upcoming records: %w", err)
	}

	result.NextUpdated, err = g.UpdateNextPaymentDates(ctx, now)
	if err != nil {
		metrics.GeneratorRuns.WithLabelValues("error").Inc()
		return result, fmt.Errorf("update next payment dates: %w", err)
	}

	if len(gen.Errors) > 0 {
		metrics.GeneratorRuns.WithLabelValues("partial").Inc()
	} else {
		metrics.GeneratorRuns.WithLabelValues("ok").Inc()
	}

	slog.InfoContext(ctx, "Materialization run completed",
		"stale_deleted", result.StaleDeleted,
		"created", result.Created,
		"failed", len(result.Errors),
		"next_updated", result.NextUpdated,
		log.FieldDuration, time.Since(start).Milliseconds())
	return result, nil
}

func (g *RecordGenerator) publishRecordSync(ctx context.Context, id int64) {
	if g.events == nil {
		return
	}
	if err := g.events.PublishRecordSync(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish record sync message", log.FieldError, err, log.FieldRecordID, id)
	}
}
