package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"entrate/internal/core"
	"entrate/internal/log"
	"entrate/internal/schedule"
	"entrate/internal/storage"
)

// EventPublisher is the outbound side of messaging. *amqp.Client satisfies it.
type EventPublisher interface {
	PublishSourceChanged(ctx context.Context, sourceID int64) error
	PublishRecordSync(ctx context.Context, recordID int64) error
}

// ValidationError marks input rejected before reaching storage.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(err error) error {
	return &ValidationError{Err: err}
}

// IncomeService handles income source and record operations
type IncomeService struct {
	storage *storage.SQLiteRepository
	events  EventPublisher
}

// NewIncomeService creates a new income service. events may be nil.
func NewIncomeService(storage *storage.SQLiteRepository, events EventPublisher) *IncomeService {
	return &IncomeService{
		storage: storage,
		events:  events,
	}
}

// CreateSource validates and stores a source, then asks the scheduler to
// materialize it.
func (s *IncomeService) CreateSource(ctx context.Context, src core.IncomeSource) (int64, error) {
	if err := src.Validate(); err != nil {
		return 0, invalid(err)
	}

	id, err := s.storage.CreateSource(ctx, src)
	if err != nil {
		return 0, fmt.Errorf("save income source: %w", err)
	}

	slog.InfoContext(ctx, "Income source created", log.NewFields().
		WithOperation(log.OpCreate).
		WithSource(id, src.Name, string(src.Frequency)).
		ToSlice()...)

	s.publishSourceChanged(ctx, id)
	return id, nil
}

func (s *IncomeService) UpdateSource(ctx context.Context, src core.IncomeSource) error {
	if _, err := s.storage.GetSource(ctx, src.ID); err != nil {
		return err
	}
	if err := src.Validate(); err != nil {
		return invalid(err)
	}
	if err := s.storage.UpdateSource(ctx, src); err != nil {
		return fmt.Errorf("update income source: %w", err)
	}

	slog.InfoContext(ctx, "Income source updated", log.NewFields().
		WithOperation(log.OpUpdate).
		WithSource(src.ID, src.Name, string(src.Frequency)).
		ToSlice()...)
	s.publishSourceChanged(ctx, src.ID)
	return nil
}

func (s *IncomeService) GetSource(ctx context.Context, id int64) (*core.IncomeSource, error) {
	return s.storage.GetSource(ctx, id)
}

func (s *IncomeService) ListSources(ctx context.Context, activeOnly bool) ([]core.IncomeSource, error) {
	return s.storage.ListSources(ctx, storage.SourceFilter{ActiveOnly: activeOnly})
}

// DeleteSource removes a source together with its records.
func (s *IncomeService) DeleteSource(ctx context.Context, id int64) error {
	if err := s.storage.DeleteSource(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Income source deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldSourceID, id)
	return nil
}

// SchedulePreview is what a source's schedule looks like around a date.
type SchedulePreview struct {
	Source   core.IncomeSource
	Next     *time.Time
	Upcoming []core.Occurrence
	Recent   []core.Occurrence
}

// PreviewSchedule runs the engine for a stored source without persisting
// anything.
func (s *IncomeService) PreviewSchedule(ctx context.Context, id int64, from time.Time, days int) (*SchedulePreview, error) {
	src, err := s.storage.GetSource(ctx, id)
	if err != nil {
		return nil, err
	}

	cfg := src.Schedule()
	preview := &SchedulePreview{
		Source:   *src,
		Upcoming: []core.Occurrence{},
		Recent:   schedule.Recent(cfg, from, days),
	}
	if next, ok := schedule.NextOccurrence(cfg, from); ok {
		preview.Next = &next
	}
	for occ := range schedule.Upcoming(cfg, from, days) {
		preview.Upcoming = append(preview.Upcoming, occ)
	}
	if preview.Recent == nil {
		preview.Recent = []core.Occurrence{}
	}
	return preview, nil
}

func (s *IncomeService) ListRecords(ctx context.Context, f storage.RecordFilter) ([]core.IncomeRecord, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, invalid(core.ErrInvalidStatus)
	}
	return s.storage.ListRecords(ctx, f)
}

func (s *IncomeService) GetRecord(ctx context.Context, id int64) (*core.IncomeRecord, error) {
	return s.storage.GetRecord(ctx, id)
}

// CreateRecord stores a manually entered record. Status defaults to PENDING.
func (s *IncomeService) CreateRecord(ctx context.Context, rec core.IncomeRecord) (int64, error) {
	if rec.Status == "" {
		rec.Status = core.StatusPending
	}
	if err := rec.Validate(); err != nil {
		return 0, invalid(err)
	}
	if _, err := s.storage.GetSource(ctx, rec.SourceID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, invalid(fmt.Errorf("income source %d does not exist", rec.SourceID))
		}
		return 0, err
	}

	rec.AutoGenerated = false
	id, err := s.storage.CreateRecord(ctx, rec)
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Income record created", log.NewFields().
		WithOperation(log.OpCreate).
		WithRecord(id, core.DayKey(rec.ExpectedDate), rec.ExpectedAmount.Cents).
		ToSlice()...)

	s.publishRecordSync(ctx, id)
	return id, nil
}

// UpdateRecord overwrites a record. The source of a record cannot change.
func (s *IncomeService) UpdateRecord(ctx context.Context, rec core.IncomeRecord) error {
	existing, err := s.storage.GetRecord(ctx, rec.ID)
	if err != nil {
		return err
	}
	rec.SourceID = existing.SourceID
	if rec.Status == "" {
		rec.Status = existing.Status
	}
	if err := rec.Validate(); err != nil {
		return invalid(err)
	}
	if err := s.storage.UpdateRecord(ctx, rec); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Income record updated", log.NewFields().
		WithOperation(log.OpUpdate).
		WithRecord(rec.ID, core.DayKey(rec.ExpectedDate), rec.ExpectedAmount.Cents).
		ToSlice()...)
	s.publishRecordSync(ctx, rec.ID)
	return nil
}

func (s *IncomeService) DeleteRecord(ctx context.Context, id int64) error {
	if err := s.storage.DeleteRecord(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Income record deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldRecordID, id)
	return nil
}

func (s *IncomeService) publishSourceChanged(ctx context.Context, id int64) {
	if s.events == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping source change message", log.FieldSourceID, id)
		return
	}
	if err := s.events.PublishSourceChanged(ctx, id); err != nil {
		// The scheduler picks the source up on its next run.
		slog.ErrorContext(ctx, "Failed to publish source change message", log.FieldError, err, log.FieldSourceID, id)
		return
	}
	slog.InfoContext(ctx, "Source change message published", log.FieldSourceID, id)
}

func (s *IncomeService) publishRecordSync(ctx context.Context, id int64) {
	if s.events == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping record sync message", log.FieldRecordID, id)
		return
	}
	if err := s.events.PublishRecordSync(ctx, id); err != nil {
		// The sync worker's periodic batch exports unsynced records.
		slog.ErrorContext(ctx, "Failed to publish record sync message", log.FieldError, err, log.FieldRecordID, id)
	}
}
