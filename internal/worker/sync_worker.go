package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"entrate/internal/amqp"
	"entrate/internal/core"
	"entrate/internal/log"
	"entrate/internal/metrics"
	"entrate/internal/sheets"
	"entrate/internal/storage"
)

// SyncWorker exports income records from SQLite to the external ledger
type SyncWorker struct {
	storage   *storage.SQLiteRepository
	exporter  sheets.RecordExporter
	batchSize int
	now       func() time.Time
}

func NewSyncWorker(storage *storage.SQLiteRepository, exporter sheets.RecordExporter, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{
		storage:   storage,
		exporter:  exporter,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// HandleSyncMessage processes a single record sync message from AMQP
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.RecordSyncMessage) error {
	slog.InfoContext(ctx, "Processing record sync message",
		log.FieldOperation, log.OpSync,
		log.FieldRecordID, msg.RecordID,
		"timestamp", msg.Timestamp)

	rec, err := w.storage.GetRecord(ctx, msg.RecordID)
	if errors.Is(err, storage.ErrNotFound) {
		// Deleted after the message was published; nothing to export.
		slog.WarnContext(ctx, "Income record no longer exists, dropping sync message", log.FieldRecordID, msg.RecordID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get record from storage: %w", err)
	}

	if rec.SyncedAt != nil {
		slog.InfoContext(ctx, "Income record already synced, skipping", log.FieldRecordID, rec.ID)
		return nil
	}

	return w.exportRecord(ctx, *rec)
}

// ProcessPending exports records that haven't been synced yet.
// This is a backup mechanism in case AMQP messages are lost
func (w *SyncWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.processBatch(ctx, w.batchSize)
}

// StartupSyncCheck exports a larger batch of unsynced records at worker
// startup, to recover from missed messages or downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, err := w.processBatch(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync completed",
		log.FieldOperation, log.OpStartup,
		log.FieldCount, synced)
	return nil
}

func (w *SyncWorker) processBatch(ctx context.Context, limit int) (int, error) {
	pending, err := w.storage.ListUnsyncedRecords(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get unsynced records: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing unsynced records",
		log.FieldOperation, log.OpSync,
		log.FieldCount, len(pending))

	synced := 0
	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		if err := w.exportRecord(ctx, rec); err != nil {
			slog.ErrorContext(ctx, "Failed to sync record", log.NewFields().
				WithOperation(log.OpSync).
				WithRecord(rec.ID, core.DayKey(rec.ExpectedDate), rec.ExpectedAmount.Cents).
				WithError(err).
				ToSlice()...)
			continue
		}
		synced++
	}
	return synced, nil
}

func (w *SyncWorker) exportRecord(ctx context.Context, rec core.IncomeRecord) error {
	src, err := w.storage.GetSource(ctx, rec.SourceID)
	if err != nil {
		metrics.RecordsExported.WithLabelValues("error").Inc()
		return fmt.Errorf("get source %d: %w", rec.SourceID, err)
	}

	ref, err := w.exporter.AppendRecord(ctx, exportRow(rec, *src))
	if err != nil {
		metrics.RecordsExported.WithLabelValues("error").Inc()
		return fmt.Errorf("export record %d: %w", rec.ID, err)
	}

	if err := w.storage.MarkSynced(ctx, rec.ID, w.now()); err != nil {
		metrics.RecordsExported.WithLabelValues("error").Inc()
		return fmt.Errorf("mark record %d synced: %w", rec.ID, err)
	}

	metrics.RecordsExported.WithLabelValues("ok").Inc()
	slog.InfoContext(ctx, "Income record exported",
		log.FieldRecordID, rec.ID,
		log.FieldSourceID, rec.SourceID,
		log.FieldSheetsRef, ref)
	return nil
}

func exportRow(rec core.IncomeRecord, src core.IncomeSource) core.ExportRow {
	return core.ExportRow{
		RecordID:       rec.ID,
		Date:           rec.ExpectedDate,
		SourceName:     src.Name,
		Category:       src.Category,
		Status:         rec.Status,
		ExpectedAmount: rec.ExpectedAmount,
		ActualAmount:   rec.ActualAmount,
		Notes:          rec.Notes,
	}
}
