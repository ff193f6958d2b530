package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"entrate/internal/core"
)

// RecordFilter narrows ListRecords. Day bounds are "YYYY-MM-DD" strings;
// FromDay is inclusive, ToDay exclusive.
type RecordFilter struct {
	SourceID int64
	Status   core.RecordStatus
	FromDay  string
	ToDay    string
	Limit    int
}

const recordColumns = `id, source_id, expected_at, expected_amount_cents, actual_amount_cents,
	actual_at, status, notes, auto_generated, synced_at, created_at, updated_at`

func actualDay(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: core.DayKey(*t), Valid: true}
}

// CreateRecord stores a record. A second record for the same source and
// calendar day fails with ErrConflict.
func (r *SQLiteRepository) CreateRecord(ctx context.Context, rec core.IncomeRecord) (int64, error) {
	now := r.stamp()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO income_records (source_id, expected_at, expected_day, expected_amount_cents,
			actual_amount_cents, actual_at, actual_day, status, notes, auto_generated,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SourceID, formatTime(rec.ExpectedDate), core.DayKey(rec.ExpectedDate), rec.ExpectedAmount.Cents,
		rec.ActualAmount.Cents, formatNullTime(rec.ActualDate), actualDay(rec.ActualDate), string(rec.Status),
		rec.Notes, boolToInt(rec.AutoGenerated), now, now)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("record for source %d on %s: %w", rec.SourceID, core.DayKey(rec.ExpectedDate), ErrConflict)
	}
	if err != nil {
		return 0, fmt.Errorf("insert income record: %w", err)
	}
	return res.LastInsertId()
}

// InsertPendingRecord stores rec unless the source already has a record on
// the same calendar day. created is false when the insert was skipped.
func (r *SQLiteRepository) InsertPendingRecord(ctx context.Context, rec core.IncomeRecord) (id int64, created bool, err error) {
	now := r.stamp()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO income_records (source_id, expected_at, expected_day, expected_amount_cents,
			status, notes, auto_generated, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_id, expected_day) DO NOTHING`,
		rec.SourceID, formatTime(rec.ExpectedDate), core.DayKey(rec.ExpectedDate), rec.ExpectedAmount.Cents,
		string(core.StatusPending), rec.Notes, boolToInt(rec.AutoGenerated), now, now)
	if err != nil {
		return 0, false, fmt.Errorf("insert pending record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("pending record rows affected: %w", err)
	}
	if n == 0 {
		return 0, false, nil
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("pending record id: %w", err)
	}
	return id, true, nil
}

// UpdateRecord overwrites status, amounts, dates and notes. The record is
// queued for export again.
func (r *SQLiteRepository) UpdateRecord(ctx context.Context, rec core.IncomeRecord) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE income_records SET expected_at = ?, expected_day = ?, expected_amount_cents = ?,
			actual_amount_cents = ?, actual_at = ?, actual_day = ?, status = ?, notes = ?,
			synced_at = NULL, updated_at = ?
		WHERE id = ?`,
		formatTime(rec.ExpectedDate), core.DayKey(rec.ExpectedDate), rec.ExpectedAmount.Cents,
		rec.ActualAmount.Cents, formatNullTime(rec.ActualDate), actualDay(rec.ActualDate), string(rec.Status), rec.Notes,
		r.stamp(), rec.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("record for source %d on %s: %w", rec.SourceID, core.DayKey(rec.ExpectedDate), ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("update income record %d: %w", rec.ID, err)
	}
	return expectOneRow(res, "income record", rec.ID)
}

func (r *SQLiteRepository) GetRecord(ctx context.Context, id int64) (*core.IncomeRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM income_records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("income record %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get income record %d: %w", id, err)
	}
	return &rec, nil
}

func (r *SQLiteRepository) DeleteRecord(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM income_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete income record %d: %w", id, err)
	}
	return expectOneRow(res, "income record", id)
}

// ListRecords returns records ordered by expected date.
func (r *SQLiteRepository) ListRecords(ctx context.Context, f RecordFilter) ([]core.IncomeRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM income_records WHERE 1 = 1`
	var args []any
	if f.SourceID > 0 {
		query += ` AND source_id = ?`
		args = append(args, f.SourceID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.FromDay != "" {
		query += ` AND expected_day >= ?`
		args = append(args, f.FromDay)
	}
	if f.ToDay != "" {
		query += ` AND expected_day < ?`
		args = append(args, f.ToDay)
	}
	query += ` ORDER BY expected_day, id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	return r.queryRecords(ctx, query, args...)
}

// ListRecentReceived returns the latest RECEIVED records with their source
// names, newest payment first.
func (r *SQLiteRepository) ListRecentReceived(ctx context.Context, limit int) ([]core.ReceivedPayment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.source_id, s.name, r.actual_amount_cents, COALESCE(r.actual_at, r.expected_at)
		FROM income_records r
		JOIN income_sources s ON s.id = r.source_id
		WHERE r.status = ? AND r.actual_amount_cents > 0
		ORDER BY COALESCE(r.actual_day, r.expected_day) DESC, r.id DESC
		LIMIT ?`, string(core.StatusReceived), limit)
	if err != nil {
		return nil, fmt.Errorf("list recent received: %w", err)
	}
	defer rows.Close()

	var out []core.ReceivedPayment
	for rows.Next() {
		var (
			p    core.ReceivedPayment
			date string
		)
		if err := rows.Scan(&p.RecordID, &p.SourceID, &p.SourceName, &p.Amount.Cents, &date); err != nil {
			return nil, fmt.Errorf("scan received payment: %w", err)
		}
		if p.Date, err = parseTime(date); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ReceivedByMonth sums actual amounts of RECEIVED records per month of the
// given year, keyed 1-12 by the month the money arrived.
func (r *SQLiteRepository) ReceivedByMonth(ctx context.Context, year int) (map[int]core.Money, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT CAST(substr(COALESCE(actual_day, expected_day), 6, 2) AS INTEGER) AS month,
			SUM(actual_amount_cents)
		FROM income_records
		WHERE status = ? AND substr(COALESCE(actual_day, expected_day), 1, 4) = ?
		GROUP BY month`, string(core.StatusReceived), fmt.Sprintf("%04d", year))
	if err != nil {
		return nil, fmt.Errorf("received by month: %w", err)
	}
	defer rows.Close()

	out := make(map[int]core.Money)
	for rows.Next() {
		var month int
		var cents int64
		if err := rows.Scan(&month, &cents); err != nil {
			return nil, fmt.Errorf("scan received by month: %w", err)
		}
		out[month] = core.Money{Cents: cents}
	}
	return out, rows.Err()
}

// DeleteStalePending removes auto-generated PENDING records expected before
// cutoffDay and returns how many were deleted.
func (r *SQLiteRepository) DeleteStalePending(ctx context.Context, cutoffDay string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM income_records
		WHERE auto_generated = 1 AND status = ? AND expected_day < ?`,
		string(core.StatusPending), cutoffDay)
	if err != nil {
		return 0, fmt.Errorf("delete stale pending records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale pending rows affected: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Stale pending records deleted", "count", n, "cutoff", cutoffDay)
	}
	return n, nil
}

// ListUnsyncedRecords returns records not yet exported, oldest first.
func (r *SQLiteRepository) ListUnsyncedRecords(ctx context.Context, limit int) ([]core.IncomeRecord, error) {
	return r.queryRecords(ctx, `SELECT `+recordColumns+` FROM income_records
		WHERE synced_at IS NULL ORDER BY updated_at, id LIMIT ?`, limit)
}

// MarkSynced records that a record was exported at the given time.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE income_records SET synced_at = ? WHERE id = ?`,
		at.UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("mark record synced: %w", err)
	}
	if err := expectOneRow(res, "income record", id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Income record marked as synced", "id", id)
	return nil
}

func (r *SQLiteRepository) queryRecords(ctx context.Context, query string, args ...any) ([]core.IncomeRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query income records: %w", err)
	}
	defer rows.Close()

	var out []core.IncomeRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan income record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(sc rowScanner) (core.IncomeRecord, error) {
	var (
		rec                  core.IncomeRecord
		expectedAt, status   string
		actualAt, syncedAt   sql.NullString
		auto                 int
		createdAt, updatedAt string
	)
	err := sc.Scan(&rec.ID, &rec.SourceID, &expectedAt, &rec.ExpectedAmount.Cents, &rec.ActualAmount.Cents,
		&actualAt, &status, &rec.Notes, &auto, &syncedAt, &createdAt, &updatedAt)
	if err != nil {
		return rec, err
	}

	rec.Status = core.RecordStatus(status)
	rec.AutoGenerated = auto == 1
	if rec.ExpectedDate, err = parseTime(expectedAt); err != nil {
		return rec, err
	}
	if rec.ActualDate, err = parseNullTime(actualAt); err != nil {
		return rec, err
	}
	if rec.SyncedAt, err = parseNullTime(syncedAt); err != nil {
		return rec, err
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return rec, err
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return rec, err
	}
	return rec, nil
}
