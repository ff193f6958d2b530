package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entrate/internal/core"
)

// SourceFilter narrows ListSources.
type SourceFilter struct {
	ActiveOnly    bool
	RecurringOnly bool
}

const sourceColumns = `id, name, category, description, frequency, amount_cents,
	schedule_days, schedule_weekday, schedule_week, schedule_time,
	use_manual_amounts, schedule_day_amounts, is_active, next_payment_at,
	created_at, updated_at`

type sourceParams struct {
	days       string
	weekday    sql.NullInt64
	dayAmounts string
}

func encodeSource(s core.IncomeSource) (sourceParams, error) {
	var p sourceParams
	days := s.ScheduleDays
	if days == nil {
		days = []int{}
	}
	b, err := json.Marshal(days)
	if err != nil {
		return p, fmt.Errorf("encode schedule days: %w", err)
	}
	p.days = string(b)

	amounts := s.ScheduleDayAmounts
	if amounts == nil {
		amounts = core.DayAmounts{}
	}
	b, err = json.Marshal(amounts)
	if err != nil {
		return p, fmt.Errorf("encode day amounts: %w", err)
	}
	p.dayAmounts = string(b)

	if s.ScheduleWeekday != nil {
		p.weekday = sql.NullInt64{Int64: int64(*s.ScheduleWeekday), Valid: true}
	}
	return p, nil
}

// CreateSource stores s and returns its new ID.
func (r *SQLiteRepository) CreateSource(ctx context.Context, s core.IncomeSource) (int64, error) {
	p, err := encodeSource(s)
	if err != nil {
		return 0, err
	}
	now := r.stamp()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO income_sources (name, category, description, frequency, amount_cents,
			schedule_days, schedule_weekday, schedule_week, schedule_time,
			use_manual_amounts, schedule_day_amounts, is_active, next_payment_at,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(s.Name), string(s.Category), s.Description, string(s.Frequency), s.Amount.Cents,
		p.days, p.weekday, string(s.ScheduleWeek), s.ScheduleTime,
		boolToInt(s.UseManualAmounts), p.dayAmounts, boolToInt(s.IsActive), formatNullTime(s.NextPaymentDate),
		now, now)
	if err != nil {
		return 0, fmt.Errorf("insert income source: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("income source id: %w", err)
	}

	slog.InfoContext(ctx, "Income source saved to SQLite",
		"id", id,
		"name", s.Name,
		"frequency", s.Frequency,
		"amount_cents", s.Amount.Cents)
	return id, nil
}

// UpdateSource overwrites the editable fields of s.
func (r *SQLiteRepository) UpdateSource(ctx context.Context, s core.IncomeSource) error {
	p, err := encodeSource(s)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE income_sources SET name = ?, category = ?, description = ?, frequency = ?,
			amount_cents = ?, schedule_days = ?, schedule_weekday = ?, schedule_week = ?,
			schedule_time = ?, use_manual_amounts = ?, schedule_day_amounts = ?, is_active = ?,
			updated_at = ?
		WHERE id = ?`,
		strings.TrimSpace(s.Name), string(s.Category), s.Description, string(s.Frequency),
		s.Amount.Cents, p.days, p.weekday, string(s.ScheduleWeek),
		s.ScheduleTime, boolToInt(s.UseManualAmounts), p.dayAmounts, boolToInt(s.IsActive),
		r.stamp(), s.ID)
	if err != nil {
		return fmt.Errorf("update income source %d: %w", s.ID, err)
	}
	return expectOneRow(res, "income source", s.ID)
}

// GetSource loads a single source.
func (r *SQLiteRepository) GetSource(ctx context.Context, id int64) (*core.IncomeSource, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM income_sources WHERE id = ?`, id)
	s, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("income source %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get income source %d: %w", id, err)
	}
	return &s, nil
}

// ListSources returns sources ordered by name.
func (r *SQLiteRepository) ListSources(ctx context.Context, f SourceFilter) ([]core.IncomeSource, error) {
	query := `SELECT ` + sourceColumns + ` FROM income_sources WHERE 1 = 1`
	var args []any
	if f.ActiveOnly {
		query += ` AND is_active = 1`
	}
	if f.RecurringOnly {
		query += ` AND frequency <> ?`
		args = append(args, string(core.OneTime))
	}
	query += ` ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list income sources: %w", err)
	}
	defer rows.Close()

	var out []core.IncomeSource
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan income source: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteSource removes a source and, through the foreign key, its records.
func (r *SQLiteRepository) DeleteSource(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM income_sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete income source %d: %w", id, err)
	}
	return expectOneRow(res, "income source", id)
}

// UpdateNextPaymentDate stores the cached next occurrence; nil clears it.
func (r *SQLiteRepository) UpdateNextPaymentDate(ctx context.Context, id int64, next *time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE income_sources SET next_payment_at = ?, updated_at = ? WHERE id = ?`,
		formatNullTime(next), r.stamp(), id)
	if err != nil {
		return fmt.Errorf("update next payment date %d: %w", id, err)
	}
	return expectOneRow(res, "income source", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(sc rowScanner) (core.IncomeSource, error) {
	var (
		s                         core.IncomeSource
		category, frequency, week string
		days, dayAmounts          string
		weekday                   sql.NullInt64
		manual, active            int
		next                      sql.NullString
		createdAt, updatedAt      string
	)
	err := sc.Scan(&s.ID, &s.Name, &category, &s.Description, &frequency, &s.Amount.Cents,
		&days, &weekday, &week, &s.ScheduleTime,
		&manual, &dayAmounts, &active, &next,
		&createdAt, &updatedAt)
	if err != nil {
		return s, err
	}

	s.Category = core.IncomeCategory(category)
	s.Frequency = core.Frequency(frequency)
	s.ScheduleWeek = core.WeekOfMonth(week)
	s.UseManualAmounts = manual == 1
	s.IsActive = active == 1
	if weekday.Valid {
		w := int(weekday.Int64)
		s.ScheduleWeekday = &w
	}
	if err := json.Unmarshal([]byte(days), &s.ScheduleDays); err != nil {
		return s, fmt.Errorf("decode schedule days: %w", err)
	}
	if err := json.Unmarshal([]byte(dayAmounts), &s.ScheduleDayAmounts); err != nil {
		return s, fmt.Errorf("decode day amounts: %w", err)
	}
	if s.NextPaymentDate, err = parseNullTime(next); err != nil {
		return s, err
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return s, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return s, err
	}
	return s, nil
}

func expectOneRow(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d rows affected: %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return nil
}
