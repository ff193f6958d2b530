package core

import (
	"errors"
	"time"
)

const (
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

type Period string

// Totals holds the expected/received/pending/overdue sums of a period.
type Totals struct {
	Expected Money
	Received Money
	Pending  Money
	Overdue  Money
}

// Add accumulates o into t.
func (t *Totals) Add(o Totals) {
	t.Expected = t.Expected.Add(o.Expected)
	t.Received = t.Received.Add(o.Received)
	t.Pending = t.Pending.Add(o.Pending)
	t.Overdue = t.Overdue.Add(o.Overdue)
}

// ReceiptRate is received over expected as a percentage.
func (t Totals) ReceiptRate() float64 {
	if t.Expected.Cents <= 0 {
		return 0
	}
	return float64(t.Received.Cents) / float64(t.Expected.Cents) * 100
}

// SourceBreakdown is the per-source slice of a period summary.
type SourceBreakdown struct {
	SourceID  int64
	Name      string
	Category  IncomeCategory
	Frequency Frequency
	Totals    Totals
	Records   int
	Estimated bool
}

// MonthProjection is one month of a yearly summary.
type MonthProjection struct {
	Month    int // 1-12
	Expected Money
	Actual   Money
}

// ReceivedPayment is a recent RECEIVED record with its source name.
type ReceivedPayment struct {
	RecordID   int64
	SourceID   int64
	SourceName string
	Amount     Money
	Date       time.Time
}

// UpcomingPayment is one entry of the upcoming feed: either a persisted
// record (RecordID > 0) or a live projection from the schedule.
type UpcomingPayment struct {
	RecordID   int64
	SourceID   int64
	SourceName string
	Category   IncomeCategory
	Date       time.Time
	Amount     Money
	Status     RecordStatus
	Calculated bool
}

// IncomeCalculation is the full summary of a monthly or yearly period.
type IncomeCalculation struct {
	Period      Period
	Year        int
	Month       int // 1-12, zero for yearly
	Start       time.Time
	End         time.Time
	Totals      Totals
	Sources     []SourceBreakdown
	Projections []MonthProjection
	Recent      []ReceivedPayment
	Upcoming    []UpcomingPayment
}

// ExportRow is the flattened shape of a record sent to external ledgers.
type ExportRow struct {
	RecordID       int64
	Date           time.Time
	SourceName     string
	Category       IncomeCategory
	Status         RecordStatus
	ExpectedAmount Money
	ActualAmount   Money
	Notes          string
}

func (r ExportRow) Validate() error {
	if r.RecordID <= 0 {
		return errors.New("record id is required")
	}
	if r.Date.IsZero() {
		return errors.New("expected date is required")
	}
	if r.SourceName == "" {
		return ErrEmptyName
	}
	if !r.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}
