package core

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	Weekly    Frequency = "WEEKLY"
	Biweekly  Frequency = "BIWEEKLY"
	Monthly   Frequency = "MONTHLY"
	Quarterly Frequency = "QUARTERLY"
	Yearly    Frequency = "YEARLY"
	OneTime   Frequency = "ONE_TIME"
)

const (
	FirstWeek  WeekOfMonth = "FIRST"
	SecondWeek WeekOfMonth = "SECOND"
	ThirdWeek  WeekOfMonth = "THIRD"
	FourthWeek WeekOfMonth = "FOURTH"
	LastWeek   WeekOfMonth = "LAST"
)

const (
	StatusPending  RecordStatus = "PENDING"
	StatusReceived RecordStatus = "RECEIVED"
	StatusOverdue  RecordStatus = "OVERDUE"
)

const (
	CategorySalary     IncomeCategory = "SALARY"
	CategoryFreelance  IncomeCategory = "FREELANCE"
	CategoryBusiness   IncomeCategory = "BUSINESS"
	CategoryInvestment IncomeCategory = "INVESTMENT"
	CategoryRental     IncomeCategory = "RENTAL"
	CategoryPension    IncomeCategory = "PENSION"
	CategoryBenefits   IncomeCategory = "BENEFITS"
	CategoryOther      IncomeCategory = "OTHER"
)

// LastDayOfMonth is the schedule day that always resolves to the final
// calendar day of the month, whatever its length.
const LastDayOfMonth = 31

type (
	Frequency      string
	WeekOfMonth    string
	RecordStatus   string
	IncomeCategory string

	Money struct {
		Cents int64
	}

	// ScheduleConfig is the recurrence description of an income source as
	// consumed by the schedule engine. Amount is in currency units.
	ScheduleConfig struct {
		Frequency          Frequency   `json:"frequency" toml:"frequency"`
		ScheduleDays       []int       `json:"scheduleDays,omitempty" toml:"scheduleDays"`
		ScheduleWeekday    *int        `json:"scheduleWeekday,omitempty" toml:"scheduleWeekday"`
		ScheduleWeek       WeekOfMonth `json:"scheduleWeek,omitempty" toml:"scheduleWeek"`
		ScheduleTime       string      `json:"scheduleTime,omitempty" toml:"scheduleTime"`
		Amount             float64     `json:"amount" toml:"amount"`
		UseManualAmounts   bool        `json:"useManualAmounts,omitempty" toml:"useManualAmounts"`
		ScheduleDayAmounts DayAmounts  `json:"scheduleDayAmounts,omitempty" toml:"scheduleDayAmounts"`
	}

	// Occurrence is a single computed payment.
	Occurrence struct {
		Date   time.Time `json:"date"`
		Amount float64   `json:"amount"`
	}

	IncomeSource struct {
		ID                 int64
		Name               string
		Category           IncomeCategory
		Description        string
		Frequency          Frequency
		ScheduleDays       []int
		ScheduleWeekday    *int
		ScheduleWeek       WeekOfMonth
		ScheduleTime       string
		Amount             Money
		UseManualAmounts   bool
		ScheduleDayAmounts DayAmounts
		IsActive           bool
		NextPaymentDate    *time.Time
		CreatedAt          time.Time
		UpdatedAt          time.Time
	}

	IncomeRecord struct {
		ID             int64
		SourceID       int64
		ExpectedDate   time.Time
		ExpectedAmount Money
		ActualAmount   Money
		ActualDate     *time.Time
		Status         RecordStatus
		Notes          string
		AutoGenerated  bool
		SyncedAt       *time.Time
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyName        = errors.New("empty name")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidWeekday   = errors.New("invalid weekday")
	ErrInvalidWeek      = errors.New("invalid week of month")
	ErrInvalidTime      = errors.New("invalid schedule time")
	ErrInvalidStatus    = errors.New("invalid record status")
	ErrMissingDays      = errors.New("schedule days are required")
)

func (f Frequency) Valid() bool {
	switch f {
	case Weekly, Biweekly, Monthly, Quarterly, Yearly, OneTime:
		return true
	}
	return false
}

func (w WeekOfMonth) Valid() bool {
	switch w {
	case FirstWeek, SecondWeek, ThirdWeek, FourthWeek, LastWeek:
		return true
	}
	return false
}

func (s RecordStatus) Valid() bool {
	switch s {
	case StatusPending, StatusReceived, StatusOverdue:
		return true
	}
	return false
}

func (c IncomeCategory) Valid() bool {
	switch c {
	case CategorySalary, CategoryFreelance, CategoryBusiness, CategoryInvestment,
		CategoryRental, CategoryPension, CategoryBenefits, CategoryOther:
		return true
	}
	return false
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// DayKey formats t as the calendar day it falls on in its own location.
func DayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

// ParseScheduleTime parses an "HH:MM" clock time.
func ParseScheduleTime(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, ErrInvalidTime
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, ErrInvalidTime
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, ErrInvalidTime
	}
	return hour, minute, nil
}

// Schedule projects the source onto the engine's input shape.
func (s IncomeSource) Schedule() ScheduleConfig {
	return ScheduleConfig{
		Frequency:          s.Frequency,
		ScheduleDays:       s.ScheduleDays,
		ScheduleWeekday:    s.ScheduleWeekday,
		ScheduleWeek:       s.ScheduleWeek,
		ScheduleTime:       s.ScheduleTime,
		Amount:             s.Amount.Euros(),
		UseManualAmounts:   s.UseManualAmounts,
		ScheduleDayAmounts: s.ScheduleDayAmounts,
	}
}

// IsRecurring reports whether the source produces scheduled occurrences.
func (s IncomeSource) IsRecurring() bool {
	return s.Frequency != OneTime
}

func (s IncomeSource) Validate() error {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if len(s.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	if !s.Category.Valid() {
		return ErrInvalidCategory
	}
	if !s.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if err := s.Amount.Validate(); err != nil {
		return err
	}

	for _, d := range s.ScheduleDays {
		if d < 1 || d > LastDayOfMonth {
			return fmt.Errorf("%w: %d", ErrInvalidDay, d)
		}
	}

	switch s.Frequency {
	case Monthly, Quarterly, Yearly:
		if len(s.ScheduleDays) == 0 {
			return fmt.Errorf("%w for %s income", ErrMissingDays, strings.ToLower(string(s.Frequency)))
		}
	case Weekly, Biweekly:
		if s.ScheduleWeekday == nil || *s.ScheduleWeekday < 0 || *s.ScheduleWeekday > 6 {
			return ErrInvalidWeekday
		}
		if s.Frequency == Biweekly && !s.ScheduleWeek.Valid() {
			return ErrInvalidWeek
		}
	}

	if s.ScheduleTime != "" {
		if _, _, err := ParseScheduleTime(s.ScheduleTime); err != nil {
			return err
		}
	}

	for key, v := range s.ScheduleDayAmounts {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w for day %s", ErrInvalidAmount, key)
		}
	}
	return nil
}

func (r IncomeRecord) Validate() error {
	if r.SourceID <= 0 {
		return errors.New("source id is required")
	}
	if r.ExpectedDate.IsZero() {
		return errors.New("expected date is required")
	}
	if r.ExpectedAmount.Cents < 0 || r.ActualAmount.Cents < 0 {
		return ErrInvalidAmount
	}
	if !r.Status.Valid() {
		return ErrInvalidStatus
	}
	if r.Status == StatusReceived && r.ActualAmount.Cents <= 0 {
		return errors.New("received records need a positive actual amount")
	}
	if len(r.Notes) > 500 {
		return errors.New("notes too long (max 500 characters)")
	}
	return nil
}

// IsOutstanding reports whether the record still waits for money.
func (r IncomeRecord) IsOutstanding() bool {
	return r.Status == StatusPending || r.Status == StatusOverdue
}
