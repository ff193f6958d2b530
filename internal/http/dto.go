package http

import (
	"time"

	"entrate/internal/core"
	"entrate/internal/services"
)

// SourceRequest is the body of source create and update calls. Amount is
// in currency units and rounded to cents.
type SourceRequest struct {
	Name               string          `json:"name"`
	Category           string          `json:"category"`
	Description        string          `json:"description"`
	Frequency          string          `json:"frequency"`
	ScheduleDays       []int           `json:"scheduleDays"`
	ScheduleWeekday    *int            `json:"scheduleWeekday"`
	ScheduleWeek       string          `json:"scheduleWeek"`
	ScheduleTime       string          `json:"scheduleTime"`
	Amount             float64         `json:"amount"`
	UseManualAmounts   bool            `json:"useManualAmounts"`
	ScheduleDayAmounts core.DayAmounts `json:"scheduleDayAmounts"`
	IsActive           *bool           `json:"isActive"`
}

func (req SourceRequest) toSource(id int64) core.IncomeSource {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return core.IncomeSource{
		ID:                 id,
		Name:               req.Name,
		Category:           core.IncomeCategory(req.Category),
		Description:        req.Description,
		Frequency:          core.Frequency(req.Frequency),
		ScheduleDays:       req.ScheduleDays,
		ScheduleWeekday:    req.ScheduleWeekday,
		ScheduleWeek:       core.WeekOfMonth(req.ScheduleWeek),
		ScheduleTime:       req.ScheduleTime,
		Amount:             core.MoneyFromAmount(req.Amount),
		UseManualAmounts:   req.UseManualAmounts,
		ScheduleDayAmounts: req.ScheduleDayAmounts,
		IsActive:           active,
	}
}

type SourceDTO struct {
	ID                 int64           `json:"id"`
	Name               string          `json:"name"`
	Category           string          `json:"category"`
	Description        string          `json:"description,omitempty"`
	Frequency          string          `json:"frequency"`
	ScheduleDays       []int           `json:"scheduleDays,omitempty"`
	ScheduleWeekday    *int            `json:"scheduleWeekday,omitempty"`
	ScheduleWeek       string          `json:"scheduleWeek,omitempty"`
	ScheduleTime       string          `json:"scheduleTime,omitempty"`
	Amount             float64         `json:"amount"`
	AmountCents        int64           `json:"amountCents"`
	UseManualAmounts   bool            `json:"useManualAmounts"`
	ScheduleDayAmounts core.DayAmounts `json:"scheduleDayAmounts,omitempty"`
	IsActive           bool            `json:"isActive"`
	NextPaymentDate    *time.Time      `json:"nextPaymentDate,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

func toSourceDTO(s core.IncomeSource) SourceDTO {
	return SourceDTO{
		ID:                 s.ID,
		Name:               s.Name,
		Category:           string(s.Category),
		Description:        s.Description,
		Frequency:          string(s.Frequency),
		ScheduleDays:       s.ScheduleDays,
		ScheduleWeekday:    s.ScheduleWeekday,
		ScheduleWeek:       string(s.ScheduleWeek),
		ScheduleTime:       s.ScheduleTime,
		Amount:             s.Amount.Euros(),
		AmountCents:        s.Amount.Cents,
		UseManualAmounts:   s.UseManualAmounts,
		ScheduleDayAmounts: s.ScheduleDayAmounts,
		IsActive:           s.IsActive,
		NextPaymentDate:    s.NextPaymentDate,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

func toSourceDTOs(in []core.IncomeSource) []SourceDTO {
	out := make([]SourceDTO, 0, len(in))
	for _, s := range in {
		out = append(out, toSourceDTO(s))
	}
	return out
}

// RecordRequest is the body of record create and update calls. Dates are
// YYYY-MM-DD or RFC 3339; sourceId is ignored on update.
type RecordRequest struct {
	SourceID       int64   `json:"sourceId"`
	ExpectedDate   string  `json:"expectedDate"`
	ExpectedAmount float64 `json:"expectedAmount"`
	ActualAmount   float64 `json:"actualAmount"`
	ActualDate     string  `json:"actualDate"`
	Status         string  `json:"status"`
	Notes          string  `json:"notes"`
}

func (req RecordRequest) toRecord(id int64, loc *time.Location) (core.IncomeRecord, error) {
	rec := core.IncomeRecord{
		ID:             id,
		SourceID:       req.SourceID,
		ExpectedAmount: core.MoneyFromAmount(req.ExpectedAmount),
		ActualAmount:   core.MoneyFromAmount(req.ActualAmount),
		Status:         core.RecordStatus(req.Status),
		Notes:          req.Notes,
	}
	if req.ExpectedDate != "" {
		t, err := parseDate(req.ExpectedDate, loc)
		if err != nil {
			return rec, err
		}
		rec.ExpectedDate = t
	}
	if req.ActualDate != "" {
		t, err := parseDate(req.ActualDate, loc)
		if err != nil {
			return rec, err
		}
		rec.ActualDate = &t
	}
	return rec, nil
}

type RecordDTO struct {
	ID             int64      `json:"id"`
	SourceID       int64      `json:"sourceId"`
	ExpectedDate   time.Time  `json:"expectedDate"`
	ExpectedAmount float64    `json:"expectedAmount"`
	ActualAmount   float64    `json:"actualAmount"`
	ActualDate     *time.Time `json:"actualDate,omitempty"`
	Status         string     `json:"status"`
	Notes          string     `json:"notes,omitempty"`
	AutoGenerated  bool       `json:"autoGenerated"`
	SyncedAt       *time.Time `json:"syncedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func toRecordDTO(r core.IncomeRecord) RecordDTO {
	return RecordDTO{
		ID:             r.ID,
		SourceID:       r.SourceID,
		ExpectedDate:   r.ExpectedDate,
		ExpectedAmount: r.ExpectedAmount.Euros(),
		ActualAmount:   r.ActualAmount.Euros(),
		ActualDate:     r.ActualDate,
		Status:         string(r.Status),
		Notes:          r.Notes,
		AutoGenerated:  r.AutoGenerated,
		SyncedAt:       r.SyncedAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func toRecordDTOs(in []core.IncomeRecord) []RecordDTO {
	out := make([]RecordDTO, 0, len(in))
	for _, r := range in {
		out = append(out, toRecordDTO(r))
	}
	return out
}

type SchedulePreviewDTO struct {
	Source   SourceDTO         `json:"source"`
	From     time.Time         `json:"from"`
	Days     int               `json:"days"`
	Next     *time.Time        `json:"next"`
	Upcoming []core.Occurrence `json:"upcoming"`
	Recent   []core.Occurrence `json:"recent"`
}

type TotalsDTO struct {
	Expected    float64 `json:"expected"`
	Received    float64 `json:"received"`
	Pending     float64 `json:"pending"`
	Overdue     float64 `json:"overdue"`
	ReceiptRate float64 `json:"receiptRate"`
}

func toTotalsDTO(t core.Totals) TotalsDTO {
	return TotalsDTO{
		Expected:    t.Expected.Euros(),
		Received:    t.Received.Euros(),
		Pending:     t.Pending.Euros(),
		Overdue:     t.Overdue.Euros(),
		ReceiptRate: t.ReceiptRate(),
	}
}

type SourceBreakdownDTO struct {
	SourceID  int64     `json:"sourceId"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Frequency string    `json:"frequency"`
	Totals    TotalsDTO `json:"totals"`
	Records   int       `json:"records"`
	Estimated bool      `json:"estimated"`
}

type MonthProjectionDTO struct {
	Month    int     `json:"month"`
	Expected float64 `json:"expected"`
	Actual   float64 `json:"actual"`
}

type ReceivedPaymentDTO struct {
	RecordID   int64     `json:"recordId"`
	SourceID   int64     `json:"sourceId"`
	SourceName string    `json:"sourceName"`
	Amount     float64   `json:"amount"`
	Date       time.Time `json:"date"`
}

type UpcomingPaymentDTO struct {
	RecordID   int64     `json:"recordId,omitempty"`
	SourceID   int64     `json:"sourceId"`
	SourceName string    `json:"sourceName"`
	Category   string    `json:"category"`
	Date       time.Time `json:"date"`
	Amount     float64   `json:"amount"`
	Status     string    `json:"status"`
	Calculated bool      `json:"calculated"`
}

type CalculationDTO struct {
	Period      string               `json:"period"`
	Year        int                  `json:"year"`
	Month       int                  `json:"month,omitempty"`
	Start       time.Time            `json:"start"`
	End         time.Time            `json:"end"`
	Totals      TotalsDTO            `json:"totals"`
	Sources     []SourceBreakdownDTO `json:"sources"`
	Projections []MonthProjectionDTO `json:"projections,omitempty"`
	Recent      []ReceivedPaymentDTO `json:"recentPayments"`
	Upcoming    []UpcomingPaymentDTO `json:"upcomingPayments"`
}

func toCalculationDTO(c *core.IncomeCalculation) CalculationDTO {
	dto := CalculationDTO{
		Period:   string(c.Period),
		Year:     c.Year,
		Month:    c.Month,
		Start:    c.Start,
		End:      c.End,
		Totals:   toTotalsDTO(c.Totals),
		Sources:  make([]SourceBreakdownDTO, 0, len(c.Sources)),
		Recent:   make([]ReceivedPaymentDTO, 0, len(c.Recent)),
		Upcoming: make([]UpcomingPaymentDTO, 0, len(c.Upcoming)),
	}
	for _, b := range c.Sources {
		dto.Sources = append(dto.Sources, SourceBreakdownDTO{
			SourceID:  b.SourceID,
			Name:      b.Name,
			Category:  string(b.Category),
			Frequency: string(b.Frequency),
			Totals:    toTotalsDTO(b.Totals),
			Records:   b.Records,
			Estimated: b.Estimated,
		})
	}
	for _, p := range c.Projections {
		dto.Projections = append(dto.Projections, MonthProjectionDTO{
			Month:    p.Month,
			Expected: p.Expected.Euros(),
			Actual:   p.Actual.Euros(),
		})
	}
	for _, p := range c.Recent {
		dto.Recent = append(dto.Recent, ReceivedPaymentDTO{
			RecordID:   p.RecordID,
			SourceID:   p.SourceID,
			SourceName: p.SourceName,
			Amount:     p.Amount.Euros(),
			Date:       p.Date,
		})
	}
	for _, p := range c.Upcoming {
		dto.Upcoming = append(dto.Upcoming, UpcomingPaymentDTO{
			RecordID:   p.RecordID,
			SourceID:   p.SourceID,
			SourceName: p.SourceName,
			Category:   string(p.Category),
			Date:       p.Date,
			Amount:     p.Amount.Euros(),
			Status:     string(p.Status),
			Calculated: p.Calculated,
		})
	}
	return dto
}

type GenerateResultDTO struct {
	Sources      int      `json:"sources"`
	Created      int      `json:"created"`
	StaleDeleted int64    `json:"staleDeleted"`
	NextUpdated  int      `json:"nextUpdated"`
	Errors       []string `json:"errors"`
}

func toGenerateResultDTO(r services.RunResult) GenerateResultDTO {
	dto := GenerateResultDTO{
		Sources:      r.Sources,
		Created:      r.Created,
		StaleDeleted: r.StaleDeleted,
		NextUpdated:  r.NextUpdated,
		Errors:       make([]string, 0, len(r.Errors)),
	}
	for _, err := range r.Errors {
		dto.Errors = append(dto.Errors, err.Error())
	}
	return dto
}
