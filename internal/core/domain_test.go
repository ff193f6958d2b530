package core

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
)

func intPtr(v int) *int { return &v }

func validSource() IncomeSource {
	return IncomeSource{
		Name:         "Stipendio",
		Category:     CategorySalary,
		Frequency:    Monthly,
		ScheduleDays: []int{27},
		Amount:       Money{Cents: 250000},
		IsActive:     true,
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestIncomeSourceValidate(t *testing.T) {
	if err := validSource().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*IncomeSource)
		want   error
	}{
		{"blank name", func(s *IncomeSource) { s.Name = "  " }, ErrEmptyName},
		{"bad category", func(s *IncomeSource) { s.Category = "LOTTERY" }, ErrInvalidCategory},
		{"bad frequency", func(s *IncomeSource) { s.Frequency = "DAILY" }, ErrInvalidFrequency},
		{"zero amount", func(s *IncomeSource) { s.Amount = Money{} }, ErrInvalidAmount},
		{"monthly without days", func(s *IncomeSource) { s.ScheduleDays = nil }, ErrMissingDays},
		{"day out of range", func(s *IncomeSource) { s.ScheduleDays = []int{32} }, ErrInvalidDay},
		{"weekly without weekday", func(s *IncomeSource) { s.Frequency = Weekly }, ErrInvalidWeekday},
		{"weekday out of range", func(s *IncomeSource) {
			s.Frequency = Weekly
			s.ScheduleWeekday = intPtr(7)
		}, ErrInvalidWeekday},
		{"biweekly without week", func(s *IncomeSource) {
			s.Frequency = Biweekly
			s.ScheduleWeekday = intPtr(5)
		}, ErrInvalidWeek},
		{"bad time", func(s *IncomeSource) { s.ScheduleTime = "25:00" }, ErrInvalidTime},
		{"negative manual amount", func(s *IncomeSource) {
			s.UseManualAmounts = true
			s.ScheduleDayAmounts = DayAmounts{"27": -1}
		}, ErrInvalidAmount},
		{"non-finite manual amount", func(s *IncomeSource) {
			s.ScheduleDayAmounts = DayAmounts{"27": math.Inf(1)}
		}, ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := validSource()
			tc.mutate(&s)
			if err := s.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestIncomeSourceScheduleProjection(t *testing.T) {
	s := validSource()
	s.ScheduleTime = "08:30"
	cfg := s.Schedule()
	if cfg.Amount != 2500 {
		t.Fatalf("amount = %v, want 2500", cfg.Amount)
	}
	if cfg.Frequency != Monthly || cfg.ScheduleTime != "08:30" || len(cfg.ScheduleDays) != 1 {
		t.Fatalf("unexpected projection %+v", cfg)
	}
}

func TestIncomeRecordValidate(t *testing.T) {
	good := IncomeRecord{
		SourceID:       1,
		ExpectedDate:   time.Date(2025, 3, 27, 9, 0, 0, 0, time.UTC),
		ExpectedAmount: Money{Cents: 1000},
		Status:         StatusPending,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	received := good
	received.Status = StatusReceived
	if err := received.Validate(); err == nil {
		t.Fatalf("expected error for received record without actual amount")
	}
	received.ActualAmount = Money{Cents: 990}
	if err := received.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bad := good
	bad.Status = "LOST"
	if err := bad.Validate(); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("got %v, want ErrInvalidStatus", err)
	}
}

func TestParseScheduleTime(t *testing.T) {
	cases := []struct {
		in     string
		h, m   int
		wantOK bool
	}{
		{"09:00", 9, 0, true},
		{"7:05", 7, 5, true},
		{"23:59", 23, 59, true},
		{"24:00", 0, 0, false},
		{"12:60", 0, 0, false},
		{"noon", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tc := range cases {
		h, m, err := ParseScheduleTime(tc.in)
		if tc.wantOK != (err == nil) {
			t.Fatalf("%q: err = %v", tc.in, err)
		}
		if tc.wantOK && (h != tc.h || m != tc.m) {
			t.Fatalf("%q: got %d:%d", tc.in, h, m)
		}
	}
}

func TestDayAmountsJSONNormalizesKeysAndValues(t *testing.T) {
	var cfg ScheduleConfig
	raw := `{"frequency":"MONTHLY","scheduleDays":[5,20],"amount":1000,
		"useManualAmounts":true,"scheduleDayAmounts":{"05":200,"20":"800.5","31":"n/a"}}`
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v, ok := cfg.ScheduleDayAmounts.Lookup(5); !ok || v != 200 {
		t.Fatalf("day 5 = %v, %v", v, ok)
	}
	if v, ok := cfg.ScheduleDayAmounts.Lookup(20); !ok || v != 800.5 {
		t.Fatalf("day 20 = %v, %v", v, ok)
	}
	if v, ok := cfg.ScheduleDayAmounts.Lookup(31); !ok || v != 0 {
		t.Fatalf("day 31 = %v, %v", v, ok)
	}
}

func TestDayAmountsTOML(t *testing.T) {
	doc := `
frequency = "MONTHLY"
scheduleDays = [10, 31]
amount = 900.0
useManualAmounts = true

[scheduleDayAmounts]
10 = 300
31 = 600.0
`
	var cfg ScheduleConfig
	if _, err := toml.Decode(doc, &cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v, ok := cfg.ScheduleDayAmounts.Lookup(10); !ok || v != 300 {
		t.Fatalf("day 10 = %v, %v", v, ok)
	}
	if v, ok := cfg.ScheduleDayAmounts.Lookup(31); !ok || v != 600 {
		t.Fatalf("day 31 = %v, %v", v, ok)
	}
}

func TestTotalsReceiptRate(t *testing.T) {
	tot := Totals{Expected: Money{Cents: 2000}, Received: Money{Cents: 500}}
	if got := tot.ReceiptRate(); got != 25 {
		t.Fatalf("rate = %v, want 25", got)
	}
	if got := (Totals{}).ReceiptRate(); got != 0 {
		t.Fatalf("rate on empty totals = %v, want 0", got)
	}
}
