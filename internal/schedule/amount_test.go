package schedule

import (
	"math"
	"testing"
	"time"

	"entrate/internal/core"
)

func TestPerOccurrenceAmount(t *testing.T) {
	manual := core.ScheduleConfig{
		Frequency:          core.Monthly,
		ScheduleDays:       []int{5, 20},
		Amount:             1000,
		UseManualAmounts:   true,
		ScheduleDayAmounts: core.DayAmountsOf(map[int]float64{5: 200, 20: 800}),
	}

	tests := []struct {
		name string
		cfg  core.ScheduleConfig
		day  int
		want float64
	}{
		{"zero amount", core.ScheduleConfig{Frequency: core.Weekly, Amount: 0}, 0, 0},
		{"negative amount", core.ScheduleConfig{Frequency: core.Weekly, Amount: -5}, 0, 0},
		{"nan amount", core.ScheduleConfig{Frequency: core.Weekly, Amount: math.NaN()}, 0, 0},
		{"infinite amount", core.ScheduleConfig{Frequency: core.Weekly, Amount: math.Inf(1)}, 0, 0},
		{"weekly full amount", core.ScheduleConfig{Frequency: core.Weekly, Amount: 300}, 0, 300},
		{"monthly single day", core.ScheduleConfig{Frequency: core.Monthly, ScheduleDays: []int{27}, Amount: 2500}, 27, 2500},
		{"monthly split", core.ScheduleConfig{Frequency: core.Monthly, ScheduleDays: []int{1, 15}, Amount: 1000}, 0, 500},
		{"quarterly never splits", core.ScheduleConfig{Frequency: core.Quarterly, ScheduleDays: []int{1, 15}, Amount: 1000}, 0, 1000},
		{"manual day entry", manual, 5, 200},
		{"manual other entry", manual, 20, 800},
		{"manual day without entry splits", manual, 7, 500},
		{"manual without day splits", manual, 0, 500},
		{
			"manual non-finite entry",
			core.ScheduleConfig{
				Frequency:          core.Monthly,
				ScheduleDays:       []int{5},
				Amount:             100,
				UseManualAmounts:   true,
				ScheduleDayAmounts: core.DayAmounts{"5": math.NaN()},
			},
			5, 0,
		},
		{
			"manual ignored when disabled",
			core.ScheduleConfig{
				Frequency:          core.Monthly,
				ScheduleDays:       []int{5, 20},
				Amount:             1000,
				ScheduleDayAmounts: core.DayAmountsOf(map[int]float64{5: 200}),
			},
			5, 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PerOccurrenceAmount(tt.cfg, tt.day); got != tt.want {
				t.Errorf("PerOccurrenceAmount() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAmountOn(t *testing.T) {
	cfg := core.ScheduleConfig{
		Frequency:          core.Monthly,
		ScheduleDays:       []int{10, 31},
		Amount:             1500,
		UseManualAmounts:   true,
		ScheduleDayAmounts: core.DayAmountsOf(map[int]float64{10: 1000, 31: 500}),
	}

	tests := []struct {
		name string
		at   time.Time
		want float64
	}{
		{"manual day", time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC), 1000},
		{"short month uses last-day entry", time.Date(2024, time.February, 29, 9, 0, 0, 0, time.UTC), 500},
		{"day without entry", time.Date(2024, time.March, 11, 9, 0, 0, 0, time.UTC), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AmountOn(cfg, tt.at); got != tt.want {
				t.Errorf("AmountOn() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvenSplitCoversOneCycle(t *testing.T) {
	const amount = 1000.0
	for _, days := range [][]int{{1, 15}, {5, 10, 20}, {1, 8, 15, 22}, {3, 6, 9, 12, 18, 27}} {
		cfg := core.ScheduleConfig{Frequency: core.Monthly, ScheduleDays: days, Amount: amount}

		got := collect(cfg, at(2024, 12, 31, 12, 0), 31)
		if len(got) != len(days) {
			t.Fatalf("days %v: got %d occurrences in January, want %d", days, len(got), len(days))
		}

		sum := 0.0
		for _, occ := range got {
			if occ.Amount != amount/float64(len(days)) {
				t.Errorf("days %v: amount on %v = %v, want %v", days, occ.Date, occ.Amount, amount/float64(len(days)))
			}
			sum += occ.Amount
		}
		if math.Abs(sum-amount) > 1e-9 {
			t.Errorf("days %v: cycle total = %v, want %v", days, sum, amount)
		}
	}
}
