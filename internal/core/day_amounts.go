package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DayAmounts maps a schedule day to its manual amount. Keys are always the
// canonical decimal form of the day ("5", never "05"), so lookups by number
// and by string agree.
type DayAmounts map[string]float64

// DayAmountsOf builds a DayAmounts from integer-keyed amounts.
func DayAmountsOf(m map[int]float64) DayAmounts {
	out := make(DayAmounts, len(m))
	for day, v := range m {
		out[strconv.Itoa(day)] = v
	}
	return out
}

// Lookup returns the amount configured for day.
func (a DayAmounts) Lookup(day int) (float64, bool) {
	v, ok := a[strconv.Itoa(day)]
	return v, ok
}

func (a *DayAmounts) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode day amounts: %w", err)
	}
	*a = normalizeDayAmounts(raw)
	return nil
}

// UnmarshalTOML lets schedule files use bare numeric keys (5 = 800.0).
func (a *DayAmounts) UnmarshalTOML(v any) error {
	raw, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("decode day amounts: expected table, got %T", v)
	}
	*a = normalizeDayAmounts(raw)
	return nil
}

func normalizeDayAmounts(raw map[string]any) DayAmounts {
	if raw == nil {
		return nil
	}
	out := make(DayAmounts, len(raw))
	for k, v := range raw {
		key := strings.TrimSpace(k)
		if day, err := strconv.Atoi(key); err == nil {
			key = strconv.Itoa(day)
		}
		out[key] = amountValue(v)
	}
	return out
}

// amountValue coerces a decoded value to a number; anything that is not
// numeric becomes 0.
func amountValue(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	}
	return 0
}
