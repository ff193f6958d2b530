package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNewJSONLoggerCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentGenerator, Output: &buf})

	logger.WithFields(NewFields().WithSource(7, "Stipendio", "MONTHLY")).
		InfoContext(context.Background(), "Records generated", FieldCount, 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry[FieldComponent] != ComponentGenerator {
		t.Errorf("component = %v", entry[FieldComponent])
	}
	if entry[FieldSourceName] != "Stipendio" {
		t.Errorf("source_name = %v", entry[FieldSourceName])
	}
	if entry[FieldCount] != float64(3) {
		t.Errorf("count = %v", entry[FieldCount])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: ParseLevel("warn"), Output: &buf})

	logger.Info("hidden")
	logger.Failure(context.Background(), "shown", errors.New("boom"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info entry should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "error=boom") {
		t.Errorf("missing error entry: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatal("expected fallback logger")
	}
	logger := New(DefaultConfig())
	ctx := NewContext(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Fatal("expected logger from context")
	}
}

func TestWithComponentReplacesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: "json", Component: ComponentApp, Output: &buf}).
		With(FieldRequestID, "req-1").
		WithComponent(ComponentAMQP)

	logger.Info("connected")

	line := buf.String()
	if n := strings.Count(line, `"`+FieldComponent+`"`); n != 1 {
		t.Fatalf("component logged %d times: %q", n, line)
	}
	if !strings.Contains(line, `"component":"amqp"`) {
		t.Errorf("missing amqp component: %q", line)
	}
	if !strings.Contains(line, `"request_id":"req-1"`) {
		t.Errorf("attributes lost on component change: %q", line)
	}
	if logger.Component() != ComponentAMQP {
		t.Errorf("Component() = %q", logger.Component())
	}
}

func TestRecordFields(t *testing.T) {
	got := NewFields().
		WithOperation(OpSync).
		WithRecord(12, "2024-03-15", 150000).
		WithSource(3, "Stipendio", "MONTHLY").
		WithError(errors.New("quota exceeded"))

	want := map[string]any{
		FieldOperation:   OpSync,
		FieldRecordID:    int64(12),
		FieldDay:         "2024-03-15",
		FieldAmountCents: int64(150000),
		FieldSourceID:    int64(3),
		FieldFrequency:   "MONTHLY",
		FieldError:       "quota exceeded",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
	if NewFields().WithError(nil)[FieldError] != nil {
		t.Error("nil error should not set the error field")
	}

	pairs := got.ToSlice()
	if len(pairs) != 2*len(got) || pairs[0] != FieldAmountCents {
		t.Errorf("ToSlice not sorted by key: %v", pairs)
	}
}
