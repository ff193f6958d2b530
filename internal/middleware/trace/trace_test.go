package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"entrate/internal/log"
)

func TestMiddlewareLogsRouteAndStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Format: "json", Output: &buf})
	m := NewMiddleware(logger, func(*http.Request) string { return "198.51.100.4" })

	r := chi.NewRouter()
	r.Use(middleware.RequestID, m.Handler)
	r.Get("/api/sources/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sources/42", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	out := buf.String()
	for _, want := range []string{`"status_code":404`, `"client_ip":"198.51.100.4"`, `"level":"WARN"`, `"request_id":"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}
}

func TestRoutePatternUnmatched(t *testing.T) {
	if got := RoutePattern(httptest.NewRequest(http.MethodGet, "/x", nil)); got != "unmatched" {
		t.Errorf("RoutePattern() = %q", got)
	}
}
