package http

import (
	"fmt"
	"net/http"
	"strings"

	"entrate/internal/core"
	"entrate/internal/log"
	"entrate/internal/metrics"
	"entrate/internal/services"
)

// GET /api/income/calculations?period=monthly&year=2024&month=3
// Year and month default to the current ones.
func (s *Server) handleCalculation(w http.ResponseWriter, r *http.Request) {
	now := s.now().In(s.loc)

	period := core.Period(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("period"))))
	if period == "" {
		period = core.PeriodMonthly
	}
	year, err := queryInt(r, "year", now.Year())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year", err)
		return
	}
	month, err := queryInt(r, "month", int(now.Month()))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid month", err)
		return
	}

	req := services.CalculationRequest{Period: period, Year: year, Month: month}
	if period == core.PeriodYearly {
		req.Month = 0
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid calculation request", err)
		return
	}

	key := calculationKey(req)
	if calc, ok := s.calcCache.Get(key); ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		writeJSON(w, http.StatusOK, toCalculationDTO(calc))
		return
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	calc, err := s.summary.Calculate(r.Context(), req, now)
	if err != nil {
		writeServiceError(w, r, "failed to calculate income summary", err)
		return
	}
	s.calcCache.Set(key, calc)
	writeJSON(w, http.StatusOK, toCalculationDTO(calc))
}

// POST /api/income/generate
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	result, err := s.generator.Run(r.Context(), s.now())
	s.invalidateCalculations()
	if err != nil {
		writeServiceError(w, r, "failed to generate income records", err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Materialization triggered via API",
		log.FieldOperation, log.OpGenerate,
		log.FieldCount, result.Created)
	writeJSON(w, http.StatusOK, toGenerateResultDTO(result))
}

func calculationKey(req services.CalculationRequest) string {
	return fmt.Sprintf("%s:%04d-%02d", req.Period, req.Year, req.Month)
}

func (s *Server) invalidateCalculations() {
	n := s.calcCache.Size()
	s.calcCache.Clear()
	if n > 0 {
		s.logger.WithComponent(log.ComponentCache).Debug("Calculation cache cleared", log.FieldCount, n)
	}
}
