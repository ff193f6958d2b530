package http

import (
	"net/http"
	"strconv"

	"entrate/internal/log"
)

const (
	defaultPreviewDays = 30
	maxPreviewDays     = 366
)

// GET /api/income/sources?active=true
func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if raw := r.URL.Query().Get("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid active filter", err)
			return
		}
		activeOnly = v
	}

	sources, err := s.income.ListSources(r.Context(), activeOnly)
	if err != nil {
		writeServiceError(w, r, "failed to list income sources", err)
		return
	}
	writeJSON(w, http.StatusOK, toSourceDTOs(sources))
}

// POST /api/income/sources
func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	var req SourceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	id, err := s.income.CreateSource(r.Context(), req.toSource(0))
	if err != nil {
		writeServiceError(w, r, "failed to create income source", err)
		return
	}
	s.invalidateCalculations()

	src, err := s.income.GetSource(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "failed to load income source", err)
		return
	}
	w.Header().Set("Location", "/api/income/sources/"+strconv.FormatInt(id, 10))
	writeJSON(w, http.StatusCreated, toSourceDTO(*src))
}

// GET /api/income/sources/{id}
func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source id", err)
		return
	}
	src, err := s.income.GetSource(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "failed to load income source", err)
		return
	}
	writeJSON(w, http.StatusOK, toSourceDTO(*src))
}

// PUT /api/income/sources/{id}
func (s *Server) handleUpdateSource(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source id", err)
		return
	}
	var req SourceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := s.income.UpdateSource(r.Context(), req.toSource(id)); err != nil {
		writeServiceError(w, r, "failed to update income source", err)
		return
	}
	s.invalidateCalculations()

	src, err := s.income.GetSource(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "failed to load income source", err)
		return
	}
	writeJSON(w, http.StatusOK, toSourceDTO(*src))
}

// DELETE /api/income/sources/{id}
func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source id", err)
		return
	}
	if err := s.income.DeleteSource(r.Context(), id); err != nil {
		writeServiceError(w, r, "failed to delete income source", err)
		return
	}
	s.invalidateCalculations()
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/income/sources/{id}/schedule?from=YYYY-MM-DD&days=30
func (s *Server) handleSchedulePreview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source id", err)
		return
	}

	from := s.now().In(s.loc)
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = parseDate(raw, s.loc); err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date", err)
			return
		}
	}
	days, err := queryInt(r, "days", defaultPreviewDays)
	if err != nil || days < 1 || days > maxPreviewDays {
		writeError(w, http.StatusBadRequest, "days must be between 1 and 366", err)
		return
	}

	preview, err := s.income.PreviewSchedule(r.Context(), id, from, days)
	if err != nil {
		writeServiceError(w, r, "failed to preview schedule", err)
		return
	}

	log.FromContext(r.Context()).DebugContext(r.Context(), "Schedule previewed",
		log.FieldSourceID, id,
		log.FieldCount, len(preview.Upcoming))

	writeJSON(w, http.StatusOK, SchedulePreviewDTO{
		Source:   toSourceDTO(preview.Source),
		From:     from,
		Days:     days,
		Next:     preview.Next,
		Upcoming: preview.Upcoming,
		Recent:   preview.Recent,
	})
}
