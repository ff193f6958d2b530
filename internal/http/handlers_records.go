package http

import (
	"net/http"
	"strconv"

	"entrate/internal/core"
	"entrate/internal/storage"
)

// GET /api/income/records?sourceId=&status=&from=&to=&limit=
// from and to are inclusive calendar days.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f storage.RecordFilter

	if raw := q.Get("sourceId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "invalid sourceId", err)
			return
		}
		f.SourceID = id
	}
	f.Status = core.RecordStatus(q.Get("status"))

	if raw := q.Get("from"); raw != "" {
		t, err := parseDate(raw, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date", err)
			return
		}
		f.FromDay = core.DayKey(t)
	}
	if raw := q.Get("to"); raw != "" {
		t, err := parseDate(raw, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date", err)
			return
		}
		f.ToDay = core.DayKey(t.AddDate(0, 0, 1))
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "invalid limit", err)
		return
	}
	f.Limit = limit

	records, err := s.income.ListRecords(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, "failed to list income records", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTOs(records))
}

// POST /api/income/records
func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var req RecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	rec, err := req.toRecord(0, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	id, err := s.income.CreateRecord(r.Context(), rec)
	if err != nil {
		writeServiceError(w, r, "failed to create income record", err)
		return
	}
	s.invalidateCalculations()

	created, err := s.income.GetRecord(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "failed to load income record", err)
		return
	}
	w.Header().Set("Location", "/api/income/records/"+strconv.FormatInt(id, 10))
	writeJSON(w, http.StatusCreated, toRecordDTO(*created))
}

// GET /api/income/records/{id}
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid record id", err)
		return
	}
	rec, err := s.income.GetRecord(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "failed to load income record", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(*rec))
}

// PUT /api/income/records/{id}
func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid record id", err)
		return
	}
	var req RecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	rec, err := req.toRecord(id, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := s.income.UpdateRecord(r.Context(), rec); err != nil {
		writeServiceError(w, r, "failed to update income record", err)
		return
	}
	s.invalidateCalculations()

	updated, err := s.income.GetRecord(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "failed to load income record", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(*updated))
}

// DELETE /api/income/records/{id}
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid record id", err)
		return
	}
	if err := s.income.DeleteRecord(r.Context(), id); err != nil {
		writeServiceError(w, r, "failed to delete income record", err)
		return
	}
	s.invalidateCalculations()
	w.WriteHeader(http.StatusNoContent)
}
