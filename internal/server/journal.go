package server

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

const defaultEventLimit = 100

// handleListEvents returns the most recent journal entries, newest first.
// Requires a durable journal; without one the endpoint 404s.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusNotFound, "event journal not enabled")
		return
	}
	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := s.db.ListEvents(limit)
	if err != nil {
		s.logger.Error("list events", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "journal read failed")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handlePolicyEvents returns one policy's lifecycle from the journal, oldest
// first.
func (s *Server) handlePolicyEvents(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusNotFound, "event journal not enabled")
		return
	}
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid policy id")
		return
	}

	entries, err := s.db.EventsForPolicy(id)
	if err != nil {
		s.logger.Error("policy events", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "journal read failed")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
