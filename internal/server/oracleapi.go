package server

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleGetVolatility(w http.ResponseWriter, r *http.Request) {
	reading, ok := s.oracle.Current()
	if !ok {
		writeError(w, http.StatusNotFound, "no volatility reading yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"value_bps":  reading.ValueBps,
		"regime":     reading.Regime,
		"source":     reading.Source,
		"updated_at": reading.UpdatedAt,
		"stale":      s.oracle.Stale(),
		"black_swan": s.oracle.BlackSwan(),
	})
}

// handleUpdateVolatility pushes a fresh VIX-proxy reading. Admin-only: the
// oracle feed is the pricing input and must not be open to the public.
func (s *Server) handleUpdateVolatility(w http.ResponseWriter, r *http.Request) {
	if !s.adminAuth(w, r) {
		return
	}
	var req struct {
		ValueBps uint64 `json:"value_bps"`
		Source   string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if err := s.oracle.Update(s.owner, req.ValueBps, req.Source); err != nil {
		writeDomainError(w, err)
		return
	}
	reading, _ := s.oracle.Current()
	writeJSON(w, http.StatusOK, reading)
}
