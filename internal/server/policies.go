package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// parseID reads the {id} path value as an unsigned integer.
func parseID(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	return id, err == nil
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Coverage     uint64 `json:"coverage"`
		DurationDays uint64 `json:"duration_days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	duration := time.Duration(req.DurationDays) * 24 * time.Hour
	writeJSON(w, http.StatusOK, map[string]any{
		"coverage":       req.Coverage,
		"duration_days":  req.DurationDays,
		"premium":        s.vault.Quote(req.Coverage, duration),
		"volatility_bps": s.oracle.ValueBps(),
	})
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Holder              string `json:"holder"`
		Coverage            uint64 `json:"coverage"`
		DurationDays        uint64 `json:"duration_days"`
		TriggerThresholdBps uint64 `json:"trigger_threshold_bps"`
		AgentID             uint64 `json:"agent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Holder == "" {
		writeError(w, http.StatusBadRequest, "holder is required")
		return
	}

	duration := time.Duration(req.DurationDays) * 24 * time.Hour
	policy, err := s.vault.Purchase(req.Holder, req.Coverage, duration, req.TriggerThresholdBps, req.AgentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, policy)
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid policy id")
		return
	}
	policy, found := s.vault.GetPolicy(id)
	if !found {
		writeError(w, http.StatusNotFound, "policy not found")
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

// handleExpirePolicy marks a lapsed policy expired and releases its coverage.
// Callable by anyone; the background sweeper is a convenience, not a
// gatekeeper.
func (s *Server) handleExpirePolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid policy id")
		return
	}
	if err := s.vault.ExpireSweep(id); err != nil {
		writeDomainError(w, err)
		return
	}
	policy, _ := s.vault.GetPolicy(id)
	writeJSON(w, http.StatusOK, policy)
}
