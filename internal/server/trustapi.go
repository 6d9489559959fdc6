package server

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// parseAgent reads the {agent} path value as an unsigned integer.
func parseAgent(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("agent"), 10, 64)
	return id, err == nil
}

func (s *Server) handleGetTrust(w http.ResponseWriter, r *http.Request) {
	agent, ok := parseAgent(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}
	rec, found := s.trust.Get(agent)
	if !found {
		writeError(w, http.StatusNotFound, "agent has no trust record")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleUpdateTrust records fresh component scores for an agent. The caller
// must be on the ledger's updater allow-list.
func (s *Server) handleUpdateTrust(w http.ResponseWriter, r *http.Request) {
	agent, ok := parseAgent(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}
	var req struct {
		Caller              string `json:"caller"`
		ClaimAccuracy       uint64 `json:"claim_accuracy"`
		CapitalPreservation uint64 `json:"capital_preservation"`
		Responsiveness      uint64 `json:"responsiveness"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if err := s.trust.Update(req.Caller, agent, req.ClaimAccuracy, req.CapitalPreservation, req.Responsiveness); err != nil {
		writeDomainError(w, err)
		return
	}
	rec, _ := s.trust.Get(agent)
	writeJSON(w, http.StatusOK, rec)
}

// handleDecayTrust materializes time decay for an agent's score. Public: any
// caller may trigger it.
func (s *Server) handleDecayTrust(w http.ResponseWriter, r *http.Request) {
	agent, ok := parseAgent(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}
	if err := s.trust.Decay(agent); err != nil {
		writeDomainError(w, err)
		return
	}
	rec, _ := s.trust.Get(agent)
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleAddUpdater(w http.ResponseWriter, r *http.Request) {
	if !s.adminAuth(w, r) {
		return
	}
	var req struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}
	if err := s.trust.AddUpdater(s.owner, req.Address); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"added": req.Address})
}

func (s *Server) handleRemoveUpdater(w http.ResponseWriter, r *http.Request) {
	if !s.adminAuth(w, r) {
		return
	}
	address := r.PathValue("address")
	if err := s.trust.RemoveUpdater(s.owner, address); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"removed": address})
}
