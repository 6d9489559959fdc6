package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

func (s *Server) handleSubmitClaim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PolicyID uint64 `json:"policy_id"`
		Claimant string `json:"claimant"`
		Amount   uint64 `json:"amount"`
		Evidence string `json:"evidence"` // base64
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Claimant == "" {
		writeError(w, http.StatusBadRequest, "claimant is required")
		return
	}
	evidence, err := base64.StdEncoding.DecodeString(req.Evidence)
	if err != nil {
		writeError(w, http.StatusBadRequest, "evidence must be base64")
		return
	}

	claim, err := s.vault.SubmitClaim(req.PolicyID, req.Claimant, req.Amount, evidence)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, claim)
}

func (s *Server) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid claim id")
		return
	}
	claim, found := s.vault.GetClaim(id)
	if !found {
		writeError(w, http.StatusNotFound, "claim not found")
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// handleSettleClaim drives an already-validated claim to its terminal state
// and pays out on approval. Callable by anyone once the quorum has resolved.
func (s *Server) handleSettleClaim(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid claim id")
		return
	}
	claim, err := s.vault.Settle(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

func (s *Server) handleClaimBudget(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{
		"remaining_today": s.vault.ClaimsRemainingToday(),
	})
}
