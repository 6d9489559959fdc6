package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

func (s *Server) handleRegisterStake(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Validator string `json:"validator"`
		Amount    uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Validator == "" {
		writeError(w, http.StatusBadRequest, "validator is required")
		return
	}
	if err := s.quorum.RegisterStake(req.Validator, req.Amount); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"stake": s.quorum.StakeOf(req.Validator)})
}

func (s *Server) handleWithdrawStake(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Validator string `json:"validator"`
		Amount    uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := s.quorum.WithdrawStake(req.Validator, req.Amount); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"stake": s.quorum.StakeOf(req.Validator)})
}

func (s *Server) handleValidatorStake(w http.ResponseWriter, r *http.Request) {
	validator := r.PathValue("validator")
	writeJSON(w, http.StatusOK, map[string]any{
		"validator": validator,
		"stake":     s.quorum.StakeOf(validator),
	})
}

func (s *Server) handleGetValidation(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}
	req, found := s.quorum.Get(id)
	if !found {
		writeError(w, http.StatusNotFound, "validation request not found")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}
	var req struct {
		Validator string `json:"validator"`
		Approved  bool   `json:"approved"`
		Proof     string `json:"proof"` // base64
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Validator == "" {
		writeError(w, http.StatusBadRequest, "validator is required")
		return
	}
	proof, err := base64.StdEncoding.DecodeString(req.Proof)
	if err != nil {
		writeError(w, http.StatusBadRequest, "proof must be base64")
		return
	}

	if err := s.quorum.SubmitVote(id, req.Validator, req.Approved, proof); err != nil {
		writeDomainError(w, err)
		return
	}
	updated, _ := s.quorum.Get(id)
	writeJSON(w, http.StatusOK, updated)
}

// handleFinalizeValidation expires a request whose deadline lapsed before the
// quorum resolved.
func (s *Server) handleFinalizeValidation(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}
	if err := s.quorum.FinalizeExpired(id); err != nil {
		writeDomainError(w, err)
		return
	}
	updated, _ := s.quorum.Get(id)
	writeJSON(w, http.StatusOK, updated)
}
