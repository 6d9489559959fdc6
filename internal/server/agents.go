package server

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Wallet string `json:"wallet"`
		URI    string `json:"uri"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	id, err := s.registry.Register(req.Wallet, req.URI)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	agent, _ := s.registry.Get(id)
	writeJSON(w, http.StatusCreated, agent)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}
	agent, found := s.registry.Get(id)
	if !found {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

// handleAuthorizeAgent flips an agent's authorization flag. Admin-only.
func (s *Server) handleAuthorizeAgent(w http.ResponseWriter, r *http.Request) {
	if !s.adminAuth(w, r) {
		return
	}
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}
	var req struct {
		Authorized bool `json:"authorized"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if err := s.registry.SetAuthorized(s.owner, id, req.Authorized); err != nil {
		writeDomainError(w, err)
		return
	}
	agent, _ := s.registry.Get(id)
	writeJSON(w, http.StatusOK, agent)
}
