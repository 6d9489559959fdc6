// Package server exposes the TailGuard core over HTTP: pool operations,
// policy and claim lifecycles, validator voting, trust administration, and
// the event feed.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/umbral-systems/tailguard/internal/crypto"
	"github.com/umbral-systems/tailguard/internal/events"
	"github.com/umbral-systems/tailguard/internal/identity"
	"github.com/umbral-systems/tailguard/internal/oracle"
	"github.com/umbral-systems/tailguard/internal/quorum"
	"github.com/umbral-systems/tailguard/internal/storage"
	"github.com/umbral-systems/tailguard/internal/trust"
	"github.com/umbral-systems/tailguard/internal/vault"
)

// Deps carries the core components the server fronts. DB may be nil, in
// which case the journal endpoints 404 and snapshots are skipped.
type Deps struct {
	Vault    *vault.Vault
	Trust    *trust.Ledger
	Quorum   *quorum.Quorum
	Oracle   *oracle.Oracle
	Registry *identity.Registry
	Events   *events.Log
	DB       *storage.DB
	Logger   *zap.Logger

	// AdminSecret authenticates X-Admin-Secret requests. Only its hash is
	// retained.
	AdminSecret string

	// Owner is passed as the caller on admin-initiated registry and trust
	// administration calls.
	Owner string

	SweepInterval    time.Duration
	SnapshotInterval time.Duration
	DecayInterval    time.Duration
}

// Server is the TailGuard HTTP API.
type Server struct {
	vault      *vault.Vault
	trust      *trust.Ledger
	quorum     *quorum.Quorum
	oracle     *oracle.Oracle
	registry   *identity.Registry
	events     *events.Log
	db         *storage.DB
	logger     *zap.Logger
	secretHash string
	owner      string

	sweepInterval    time.Duration
	snapshotInterval time.Duration
	decayInterval    time.Duration

	mux *http.ServeMux
}

// New creates a Server with all routes registered.
func New(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		vault:            d.Vault,
		trust:            d.Trust,
		quorum:           d.Quorum,
		oracle:           d.Oracle,
		registry:         d.Registry,
		events:           d.Events,
		db:               d.DB,
		logger:           logger,
		secretHash:       crypto.HashSecret(d.AdminSecret),
		owner:            d.Owner,
		sweepInterval:    d.SweepInterval,
		snapshotInterval: d.SnapshotInterval,
		decayInterval:    d.DecayInterval,
		mux:              http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// routes registers all HTTP routes on the server mux.
func (s *Server) routes() {
	// Health
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	// Capital pool
	s.mux.HandleFunc("GET /api/pool", s.handlePoolStats)
	s.mux.HandleFunc("POST /api/pool/deposit", s.handleDeposit)
	s.mux.HandleFunc("POST /api/pool/withdraw", s.handleWithdraw)
	s.mux.HandleFunc("GET /api/pool/positions/{owner}", s.handlePosition)

	// Policies
	s.mux.HandleFunc("POST /api/policies/quote", s.handleQuote)
	s.mux.HandleFunc("POST /api/policies", s.handlePurchase)
	s.mux.HandleFunc("GET /api/policies/{id}", s.handleGetPolicy)
	s.mux.HandleFunc("POST /api/policies/{id}/expire", s.handleExpirePolicy)

	// Claims
	s.mux.HandleFunc("POST /api/claims", s.handleSubmitClaim)
	s.mux.HandleFunc("GET /api/claims/{id}", s.handleGetClaim)
	s.mux.HandleFunc("POST /api/claims/{id}/settle", s.handleSettleClaim)
	s.mux.HandleFunc("GET /api/claims/budget", s.handleClaimBudget)

	// Validation quorum
	s.mux.HandleFunc("POST /api/validators/stake", s.handleRegisterStake)
	s.mux.HandleFunc("POST /api/validators/unstake", s.handleWithdrawStake)
	s.mux.HandleFunc("GET /api/validators/{validator}", s.handleValidatorStake)
	s.mux.HandleFunc("GET /api/validation/{id}", s.handleGetValidation)
	s.mux.HandleFunc("POST /api/validation/{id}/votes", s.handleVote)
	s.mux.HandleFunc("POST /api/validation/{id}/finalize", s.handleFinalizeValidation)

	// Trust ledger
	s.mux.HandleFunc("GET /api/trust/{agent}", s.handleGetTrust)
	s.mux.HandleFunc("POST /api/trust/{agent}", s.handleUpdateTrust)
	s.mux.HandleFunc("POST /api/trust/{agent}/decay", s.handleDecayTrust)
	s.mux.HandleFunc("POST /api/admin/trust/updaters", s.handleAddUpdater)
	s.mux.HandleFunc("DELETE /api/admin/trust/updaters/{address}", s.handleRemoveUpdater)

	// Volatility oracle
	s.mux.HandleFunc("GET /api/volatility", s.handleGetVolatility)
	s.mux.HandleFunc("POST /api/admin/volatility", s.handleUpdateVolatility)

	// Agent directory
	s.mux.HandleFunc("POST /api/agents", s.handleRegisterAgent)
	s.mux.HandleFunc("GET /api/agents", s.handleListAgents)
	s.mux.HandleFunc("GET /api/agents/{id}", s.handleGetAgent)
	s.mux.HandleFunc("POST /api/admin/agents/{id}/authorize", s.handleAuthorizeAgent)

	// Event journal
	s.mux.HandleFunc("GET /api/events", s.handleListEvents)
	s.mux.HandleFunc("GET /api/events/policy/{id}", s.handlePolicyEvents)
	s.mux.Handle("GET /api/events/ws", events.HandleFeed(s.events, s.logger))
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "tailguard",
	})
}

// adminAuth checks the X-Admin-Secret header against the stored hash.
// Returns false (writing a 401) if the header is missing or incorrect.
func (s *Server) adminAuth(w http.ResponseWriter, r *http.Request) bool {
	if !crypto.VerifySecret(r.Header.Get("X-Admin-Secret"), s.secretHash) {
		writeError(w, http.StatusUnauthorized, "invalid admin secret")
		return false
	}
	return true
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps a core error to its HTTP status and writes it.
func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

// statusFor maps core sentinel errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, vault.ErrPolicyNotFound),
		errors.Is(err, vault.ErrClaimNotFound),
		errors.Is(err, quorum.ErrRequestNotFound),
		errors.Is(err, trust.ErrAgentNotFound),
		errors.Is(err, identity.ErrAgentNotFound):
		return http.StatusNotFound
	case errors.Is(err, vault.ErrAgentNotAuthorized),
		errors.Is(err, vault.ErrInsufficientTrustScore),
		errors.Is(err, vault.ErrNotPolicyHolder),
		errors.Is(err, trust.ErrNotAuthorized),
		errors.Is(err, identity.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, vault.ErrAlreadySettled),
		errors.Is(err, vault.ErrInsufficientLiquidity),
		errors.Is(err, vault.ErrInsufficientCapacity),
		errors.Is(err, vault.ErrClaimNotValidated),
		errors.Is(err, vault.ErrPolicyNotActive),
		errors.Is(err, quorum.ErrAlreadyFinalized),
		errors.Is(err, quorum.ErrAlreadyVoted),
		errors.Is(err, quorum.ErrDeadlineNotReached):
		return http.StatusConflict
	case errors.Is(err, vault.ErrClaimLimitReached):
		return http.StatusTooManyRequests
	case errors.Is(err, vault.ErrMarketSuspended):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
