// Package identity is the minimal agent directory the core consumes.
// Identity issuance and off-chain authentication live outside the trust
// boundary; the core only needs a durable agent ID, its payout wallet, and
// whether the ID is currently authorized to act.
package identity

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrAgentNotFound = errors.New("identity: agent not found")
	ErrNotAuthorized = errors.New("identity: caller not authorized")
	ErrInvalidWallet = errors.New("identity: wallet address required")
)

// Agent is one registered agent identity.
type Agent struct {
	ID           uint64 `json:"id"`
	Wallet       string `json:"wallet"`
	URI          string `json:"uri"` // registration document reference
	Authorized   bool   `json:"authorized"`
	RegisteredAt int64  `json:"registered_at"`
}

// Registry issues monotonically increasing agent IDs and tracks
// authorization. Deauthorization is owner-managed.
type Registry struct {
	mu     sync.RWMutex
	owner  string
	agents map[uint64]*Agent
	nextID uint64
	now    func() time.Time
}

// NewRegistry creates a Registry administered by owner.
func NewRegistry(owner string) *Registry {
	return &Registry{
		owner:  owner,
		agents: make(map[uint64]*Agent),
		nextID: 1,
		now:    time.Now,
	}
}

// Register mints a new agent ID bound to wallet. New agents start
// authorized.
func (r *Registry) Register(wallet, uri string) (uint64, error) {
	if wallet == "" {
		return 0, ErrInvalidWallet
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.agents[id] = &Agent{
		ID:           id,
		Wallet:       wallet,
		URI:          uri,
		Authorized:   true,
		RegisteredAt: r.now().Unix(),
	}
	return id, nil
}

// SetAuthorized flips an agent's authorization. Only the owner may call.
func (r *Registry) SetAuthorized(caller string, id uint64, authorized bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		return ErrNotAuthorized
	}
	a, ok := r.agents[id]
	if !ok {
		return ErrAgentNotFound
	}
	a.Authorized = authorized
	return nil
}

// IsAuthorized reports whether id exists and is currently authorized.
func (r *Registry) IsAuthorized(id uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return ok && a.Authorized
}

// WalletOf returns the payout wallet bound to id.
func (r *Registry) WalletOf(id uint64) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return "", ErrAgentNotFound
	}
	return a.Wallet, nil
}

// Get returns a copy of agent id.
func (r *Registry) Get(id uint64) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return Agent{}, false
	}
	return *a, true
}

// List returns all registered agents.
func (r *Registry) List() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, *a)
	}
	return out
}

// Seed installs persisted agents and advances the ID sequence.
func (r *Registry) Seed(agents []Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range agents {
		a := agents[i]
		r.agents[a.ID] = &a
		if a.ID >= r.nextID {
			r.nextID = a.ID + 1
		}
	}
}
