// Package quorum implements the validation sub-protocol: any party may
// request independent validation of a claimed fact, staked validators vote,
// and the request auto-resolves the instant a pass/fail threshold is reached
// or lapses at its deadline.
package quorum

import (
	"errors"
	"sync"
	"time"

	"github.com/umbral-systems/tailguard/internal/crypto"
	"github.com/umbral-systems/tailguard/internal/events"
)

// Method is the validation technique requested for a claimed fact.
type Method string

const (
	ReExecution    Method = "re_execution"
	ZkProof        Method = "zk_proof"
	TEEAttestation Method = "tee_attestation"
	TrustedJudge   Method = "trusted_judge"
)

// Status is the lifecycle state of a validation request.
//
//	Pending -> InProgress -> {Approved | Rejected}
//	Pending/InProgress -> Expired (deadline lapsed before threshold)
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusExpired    Status = "expired"
)

var (
	ErrInvalidMethod      = errors.New("quorum: unknown validation method")
	ErrInvalidDeadline    = errors.New("quorum: deadline must be in the future")
	ErrInvalidAmount      = errors.New("quorum: amount must be positive")
	ErrRequestNotFound    = errors.New("quorum: request not found")
	ErrAlreadyFinalized   = errors.New("quorum: request already finalized")
	ErrDeadlinePassed     = errors.New("quorum: deadline has passed")
	ErrDeadlineNotReached = errors.New("quorum: deadline not yet reached")
	ErrAlreadyVoted       = errors.New("quorum: validator already voted")
	ErrInsufficientStake  = errors.New("quorum: validator stake below required")
)

// Vote is one validator's verdict on a request. Only the SHA3 digest of the
// submitted proof is retained.
type Vote struct {
	Validator   string `json:"validator"`
	Approved    bool   `json:"approved"`
	ProofDigest string `json:"proof_digest"`
	Timestamp   int64  `json:"timestamp"`
}

// Request is one validation request. Once Status leaves Pending/InProgress
// the request is immutable.
type Request struct {
	ID            uint64 `json:"id"`
	SubjectAgent  uint64 `json:"subject_agent"`
	Method        Method `json:"method"`
	TaskData      string `json:"task_data"`
	RequiredStake uint64 `json:"required_stake"`
	Deadline      int64  `json:"deadline"`
	Threshold     int    `json:"threshold"`
	Status        Status `json:"status"`
	Votes         []Vote `json:"votes"`
	Approvals     int    `json:"approvals"`
	Rejections    int    `json:"rejections"`
	CreatedAt     int64  `json:"created_at"`
}

// Quorum tracks validator stakes and validation requests. Request IDs are
// monotonically increasing and never reused.
type Quorum struct {
	mu        sync.Mutex
	threshold int
	stakes    map[string]uint64
	requests  map[uint64]*Request
	nextID    uint64
	log       *events.Log
	now       func() time.Time
}

// New creates a Quorum resolving requests at the given vote threshold.
func New(threshold int, log *events.Log) *Quorum {
	if threshold < 1 {
		threshold = 1
	}
	return &Quorum{
		threshold: threshold,
		stakes:    make(map[string]uint64),
		requests:  make(map[uint64]*Request),
		nextID:    1,
		log:       log,
		now:       time.Now,
	}
}

// SetClock overrides the quorum's clock. Test hook.
func (q *Quorum) SetClock(now func() time.Time) {
	q.mu.Lock()
	q.now = now
	q.mu.Unlock()
}

func validMethod(m Method) bool {
	switch m {
	case ReExecution, ZkProof, TEEAttestation, TrustedJudge:
		return true
	}
	return false
}

// RequestValidation opens a new request against subjectAgent. The deadline
// must be strictly in the future. Returns the fresh request ID.
func (q *Quorum) RequestValidation(subjectAgent uint64, method Method, taskData string, requiredStake uint64, deadline time.Time) (uint64, error) {
	if !validMethod(method) {
		return 0, ErrInvalidMethod
	}

	q.mu.Lock()
	now := q.now()
	if !deadline.After(now) {
		q.mu.Unlock()
		return 0, ErrInvalidDeadline
	}

	id := q.nextID
	q.nextID++
	q.requests[id] = &Request{
		ID:            id,
		SubjectAgent:  subjectAgent,
		Method:        method,
		TaskData:      taskData,
		RequiredStake: requiredStake,
		Deadline:      deadline.Unix(),
		Threshold:     q.threshold,
		Status:        StatusPending,
		CreatedAt:     now.Unix(),
	}
	q.mu.Unlock()

	if q.log != nil {
		q.log.Emit(events.Event{
			Type:      events.ValidationRequested,
			RequestID: id,
			AgentID:   subjectAgent,
			Detail:    string(method),
		})
	}
	return id, nil
}

// RegisterStake adds amount to validator's cumulative stake.
func (q *Quorum) RegisterStake(validator string, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stakes[validator] += amount
	return nil
}

// WithdrawStake removes amount from validator's stake. Eligibility is
// checked at vote time, not here, so stake may move freely between requests.
func (q *Quorum) WithdrawStake(validator string, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stakes[validator] < amount {
		return ErrInsufficientStake
	}
	q.stakes[validator] -= amount
	return nil
}

// StakeOf returns validator's current cumulative stake.
func (q *Quorum) StakeOf(validator string) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stakes[validator]
}

// SubmitVote records validator's verdict on request id. It fails if the
// request is finalized, past its deadline, the validator already voted, or
// the validator's stake is below the request's requirement. The request
// finalizes the instant either tally reaches the threshold.
func (q *Quorum) SubmitVote(id uint64, validator string, approved bool, proof []byte) error {
	q.mu.Lock()
	req, ok := q.requests[id]
	if !ok {
		q.mu.Unlock()
		return ErrRequestNotFound
	}
	if req.Status != StatusPending && req.Status != StatusInProgress {
		q.mu.Unlock()
		return ErrAlreadyFinalized
	}
	now := q.now()
	if now.Unix() > req.Deadline {
		q.mu.Unlock()
		return ErrDeadlinePassed
	}
	for _, v := range req.Votes {
		if v.Validator == validator {
			q.mu.Unlock()
			return ErrAlreadyVoted
		}
	}
	if q.stakes[validator] < req.RequiredStake {
		q.mu.Unlock()
		return ErrInsufficientStake
	}

	req.Votes = append(req.Votes, Vote{
		Validator:   validator,
		Approved:    approved,
		ProofDigest: crypto.Digest(proof),
		Timestamp:   now.Unix(),
	})
	if approved {
		req.Approvals++
	} else {
		req.Rejections++
	}
	req.Status = StatusInProgress

	// Optimistic early termination: resolve the moment either side reaches
	// the threshold instead of waiting out the deadline.
	var resolved Status
	if req.Approvals >= req.Threshold {
		req.Status = StatusApproved
		resolved = StatusApproved
	} else if req.Rejections >= req.Threshold {
		req.Status = StatusRejected
		resolved = StatusRejected
	}
	subject := req.SubjectAgent
	q.mu.Unlock()

	if resolved != "" && q.log != nil {
		q.log.Emit(events.Event{
			Type:      events.ValidationResolved,
			RequestID: id,
			AgentID:   subject,
			Actor:     validator,
			Detail:    string(resolved),
		})
	}
	return nil
}

// FinalizeExpired resolves a request whose deadline has lapsed without the
// threshold being reached. Anyone may call. The result is Expired, never
// Rejected: a tie or an under-voted request timed out, it was not voted
// down, and the caller may resubmit the underlying claim.
func (q *Quorum) FinalizeExpired(id uint64) error {
	q.mu.Lock()
	req, ok := q.requests[id]
	if !ok {
		q.mu.Unlock()
		return ErrRequestNotFound
	}
	if req.Status != StatusPending && req.Status != StatusInProgress {
		q.mu.Unlock()
		return ErrAlreadyFinalized
	}
	if q.now().Unix() <= req.Deadline {
		q.mu.Unlock()
		return ErrDeadlineNotReached
	}
	req.Status = StatusExpired
	subject := req.SubjectAgent
	q.mu.Unlock()

	if q.log != nil {
		q.log.Emit(events.Event{
			Type:      events.ValidationResolved,
			RequestID: id,
			AgentID:   subject,
			Detail:    string(StatusExpired),
		})
	}
	return nil
}

// Get returns a copy of request id.
func (q *Quorum) Get(id uint64) (Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	req, ok := q.requests[id]
	if !ok {
		return Request{}, false
	}
	out := *req
	out.Votes = append([]Vote(nil), req.Votes...)
	return out, true
}

// StatusOf returns the status of request id.
func (q *Quorum) StatusOf(id uint64) (Status, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	req, ok := q.requests[id]
	if !ok {
		return "", ErrRequestNotFound
	}
	return req.Status, nil
}

// Unresolved returns the IDs of requests still in Pending or InProgress.
// The expiry worker walks this list to finalize lapsed requests.
func (q *Quorum) Unresolved() []uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	var ids []uint64
	for id, req := range q.requests {
		if req.Status == StatusPending || req.Status == StatusInProgress {
			ids = append(ids, id)
		}
	}
	return ids
}

// Seed installs persisted requests and stakes without emitting events, and
// advances the ID sequence past the highest restored request. Used when
// restoring state at boot.
func (q *Quorum) Seed(reqs []Request, stakes map[string]uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range reqs {
		req := reqs[i]
		q.requests[req.ID] = &req
		if req.ID >= q.nextID {
			q.nextID = req.ID + 1
		}
	}
	for v, s := range stakes {
		q.stakes[v] = s
	}
}

// Export returns copies of every request and the stake table, for persistence.
func (q *Quorum) Export() ([]Request, map[string]uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	reqs := make([]Request, 0, len(q.requests))
	for _, req := range q.requests {
		r := *req
		r.Votes = append([]Vote(nil), req.Votes...)
		reqs = append(reqs, r)
	}
	stakes := make(map[string]uint64, len(q.stakes))
	for v, s := range q.stakes {
		stakes[v] = s
	}
	return reqs, stakes
}
