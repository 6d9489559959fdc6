package vault

import "errors"

// Errors are grouped by the caller's expected reaction: validation and
// authorization failures are caller bugs, capacity failures may be retried
// after conditions change, temporal failures are terminal for that policy or
// request, and ErrClaimNotValidated means poll again after quorum resolves.
var (
	// Validation.
	ErrInvalidAmount   = errors.New("vault: amount must be positive")
	ErrInvalidDuration = errors.New("vault: duration out of range")
	ErrInvalidTrigger  = errors.New("vault: trigger threshold out of range")

	// Authorization.
	ErrAgentNotAuthorized     = errors.New("vault: agent not authorized")
	ErrInsufficientTrustScore = errors.New("vault: agent trust score below floor")
	ErrNotPolicyHolder        = errors.New("vault: claimant is not the policy holder")

	// Capacity.
	ErrInsufficientShares    = errors.New("vault: insufficient shares")
	ErrInsufficientLiquidity = errors.New("vault: withdrawal exceeds available capital")
	ErrInsufficientCapacity  = errors.New("vault: exposure exceeds pool capacity")
	ErrClaimLimitReached     = errors.New("vault: daily claim limit reached")
	ErrMarketSuspended       = errors.New("vault: new policies suspended during black swan")

	// Temporal.
	ErrPolicyExpired = errors.New("vault: policy past expiry")
	ErrNotExpired    = errors.New("vault: policy not yet expired")

	// Lifecycle.
	ErrPolicyNotFound    = errors.New("vault: policy not found")
	ErrPolicyNotActive   = errors.New("vault: policy not active")
	ErrClaimNotFound     = errors.New("vault: claim not found")
	ErrCoverageExceeded  = errors.New("vault: requested amount exceeds coverage")
	ErrClaimNotValidated = errors.New("vault: claim validation not resolved")
	ErrAlreadySettled    = errors.New("vault: claim already settled")
)
