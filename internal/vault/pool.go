package vault

import (
	"github.com/umbral-systems/tailguard/internal/events"
)

// sharePrice is the derived price scaled by SharePriceScale, 1.0 by
// convention when the pool is empty so the first depositor is never diluted.
// Callers hold v.mu.
func (v *Vault) sharePrice() uint64 {
	if v.totalShares == 0 {
		return SharePriceScale
	}
	return mulDiv(v.totalAssets, SharePriceScale, v.totalShares)
}

// SharePrice returns the current share price scaled by SharePriceScale.
func (v *Vault) SharePrice() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sharePrice()
}

// Deposit mints shares for depositor against amount. A deposit into a pool
// with zero assets mints 1:1, whether the pool is fresh or was drained to
// zero by claim payouts with shares still outstanding; afterwards shares =
// amount * totalShares / totalAssets, floored so rounding favors the pool.
func (v *Vault) Deposit(depositor string, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, ErrInvalidAmount
	}

	shares := v.mint(depositor, amount)

	if v.log != nil {
		v.log.Emit(events.Event{
			Type:   events.Deposited,
			Actor:  depositor,
			Amount: amount,
		})
	}
	return shares, nil
}

// mint credits depositor with shares for amount. Zero pool assets price the
// mint at 1:1; any shares stranded by a drain keep their claim on the new
// capital rather than dividing by zero.
func (v *Vault) mint(depositor string, amount uint64) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	var shares uint64
	if v.totalAssets == 0 {
		shares = amount
	} else {
		shares = mulDiv(amount, v.totalShares, v.totalAssets)
	}

	pos, ok := v.positions[depositor]
	if !ok {
		pos = &Position{Owner: depositor}
		v.positions[depositor] = pos
	}
	pos.Shares += shares
	pos.DepositedAt = v.now().Unix()

	v.totalAssets += amount
	v.totalShares += shares
	return shares
}

// Withdraw burns shares and releases the corresponding assets, bounded by
// available capital: the reserve and admitted coverage are reserved first,
// so LPs cannot starve active policies of claim-paying capacity. The payout
// transfer happens only after all ledgers are updated.
func (v *Vault) Withdraw(owner string, shares uint64) (uint64, error) {
	if shares == 0 {
		return 0, ErrInvalidAmount
	}

	v.mu.Lock()
	pos, ok := v.positions[owner]
	if !ok || pos.Shares < shares {
		v.mu.Unlock()
		return 0, ErrInsufficientShares
	}

	amount := mulDiv(shares, v.totalAssets, v.totalShares)
	if amount > v.availableCapital() {
		v.mu.Unlock()
		return 0, ErrInsufficientLiquidity
	}

	pos.Shares -= shares
	v.totalShares -= shares
	v.totalAssets -= amount
	v.mu.Unlock()

	v.payout.Transfer(owner, amount)

	if v.log != nil {
		v.log.Emit(events.Event{
			Type:   events.Withdrawn,
			Actor:  owner,
			Amount: amount,
		})
	}
	return amount, nil
}

// PositionOf returns owner's LP position. A zero-share position and a
// missing one are equivalent.
func (v *Vault) PositionOf(owner string) Position {
	v.mu.Lock()
	defer v.mu.Unlock()
	pos, ok := v.positions[owner]
	if !ok {
		return Position{Owner: owner}
	}
	return *pos
}

// admitExposure reserves coverage against the exposure budget. Callers hold
// v.mu.
func (v *Vault) admitExposure(coverage uint64) error {
	limit := mulDiv(v.totalAssets, v.cfg.MaxExposureRatioBps, bpsDenom)
	if v.totalCoverage+coverage > limit {
		return ErrInsufficientCapacity
	}
	v.totalCoverage += coverage
	return nil
}

// releaseExposure returns coverage to the exposure budget. Callers hold
// v.mu.
func (v *Vault) releaseExposure(coverage uint64) {
	if coverage > v.totalCoverage {
		v.totalCoverage = 0
		return
	}
	v.totalCoverage -= coverage
}

// debit removes amount from pool assets for a claim payout, bounded by
// assets net of reserve. Callers hold v.mu.
func (v *Vault) debit(amount uint64) error {
	res := v.reserve()
	if v.totalAssets < res || amount > v.totalAssets-res {
		return ErrInsufficientCapacity
	}
	v.totalAssets -= amount
	v.claimsPaid += amount
	return nil
}
