package vault

import "math/bits"

// mulDiv computes a*b/den with a 128-bit intermediate, flooring the result.
// Rounding therefore always favors the pool, never the counterparty. A
// quotient that would not fit in 64 bits saturates to MaxUint64; with bps
// denominators and realistic pool sizes that path is unreachable.
func mulDiv(a, b, den uint64) uint64 {
	if den == 0 {
		panic("vault: mulDiv by zero")
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= den {
		return ^uint64(0)
	}
	q, _ := bits.Div64(hi, lo, den)
	return q
}
