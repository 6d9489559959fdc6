package crypto

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Digest returns hex(SHA3-256(data)). The core stores digests of claim
// evidence and validator proofs in the journal rather than the raw bytes,
// so the journal stays small while remaining verifiable against the
// original material.
func Digest(data []byte) string {
	h := sha3.Sum256(data)
	return hex.EncodeToString(h[:])
}
