// Package crypto provides the small cryptographic surface of the node:
// argon2id hashing for the admin secret and SHA3-256 digests for claim
// evidence and validator proofs.
package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/hex"

	"golang.org/x/crypto/argon2"
)

const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // 64 MB
	argonThreads = 4
	keyLen       = 32 // 256 bits
	saltLen      = 32
)

func deriveKey(secret string, salt []byte) []byte {
	return argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, keyLen)
}

func generateSalt() []byte {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return salt
}

// HashSecret returns hex(salt || argon2id(secret, salt)), suitable for
// storing in a config file instead of the plaintext admin secret.
func HashSecret(secret string) string {
	salt := generateSalt()
	hash := deriveKey(secret, salt)
	out := make([]byte, saltLen+keyLen)
	copy(out[:saltLen], salt)
	copy(out[saltLen:], hash)
	return hex.EncodeToString(out)
}

// VerifySecret reports whether secret matches a stored HashSecret value.
// Comparison is constant-time.
func VerifySecret(secret, storedHex string) bool {
	stored, err := hex.DecodeString(storedHex)
	if err != nil || len(stored) < saltLen+keyLen {
		return false
	}
	salt := stored[:saltLen]
	hash := stored[saltLen:]
	computed := deriveKey(secret, salt)
	return hmac.Equal(hash, computed)
}
