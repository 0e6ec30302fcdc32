package cryptox

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the lowercase hex SHA-256 digest of the UTF-8 bytes of s.
func Hash(s string) string {
	return HashBytes([]byte(s))
}

// HashBytes returns the lowercase hex SHA-256 digest of b.
func HashBytes(b []byte) string {
	digest := sha256.Sum256(b)
	return hex.EncodeToString(digest[:])
}

// Checksum reports whether the digest of plain equals expected. A single
// hash round: the double-hash variant of older protocol versions must not
// come back.
func Checksum(plain, expected string) bool {
	return Hash(plain) == expected
}
