package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize canonicalizes raw content before hashing or embedding: lowercase,
// collapse runs of whitespace to a single space, trim. Total and deterministic.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Hash returns the hex sha256 digest of already-normalized text. The exact
// tier, the similarity tier and the stampede guard all key off this value, so
// it must stay stable across process restarts.
func Hash(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// Of is Hash(Normalize(text)).
func Of(text string) string {
	return Hash(Normalize(text))
}
