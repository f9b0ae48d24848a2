package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashText returns the sha256 hex digest of a text payload. Used as the
// document content hash and as the embedding cache key component.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
