// Package hashing provides deterministic content fingerprints.
// The hash of a document's full text is its logical identity: two documents
// with identical content and different paths are the same logical entity.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashContent returns the hex-encoded SHA-256 of the given text.
func HashContent(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// HashKey returns a fingerprint of text plus a context string. Used as the
// embedding cache key so the same text embedded under different contexts
// (e.g. different models) does not collide.
func HashKey(text, context string) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write([]byte(context))
	return hex.EncodeToString(h.Sum(nil))
}
