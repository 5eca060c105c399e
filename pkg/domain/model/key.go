package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// DeriveKey computes the exact-match lookup key for the given input text.
// The text is normalized (lowercased, whitespace collapsed) and hashed so
// that trivially different spellings of the same prompt share a key. The
// same text always yields the same key.
func DeriveKey(text string) string {
	normalized := NormalizeText(text)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// NormalizeText lowercases the text and collapses all runs of whitespace
// into single spaces
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
