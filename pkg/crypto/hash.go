// Copyright 2025 Covenant Protocol
//
// SHA-256 hashing over bytes, strings, and canonicalized objects

package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex computes the SHA-256 hash of data as a lowercase hex string
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SHA256String computes the SHA-256 hash of a UTF-8 string as lowercase hex
func SHA256String(data string) string {
	return SHA256Hex([]byte(data))
}

// SHA256Object canonicalizes the value to JSON and hashes the result.
// Two objects with the same JSON content hash identically regardless of
// field order.
func SHA256Object(obj interface{}) (string, error) {
	canonical, err := CanonicalizeJSON(obj)
	if err != nil {
		return "", err
	}
	return SHA256String(canonical), nil
}
