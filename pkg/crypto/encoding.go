// Copyright 2025 Covenant Protocol
//
// Hex and base64url codecs, constant-time comparison, nonce and identifier
// generation, and kernel timestamps

package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"time"

	kerrors "github.com/covenant-protocol/trust-kernel/pkg/errors"
)

// NonceSize is the size in bytes of generated nonces
const NonceSize = 32

// DefaultIDBytes is the number of random bytes in a generated identifier
const DefaultIDBytes = 16

// ToHex encodes a byte slice to a lowercase hex string
func ToHex(data []byte) string {
	return hex.EncodeToString(data)
}

// FromHex decodes a hex string. Odd-length input and non-hex characters
// are rejected with CRYPTO_HEX errors.
func FromHex(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, kerrors.New(kerrors.ErrorCodeCryptoHex, "hex string has odd length")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.ErrorCodeCryptoHex, "invalid hex string", err)
	}
	return b, nil
}

// IsHex reports whether s is a valid hex string of exactly n characters
func IsHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// Base64URLEncode encodes bytes as unpadded base64url (RFC 4648 section 5)
func Base64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// Base64URLDecode decodes base64url input with or without padding
func Base64URLDecode(s string) ([]byte, error) {
	trimmed := strings.TrimRight(s, "=")
	b, err := base64.RawURLEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.ErrorCodeCryptoEncoding, "invalid base64url string", err)
	}
	return b, nil
}

// ConstantTimeEqual compares two byte slices in time independent of their
// content. A length mismatch returns false immediately.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// GenerateNonce returns 32 bytes from the system CSPRNG
func GenerateNonce() ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, kerrors.Wrap(kerrors.ErrorCodeCryptoKey, "failed to generate nonce", err)
	}
	return nonce, nil
}

// GenerateID returns a hex identifier built from n random bytes.
// n <= 0 uses DefaultIDBytes.
func GenerateID(n int) (string, error) {
	if n <= 0 {
		n = DefaultIDBytes
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", kerrors.Wrap(kerrors.ErrorCodeCryptoKey, "failed to generate identifier", err)
	}
	return hex.EncodeToString(b), nil
}

// Timestamp returns the current time as an ISO 8601 UTC string with
// millisecond precision, e.g. "2025-01-15T12:00:00.000Z"
func Timestamp() string {
	return FormatTimestamp(time.Now())
}

// FormatTimestamp formats a time in the kernel's canonical timestamp form
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// ParseTimestamp parses an ISO 8601 timestamp in either RFC 3339 form or
// the kernel's canonical millisecond form
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02T15:04:05.000Z", s)
	if err != nil {
		return time.Time{}, kerrors.Wrap(kerrors.ErrorCodeInvalidInput, "invalid timestamp", err)
	}
	return t, nil
}
