// Copyright 2025 Covenant Protocol
//
// Ed25519 key management, signing and verification
// All covenant and attestation signatures in the kernel use Ed25519

package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"

	kerrors "github.com/covenant-protocol/trust-kernel/pkg/errors"
)

// KeyPair holds an Ed25519 key pair with a precomputed hex public key
type KeyPair struct {
	PrivateKey   ed25519.PrivateKey
	PublicKey    ed25519.PublicKey
	PublicKeyHex string
}

// GenerateKeyPair generates a new Ed25519 key pair from the system CSPRNG
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.ErrorCodeCryptoKey, "failed to generate Ed25519 key pair", err)
	}
	return &KeyPair{
		PrivateKey:   priv,
		PublicKey:    pub,
		PublicKeyHex: hex.EncodeToString(pub),
	}, nil
}

// KeyPairFromPrivateKey reconstructs a KeyPair from an existing private key.
// The key must be 64 bytes (Go's ed25519.PrivateKey format, which carries
// the public key suffix).
func KeyPairFromPrivateKey(privateKey ed25519.PrivateKey) (*KeyPair, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, kerrors.Newf(kerrors.ErrorCodeCryptoLength,
			"private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(privateKey))
	}
	pub := privateKey.Public().(ed25519.PublicKey)
	keyCopy := make(ed25519.PrivateKey, len(privateKey))
	copy(keyCopy, privateKey)
	return &KeyPair{
		PrivateKey:   keyCopy,
		PublicKey:    pub,
		PublicKeyHex: hex.EncodeToString(pub),
	}, nil
}

// KeyPairFromSeed derives a KeyPair from a 32-byte Ed25519 seed
func KeyPairFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, kerrors.Newf(kerrors.ErrorCodeCryptoLength,
			"seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &KeyPair{
		PrivateKey:   priv,
		PublicKey:    pub,
		PublicKeyHex: hex.EncodeToString(pub),
	}, nil
}

// Sign signs message bytes with an Ed25519 private key and returns the
// 64-byte signature. Ed25519 is deterministic: the same message and key
// always produce the same signature.
func Sign(message []byte, privateKey ed25519.PrivateKey) ([]byte, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, kerrors.Newf(kerrors.ErrorCodeCryptoLength,
			"private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(privateKey))
	}
	return ed25519.Sign(privateKey, message), nil
}

// Verify checks an Ed25519 signature against a message and public key.
// Returns false for any malformed input (wrong key length, truncated
// signature, non-canonical point); it never returns an error.
func Verify(message, signature []byte, publicKey ed25519.PublicKey) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	if len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(publicKey, message, signature)
}
