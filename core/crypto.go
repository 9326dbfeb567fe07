package core

// crypto.go binds PublicKey/Signature to Ed25519, the same primitive
// core/security.go uses for its signing path. A 32-byte compressed Ed25519
// point fits the 32-byte miner-key slot in the MinerWork layout without any
// bit-packing tricks.

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// PublicKey is an opaque compressed Ed25519 point.
type PublicKey [ed25519.PublicKeySize]byte

// Signature is a 64-byte Ed25519 signature.
type Signature [ed25519.SignatureSize]byte

// ZeroPublicKey is the all-zero sentinel public key.
var ZeroPublicKey PublicKey

func (p PublicKey) String() string {
	return fmt.Sprintf("%x", p[:])
}

// IsZero reports whether p is the all-zero sentinel key.
func (p PublicKey) IsZero() bool {
	return p == ZeroPublicKey
}

func (p PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("%x", p[:]))
}

// UnmarshalJSON decodes a hex string into the public key.
func (p *PublicKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("crypto: invalid public key hex: %w", err)
	}
	if len(b) != len(p) {
		return fmt.Errorf("crypto: expected %d bytes, got %d", len(p), len(b))
	}
	copy(p[:], b)
	return nil
}

// GenerateKeypair creates a new Ed25519 keypair for tests and fixtures.
func GenerateKeypair() (PublicKey, ed25519.PrivateKey, error) {
	var out PublicKey
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return out, nil, fmt.Errorf("crypto: generate key: %w", err)
	}
	copy(out[:], pub)
	return out, priv, nil
}

// Sign signs message with priv and returns the 64-byte signature.
func Sign(message []byte, priv ed25519.PrivateKey) (Signature, error) {
	var sig Signature
	if len(priv) != ed25519.PrivateKeySize {
		return sig, errors.New("crypto: invalid private key size")
	}
	copy(sig[:], ed25519.Sign(priv, message))
	return sig, nil
}

// Verify checks that sig is a valid signature over message by pub.
func Verify(message []byte, sig Signature, pub PublicKey) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), message, sig[:])
}
