package core

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Hash is an opaque 32-byte content digest used throughout the engine for
// block, transaction and asset identifiers.
type Hash [32]byte

// ZeroHash is the all-zero sentinel hash.
var ZeroHash Hash

// HashData returns the SHA-256 digest of data as a Hash.
func HashData(data []byte) Hash {
	return sha256.Sum256(data)
}

// Equal reports whether h and other are byte-identical. It runs in constant
// time so hash comparisons used on consensus-critical paths do not leak
// timing information.
func (h Hash) Equal(other Hash) bool {
	return subtle.ConstantTimeCompare(h[:], other[:]) == 1
}

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	return h.Equal(ZeroHash)
}

// String returns the lowercase hex encoding of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns a copy of the underlying 32 bytes.
func (h Hash) Bytes() []byte {
	out := make([]byte, len(h))
	copy(out, h[:])
	return out
}

// HashFromHex decodes a 64-character hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("hash: invalid hex: %w", err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("hash: expected %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// MarshalJSON encodes the hash as a hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a hex string into the hash.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := HashFromHex(s)
	if err != nil {
		return err
	}
	*h = decoded
	return nil
}
