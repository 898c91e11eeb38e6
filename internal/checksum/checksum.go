// Package checksum computes content hashes used to deduplicate images.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Algorithm names a supported digest.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	BLAKE3 Algorithm = "blake3"
)

// Hasher returns the hex digest of data.
type Hasher func(data []byte) string

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumBLAKE3 returns the hex-encoded 256-bit BLAKE3 digest of data.
func SumBLAKE3(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Canonical maps the empty name to SHA256.
func (a Algorithm) Canonical() Algorithm {
	if a == "" {
		return SHA256
	}
	return a
}

// For resolves an algorithm name. The empty name selects SHA-256.
func For(alg Algorithm) (Hasher, error) {
	switch alg {
	case "", SHA256:
		return Sum, nil
	case BLAKE3:
		return SumBLAKE3, nil
	default:
		return nil, fmt.Errorf("checksum: unknown algorithm %q", alg)
	}
}
