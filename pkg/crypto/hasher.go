// Package crypto provides the dual-hash primitive used to fingerprint
// receipts, ledger entries and Merkle nodes.
//
// A dual hash is "<sha256 hex>:<secondary hex>". The secondary digest is
// BLAKE3 by default. When no secondary is available the hasher runs in
// degraded mode and repeats the SHA-256 digest in both halves, so the
// output shape never changes.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/blake2b"
	"lukechampine.com/blake3"

	"github.com/northstaraokeystone/trumpproof/pkg/canonicalize"
)

// Secondary algorithm names accepted by NewDualHasher.
const (
	SecondaryBLAKE3  = "blake3"
	SecondaryBLAKE2b = "blake2b"
	SecondaryNone    = "none"
)

// ErrMalformedHash is returned when a string is not a well formed dual hash.
var ErrMalformedHash = errors.New("malformed dual hash")

// Hasher provides deterministic hashing for receipt payloads.
type Hasher interface {
	Hash(v interface{}) (string, error)
	Sum(data []byte) string
}

// DualHasher produces "<sha256>:<secondary>" digests.
type DualHasher struct {
	secondary string
	sum       func([]byte) [32]byte
}

// NewDualHasher returns a hasher using the named secondary algorithm.
// Unknown names fall back to degraded mode with a warning.
func NewDualHasher(secondary string) *DualHasher {
	switch strings.ToLower(strings.TrimSpace(secondary)) {
	case "", SecondaryBLAKE3:
		return &DualHasher{secondary: SecondaryBLAKE3, sum: blake3.Sum256}
	case SecondaryBLAKE2b:
		return &DualHasher{secondary: SecondaryBLAKE2b, sum: blake2b.Sum256}
	case SecondaryNone:
		return &DualHasher{secondary: SecondaryNone}
	default:
		slog.Warn("unknown secondary hash, running degraded", "secondary", secondary)
		return &DualHasher{secondary: SecondaryNone}
	}
}

// NewDegradedHasher returns a hasher with no secondary digest.
func NewDegradedHasher() *DualHasher {
	return &DualHasher{secondary: SecondaryNone}
}

// Secondary reports the secondary algorithm name.
func (h *DualHasher) Secondary() string { return h.secondary }

// Degraded reports whether the secondary half repeats SHA-256.
func (h *DualHasher) Degraded() bool { return h.sum == nil }

// Sum returns the dual hash of raw bytes.
func (h *DualHasher) Sum(data []byte) string {
	primary := sha256.Sum256(data)
	p := hex.EncodeToString(primary[:])
	if h.sum == nil {
		return p + ":" + p
	}
	secondary := h.sum(data)
	return p + ":" + hex.EncodeToString(secondary[:])
}

// SumString is Sum over the UTF-8 bytes of s.
func (h *DualHasher) SumString(s string) string {
	return h.Sum([]byte(s))
}

// Hash canonicalizes v with JCS and returns its dual hash.
// Values that cannot be represented in JSON (NaN, Inf, channels) are rejected.
func (h *DualHasher) Hash(v interface{}) (string, error) {
	b, err := canonicalize.JCS(v)
	if err != nil {
		return "", fmt.Errorf("canonical serialization failed: %w", err)
	}
	return h.Sum(b), nil
}

// Split separates a dual hash into its two halves.
func Split(dual string) (primary, secondary string, err error) {
	parts := strings.Split(dual, ":")
	if len(parts) != 2 || !isHex64(parts[0]) || !isHex64(parts[1]) {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedHash, truncate(dual, 40))
	}
	return parts[0], parts[1], nil
}

// Valid reports whether s has the shape of a dual hash.
func Valid(s string) bool {
	_, _, err := Split(s)
	return err == nil
}

func isHex64(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
