package latencytracker

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
)

type (
	// HashFunc computes the 32-bit hash of a key. It must be deterministic,
	// and consistent with MatchFunc (matching keys must hash equally).
	HashFunc func(key []byte) uint32

	// MatchFunc reports whether the key provided to EventIn or EventOut
	// (a) matches the key of an open event (b).
	MatchFunc func(a, b []byte) bool
)

// DefaultHash is the HashFunc used if none is configured, folding the 64-bit
// xxhash of the key.
func DefaultHash(key []byte) uint32 {
	h := xxhash.Sum64(key)
	return uint32(h ^ h>>32)
}

// DefaultMatch is the MatchFunc used if none is configured.
func DefaultMatch(a, b []byte) bool {
	return bytes.Equal(a, b)
}
