// Package synthetic generates deterministic pseudo-random blockchain data
// and mock risk scores keyed by borrower address.
//
// The generator runs whenever live data or a live model is unavailable
// (mock mode and every fallback path). Determinism is load-bearing: the
// same address must produce byte-identical output on every call, because
// tests and demos depend on address→score stability. All random-looking
// quantities derive from a 32-bit seed taken from the keccak-256 hash of
// the address; nothing reads a true random source or the wall clock.
package synthetic

import (
	"encoding/binary"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Seed is a deterministic PRNG state derived from an address hash.
// The zero value is not useful; construct with SeedFrom.
type Seed struct {
	base  uint32
	state uint64
}

// SeedFrom derives a seed from the low-order bytes of keccak256(address).
// Addresses are lowercased first so checksummed and plain forms agree.
func SeedFrom(address string) *Seed {
	h := crypto.Keccak256([]byte(strings.ToLower(address)))
	base := binary.BigEndian.Uint32(h[len(h)-4:])
	return &Seed{base: base, state: uint64(base)}
}

// Base returns the raw 32-bit seed value.
func (s *Seed) Base() uint32 {
	return s.base
}

// next advances the state with a 64-bit LCG (Knuth MMIX constants).
func (s *Seed) next() uint64 {
	s.state = s.state*6364136223846793005 + 1442695040888963407
	return s.state
}

// IntInRange returns a deterministic value in [lo, hi]. Degenerate ranges
// collapse to lo.
func (s *Seed) IntInRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	span := uint64(hi - lo + 1)
	return lo + int((s.next()>>11)%span)
}

// FloatInRange returns a deterministic value in [lo, hi).
func (s *Seed) FloatInRange(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	// 53 high bits give a uniform float in [0,1).
	f := float64(s.next()>>11) / float64(1<<53)
	return lo + f*(hi-lo)
}
