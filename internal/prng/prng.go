// Package prng provides the single deterministic random source fsx draws
// every stochastic choice from. Every draw for one operation step happens
// in a fixed order (see ops.Chooser) so that two runs with the
// same seed and config produce byte-identical operation streams.
package prng

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	mathrand "math/rand"
)

// Source is fsx's PRNG. It wraps [math/rand.Rand] over one
// [math/rand.Source] created from a single uint64 seed, never reseeded
// mid-run. That gives reproducibility within a build; cross-version
// reproducibility with older fsx builds is not guaranteed.
type Source struct {
	seed uint64
	rng  *mathrand.Rand
}

// New creates a Source seeded with the given value.
func New(seed uint64) *Source {
	//nolint:gosec // deterministic, not cryptographic; reproducibility is the point
	return &Source{seed: seed, rng: mathrand.New(mathrand.NewSource(int64(seed)))}
}

// Seed returns the seed this Source was created with, for logging at
// startup (see §6 of the spec: the seed is always logged, drawn from OS
// entropy when not supplied explicitly).
func (s *Source) Seed() uint64 {
	return s.seed
}

// DrawSeed produces a fresh, non-deterministic seed from OS entropy, for
// use when the user does not supply one explicitly with -S.
func DrawSeed() (uint64, error) {
	var buf [8]byte

	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("draw seed from OS entropy: %w", err)
	}

	return binary.BigEndian.Uint64(buf[:]), nil
}

// Uint32n returns a uniform value in [0, n). Panics if n == 0.
func (s *Source) Uint32n(n uint32) uint32 {
	return s.rng.Uint32() % n
}

// Int63n returns a uniform value in [0, n). Panics if n <= 0.
func (s *Source) Int63n(n int64) int64 {
	return s.rng.Int63n(n)
}

// Int63Range returns a uniform value in [lo, hi]. Panics if hi < lo.
func (s *Source) Int63Range(lo, hi int64) int64 {
	if hi == lo {
		return lo
	}

	return lo + s.rng.Int63n(hi-lo+1)
}

// Float64 returns a uniform value in [0.0, 1.0), used for weighted
// selection over operation kinds.
func (s *Source) Float64() float64 {
	return s.rng.Float64()
}

// FillBytes draws n pseudorandom bytes from the same stream used for every
// other choice fsx makes. Write and mmap-write content comes from here so
// that the payload of a write at a given step is reproducible from the
// seed exactly like the op's offset and length are (spec.md §4.3's
// "fixed draw order" covers the content too, drawn last, after offset and
// length have been resolved).
func (s *Source) FillBytes(n int64) []byte {
	buf := make([]byte, n)

	// math/rand.Rand.Read never errors.
	_, _ = s.rng.Read(buf)

	return buf
}
