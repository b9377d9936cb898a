package gacha

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// RandomSource abstracts the randomness used by the resolver.
type RandomSource interface {
	Float64() float64 // [0, 1)
	IntN(n int) int   // [0, n)
	Bool() bool       // unbiased coin
}

// crypto random : default generation method
type cryptoRNG struct{}

func (cryptoRNG) uint64() uint64 {
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err != nil {
		// back to math/rand/v2
		return rand.Uint64()
	}
	return binary.BigEndian.Uint64(buf[:])
}

func (c cryptoRNG) Float64() float64 {
	// 53 bits => [0, 1)
	u := c.uint64() >> 11
	return float64(u) / (1 << 53)
}

func (c cryptoRNG) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	// rejection sampling keeps the draw uniform
	limit := ^uint64(0) - (^uint64(0) % uint64(n))
	for {
		u := c.uint64()
		if u < limit {
			return int(u % uint64(n))
		}
	}
}

func (c cryptoRNG) Bool() bool { return c.uint64()&1 == 1 }

// DefaultRNG returns the crypto-backed source used in production.
func DefaultRNG() RandomSource { return cryptoRNG{} }

// Replicable RNG (tests, simulations)
type seededRNG struct{ r *rand.Rand }

// NewSeededRNG returns a deterministic PCG-backed source.
func NewSeededRNG(seed uint64) RandomSource {
	return &seededRNG{r: rand.New(rand.NewPCG(seed, 0))}
}

func (s *seededRNG) Float64() float64 { return s.r.Float64() }

func (s *seededRNG) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	return s.r.IntN(n)
}

func (s *seededRNG) Bool() bool { return s.r.IntN(2) == 1 }
