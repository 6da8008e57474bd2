// Package sampling decides which sessions are recorded.
package sampling

import (
	"math/rand/v2"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/ports"
)

// ProbabilitySampler draws a random number for every decision.
type ProbabilitySampler struct {
	mu   sync.Mutex
	rng  *rand.Rand
	rate float64
}

// NewProbabilitySampler returns a sampler accepting rate percent of decisions.
// The rate is clamped to [0, 100].
func NewProbabilitySampler(rate float64, seed uint64) *ProbabilitySampler {
	return &ProbabilitySampler{
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		rate: clamp(rate),
	}
}

// Sample ignores the seed.
func (s *ProbabilitySampler) Sample(string) bool {
	switch {
	case s.rate >= 100:
		return true
	case s.rate <= 0:
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()*100 < s.rate
}

func (s *ProbabilitySampler) Rate() float64 { return s.rate }

// IdentitySampler hashes the seed so the same session id always gets the same
// decision, whichever process evaluates it.
type IdentitySampler struct {
	rate float64
}

func NewIdentitySampler(rate float64) *IdentitySampler {
	return &IdentitySampler{rate: clamp(rate)}
}

func (s *IdentitySampler) Sample(seed string) bool {
	switch {
	case s.rate >= 100:
		return true
	case s.rate <= 0:
		return false
	}
	// Map the hash to [0, 100) with 1e-4 resolution.
	bucket := float64(xxhash.Sum64String(seed)%1_000_000) / 10_000
	return bucket < s.rate
}

func (s *IdentitySampler) Rate() float64 { return s.rate }

// New returns an identity sampler when deterministic is set, a probability
// sampler otherwise.
func New(rate float64, deterministic bool, seed uint64) ports.Sampler {
	if deterministic {
		return NewIdentitySampler(rate)
	}
	return NewProbabilitySampler(rate, seed)
}

func clamp(rate float64) float64 {
	switch {
	case rate < 0:
		return 0
	case rate > 100:
		return 100
	default:
		return rate
	}
}
