package sampling

import (
	"sync/atomic"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/ports"
)

// Swappable forwards to a sampler that can be replaced at runtime, for
// example when the sample rate is reloaded from configuration. Sessions that
// already exist keep their decision.
type Swappable struct {
	current atomic.Pointer[samplerBox]
}

type samplerBox struct {
	sampler ports.Sampler
}

func NewSwappable(initial ports.Sampler) *Swappable {
	s := &Swappable{}
	s.Swap(initial)
	return s
}

// Swap installs a new sampler for subsequent decisions.
func (s *Swappable) Swap(next ports.Sampler) {
	s.current.Store(&samplerBox{sampler: next})
}

func (s *Swappable) Sample(seed string) bool {
	return s.current.Load().sampler.Sample(seed)
}

func (s *Swappable) Rate() float64 {
	return s.current.Load().sampler.Rate()
}
