package marketdata

import (
	"math/rand"
	"sync"
	"time"
)

// Source yields uniform samples in [0, 1). Every randomized step of the
// engine draws from an injected Source so tests can replay exact sequences.
type Source interface {
	Float64() float64
}

// NewSource returns a goroutine-safe Source. A zero seed seeds from the clock.
func NewSource(seed int64) Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedSource{r: rand.New(rand.NewSource(seed))}
}

type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// centered maps a sample to [-0.5, 0.5).
func centered(src Source) float64 {
	return src.Float64() - 0.5
}
