package audio

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Random is the source for all generative variation
// Tests substitute a deterministic implementation
type Random interface {
	Float64() float64
}

// NewRandom returns a seeded PCG source, seed 0 seeds from the clock
func NewRandom(seed uint64) Random {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// lockedRandom serializes a source shared between goroutines
type lockedRandom struct {
	mu  sync.Mutex
	src Random
}

func (r *lockedRandom) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Float64()
}

// bipolar draws uniformly from [-width, width)
func bipolar(r Random, width float64) float64 {
	return (r.Float64()*2 - 1) * width
}
