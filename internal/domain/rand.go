package domain

import (
	"math/rand"
	"sync"
)

// lockedRand сериализует доступ к math/rand.Rand: сам генератор не
// потокобезопасен, а один экземпляр разделяется параллельными сборками.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewLockedRand создаёт потокобезопасный источник случайности.
func NewLockedRand(seed int64) Rand {
	return &lockedRand{rng: rand.New(rand.NewSource(seed))}
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}

func (r *lockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}
