package core

import (
	"math/rand"
	"sync"
	"time"
)

// Random is the source of every random draw the engine makes.
// *rand.Rand satisfies it; tests inject scripted sequences.
type Random interface {
	Float64() float64
	Intn(n int) int
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRandom returns a goroutine-safe Random seeded from the clock.
func NewRandom() Random {
	return &lockedRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}
