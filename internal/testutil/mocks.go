package testutil

import (
	"context"
	"sync"
	"time"
)

// SequenceRandom replays scripted draws. Float64 and Intn each cycle
// through their own sequence; an empty sequence yields zero.
type SequenceRandom struct {
	Floats []float64
	Ints   []int

	mu     sync.Mutex
	fi, ii int
}

// Float64 returns the next scripted float.
func (s *SequenceRandom) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Floats) == 0 {
		return 0
	}
	v := s.Floats[s.fi%len(s.Floats)]
	s.fi++
	return v
}

// Intn returns the next scripted int, reduced modulo n.
func (s *SequenceRandom) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Ints) == 0 || n <= 0 {
		return 0
	}
	v := s.Ints[s.ii%len(s.Ints)]
	s.ii++
	return v % n
}

// StaticContext implements a context source returning a fixed block.
type StaticContext struct {
	Block string
	Calls int
}

// ContextForPrompt returns Block.
func (s *StaticContext) ContextForPrompt(ctx context.Context) string {
	s.Calls++
	return s.Block
}

// SleepRecorder records requested delays without sleeping.
type SleepRecorder struct {
	mu     sync.Mutex
	Delays []time.Duration
}

// Sleep records d and returns immediately unless ctx is done.
func (s *SleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.Delays = append(s.Delays, d)
	s.mu.Unlock()
	return ctx.Err()
}
