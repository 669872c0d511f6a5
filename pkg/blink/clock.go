package blink

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// Rand draws uniform values in [0, 1).
type Rand interface {
	Float64() float64
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// ManualClock is a Clock advanced explicitly by tests.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock starting at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now implements Clock.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// NewRand returns a seeded PCG generator.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Sequence is a Rand that replays fixed values in order, cycling.
type Sequence struct {
	values []float64
	i      int
}

// NewSequence creates a Sequence. An empty sequence always returns 0.5.
func NewSequence(values ...float64) *Sequence {
	return &Sequence{values: values}
}

// Float64 implements Rand.
func (s *Sequence) Float64() float64 {
	if len(s.values) == 0 {
		return 0.5
	}
	v := s.values[s.i%len(s.values)]
	s.i++
	return v
}
