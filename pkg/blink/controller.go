// Package blink drives the avatar's eye blinks.
//
// Blinks are a small finite state machine: phase none (eyes open, waiting
// for the next deadline), closing (eyes closed for the close duration), and
// opening (the short gap inside a double blink). A blink always ends with
// the eyes open before the next one may start.
package blink

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-avatar/pkg/lifecycle"
)

// EyeState is the observable eye signal.
type EyeState int

const (
	EyesOpen EyeState = iota
	EyesClosed
)

// String returns a human-readable name.
func (e EyeState) String() string {
	if e == EyesClosed {
		return "closed"
	}
	return "open"
}

// MarshalText implements encoding.TextMarshaler.
func (e EyeState) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *EyeState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "open":
		*e = EyesOpen
	case "closed":
		*e = EyesClosed
	default:
		return fmt.Errorf("unknown eye state %q", text)
	}
	return nil
}

// Phase is the blink FSM phase.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseClosing
	PhaseOpening
)

// String returns a human-readable name.
func (p Phase) String() string {
	switch p {
	case PhaseClosing:
		return "closing"
	case PhaseOpening:
		return "opening"
	default:
		return "none"
	}
}

// Mode is the blink style.
type Mode int

const (
	ModeSlow Mode = iota
	ModeFast
	ModeDouble
)

// String returns a human-readable name.
func (m Mode) String() string {
	switch m {
	case ModeFast:
		return "fast"
	case ModeDouble:
		return "double"
	default:
		return "slow"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "slow":
		*m = ModeSlow
	case "fast":
		*m = ModeFast
	case "double":
		*m = ModeDouble
	default:
		return fmt.Errorf("unknown mode %q", text)
	}
	return nil
}

// State is a read-only view of the blink FSM.
type State struct {
	Phase           Phase
	Mode            Mode
	Eyes            EyeState
	PhaseStart      time.Time
	NextBlink       time.Time
	CompletedPhases int // closings completed in the current blink
	TargetPhases    int // closings required by the current mode
	Openings        int // intermediate openings in the current blink
	CloseDuration   time.Duration
	OpenDuration    time.Duration
	Blinks          int // completed blinks since reset
}

// Controller advances the blink FSM once per frame.
type Controller struct {
	cfg       Config
	lifecycle lifecycle.Reader
	clock     Clock
	rng       Rand

	phase         Phase
	mode          Mode
	eyes          EyeState
	phaseStart    time.Time
	nextBlink     time.Time
	scheduled     bool
	completed     int
	target        int
	openings      int
	closeDuration time.Duration
	openDuration  time.Duration
	blinks        int

	onBlink func(Mode, lifecycle.State)
}

// Option configures a Controller.
type Option func(*Controller)

// WithOnBlink registers a callback invoked when a blink starts.
func WithOnBlink(fn func(Mode, lifecycle.State)) Option {
	return func(c *Controller) { c.onBlink = fn }
}

// New creates a blink controller. A nil clock or rng falls back to the
// system clock and a time-seeded generator.
func New(cfg Config, lc lifecycle.Reader, clock Clock, rng Rand, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if lc == nil {
		lc = lifecycle.Fixed(lifecycle.Idle)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if rng == nil {
		rng = NewRand(uint64(time.Now().UnixNano()))
	}
	c := &Controller{
		cfg:       cfg,
		lifecycle: lc,
		clock:     clock,
		rng:       rng,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Update advances the FSM to the current clock time and returns the eye state.
func (c *Controller) Update() EyeState {
	now := c.clock.Now()
	state := c.lifecycle.State()
	lc := c.cfg.For(state)

	switch c.phase {
	case PhaseNone:
		if !lc.Enabled {
			c.scheduled = false
			c.eyes = EyesOpen
			return c.eyes
		}
		if !c.scheduled {
			c.schedule(now, lc)
		}
		if !now.Before(c.nextBlink) {
			c.start(now, state, lc)
		}

	case PhaseClosing:
		if now.Sub(c.phaseStart) >= c.closeDuration {
			c.completed++
			if c.completed >= c.target {
				c.finish(now, lc)
			} else {
				c.phase = PhaseOpening
				c.phaseStart = now
				c.openDuration = c.cfg.DoubleOpen.Draw(c.rng.Float64())
				c.openings++
				c.eyes = EyesOpen
			}
		}

	case PhaseOpening:
		if now.Sub(c.phaseStart) >= c.openDuration {
			c.phase = PhaseClosing
			c.phaseStart = now
			c.closeDuration = c.cfg.DoubleClose.Draw(c.rng.Float64())
			c.eyes = EyesClosed
		}
	}

	return c.eyes
}

func (c *Controller) schedule(now time.Time, lc Lifecycle) {
	c.nextBlink = now.Add(lc.Interval.Draw(c.rng.Float64()))
	c.scheduled = true
}

func (c *Controller) start(now time.Time, state lifecycle.State, lc Lifecycle) {
	c.mode = pickMode(lc.Probabilities, c.rng.Float64())
	c.phase = PhaseClosing
	c.phaseStart = now
	c.completed = 0
	c.openings = 0
	c.eyes = EyesClosed

	switch c.mode {
	case ModeDouble:
		c.target = 2
		c.closeDuration = c.cfg.DoubleClose.Draw(c.rng.Float64())
	case ModeFast:
		c.target = 1
		c.closeDuration = c.cfg.FastClose.Draw(c.rng.Float64())
	default:
		c.target = 1
		c.closeDuration = c.cfg.SlowClose.Draw(c.rng.Float64())
	}

	if c.onBlink != nil {
		c.onBlink(c.mode, state)
	}
}

func (c *Controller) finish(now time.Time, lc Lifecycle) {
	c.phase = PhaseNone
	c.eyes = EyesOpen
	c.blinks++
	c.schedule(now, lc)
}

// pickMode draws a mode from a cumulative distribution.
func pickMode(p Probabilities, u float64) Mode {
	switch {
	case u < p.Slow:
		return ModeSlow
	case u < p.Slow+p.Fast:
		return ModeFast
	case p.Double > 0:
		return ModeDouble
	case p.Fast > 0:
		return ModeFast
	default:
		return ModeSlow
	}
}

// Eyes returns the last computed eye state.
func (c *Controller) Eyes() EyeState {
	return c.eyes
}

// State returns a snapshot of the FSM.
func (c *Controller) State() State {
	return State{
		Phase:           c.phase,
		Mode:            c.mode,
		Eyes:            c.eyes,
		PhaseStart:      c.phaseStart,
		NextBlink:       c.nextBlink,
		CompletedPhases: c.completed,
		TargetPhases:    c.target,
		Openings:        c.openings,
		CloseDuration:   c.closeDuration,
		OpenDuration:    c.openDuration,
		Blinks:          c.blinks,
	}
}

// Reset opens the eyes and clears the schedule.
func (c *Controller) Reset() {
	c.phase = PhaseNone
	c.mode = ModeSlow
	c.eyes = EyesOpen
	c.phaseStart = time.Time{}
	c.nextBlink = time.Time{}
	c.scheduled = false
	c.completed = 0
	c.target = 0
	c.openings = 0
	c.closeDuration = 0
	c.openDuration = 0
	c.blinks = 0
}
