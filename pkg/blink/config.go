package blink

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/teslashibe/go-avatar/pkg/lifecycle"
)

// Timing is a randomized duration: Base ± Variance, drawn uniformly.
type Timing struct {
	Base     time.Duration `mapstructure:"base" json:"base"`
	Variance time.Duration `mapstructure:"variance" json:"variance"`
}

// Draw returns Base + (2u-1)·Variance for u in [0,1), clamped at zero.
func (t Timing) Draw(u float64) time.Duration {
	d := t.Base + time.Duration((2*u-1)*float64(t.Variance))
	if d < 0 {
		return 0
	}
	return d
}

// Probabilities is the blink mode distribution for one lifecycle state.
type Probabilities struct {
	Slow   float64 `mapstructure:"slow" json:"slow"`
	Fast   float64 `mapstructure:"fast" json:"fast"`
	Double float64 `mapstructure:"double" json:"double"`
}

// Lifecycle is the blink behavior while the avatar is in one conversational state.
type Lifecycle struct {
	Enabled       bool          `mapstructure:"enabled" json:"enabled"`
	Probabilities Probabilities `mapstructure:"probabilities" json:"probabilities"`
	Interval      Timing        `mapstructure:"interval" json:"interval"` // time between blinks
}

// Config holds all tunable parameters for eye blinking.
type Config struct {
	Idle     Lifecycle `mapstructure:"idle" json:"idle"`
	Speaking Lifecycle `mapstructure:"speaking" json:"speaking"`

	SlowClose   Timing `mapstructure:"slow_close" json:"slow_close"`
	FastClose   Timing `mapstructure:"fast_close" json:"fast_close"`
	DoubleClose Timing `mapstructure:"double_close" json:"double_close"`
	DoubleOpen  Timing `mapstructure:"double_open" json:"double_open"` // gap between the two closings
}

// DefaultConfig returns natural-looking blink behavior.
// Idle blinks are slower and lazier; speaking blinks are quicker and more frequent.
func DefaultConfig() Config {
	return Config{
		Idle: Lifecycle{
			Enabled:       true,
			Probabilities: Probabilities{Slow: 0.6, Fast: 0.3, Double: 0.1},
			Interval:      Timing{Base: 4 * time.Second, Variance: 1500 * time.Millisecond},
		},
		Speaking: Lifecycle{
			Enabled:       true,
			Probabilities: Probabilities{Slow: 0.2, Fast: 0.6, Double: 0.2},
			Interval:      Timing{Base: 2500 * time.Millisecond, Variance: 1 * time.Second},
		},

		SlowClose:   Timing{Base: 250 * time.Millisecond, Variance: 50 * time.Millisecond},
		FastClose:   Timing{Base: 120 * time.Millisecond, Variance: 30 * time.Millisecond},
		DoubleClose: Timing{Base: 100 * time.Millisecond, Variance: 20 * time.Millisecond},
		DoubleOpen:  Timing{Base: 120 * time.Millisecond, Variance: 30 * time.Millisecond},
	}
}

// For returns the settings for a lifecycle state.
func (c Config) For(s lifecycle.State) Lifecycle {
	if s == lifecycle.Speaking {
		return c.Speaking
	}
	return c.Idle
}

// ErrInvalidConfig is returned when a configuration value is out of range.
var ErrInvalidConfig = errors.New("blink: invalid config")

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	lifecycles := []struct {
		name string
		lc   Lifecycle
	}{
		{"idle", c.Idle},
		{"speaking", c.Speaking},
	}
	for _, l := range lifecycles {
		if err := l.lc.validate(l.name); err != nil {
			return err
		}
	}
	timings := []struct {
		name string
		t    Timing
	}{
		{"slow_close", c.SlowClose},
		{"fast_close", c.FastClose},
		{"double_close", c.DoubleClose},
		{"double_open", c.DoubleOpen},
	}
	for _, tm := range timings {
		if err := tm.t.validate(tm.name); err != nil {
			return err
		}
	}
	return nil
}

func (l Lifecycle) validate(name string) error {
	p := l.Probabilities
	if p.Slow < 0 || p.Fast < 0 || p.Double < 0 {
		return fmt.Errorf("%w: %s.probabilities must be >= 0", ErrInvalidConfig, name)
	}
	if l.Enabled && math.Abs(p.Slow+p.Fast+p.Double-1) > 1e-6 {
		return fmt.Errorf("%w: %s.probabilities must sum to 1", ErrInvalidConfig, name)
	}
	return l.Interval.validate(name + ".interval")
}

func (t Timing) validate(name string) error {
	if t.Base <= 0 {
		return fmt.Errorf("%w: %s.base must be > 0", ErrInvalidConfig, name)
	}
	if t.Variance < 0 || t.Variance > t.Base {
		return fmt.Errorf("%w: %s.variance must be in [0, base]", ErrInvalidConfig, name)
	}
	return nil
}
