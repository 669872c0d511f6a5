// Package mouth drives the avatar's binary mouth signal from audio features.
//
// The controller is independent of voice activity smoothing: it keeps its
// own energy history, adapts its open threshold to the speaker's loudness,
// closes on sharp energy drops (syllable gaps), and forces a close when the
// mouth has been open for too long.
package mouth

import (
	"fmt"

	"github.com/teslashibe/go-avatar/pkg/features"
	"github.com/teslashibe/go-avatar/pkg/lifecycle"
	"github.com/teslashibe/go-avatar/pkg/ring"
)

// Intensity is the binary mouth signal.
type Intensity int

const (
	Closed Intensity = iota
	Open
)

// String returns a human-readable name.
func (i Intensity) String() string {
	if i == Open {
		return "open"
	}
	return "closed"
}

// MarshalText implements encoding.TextMarshaler.
func (i Intensity) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Intensity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "closed":
		*i = Closed
	case "open":
		*i = Open
	default:
		return fmt.Errorf("unknown intensity %q", text)
	}
	return nil
}

// State is a read-only view of the controller.
type State struct {
	Intensity         Intensity
	FramesOpen        int
	AdaptiveThreshold float64
	DecayActive       bool
	DecayValue        float64
	EnergyDropping    bool
	HistoryLen        int
}

// Averages are the recent and older energy means used for drop detection.
type Averages struct {
	Recent float64
	Older  float64
}

// Controller computes the mouth signal once per frame.
type Controller struct {
	cfg       Config
	lifecycle lifecycle.Reader

	history *ring.Float64s

	intensity  Intensity
	framesOpen int
	threshold  float64
	decay      bool
	decayValue float64
	dropping   bool
}

// New creates a controller. lifecycle is read every frame and never mutated.
func New(cfg Config, lc lifecycle.Reader) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if lc == nil {
		lc = lifecycle.Fixed(lifecycle.Speaking)
	}
	history, err := ring.NewFloat64s(cfg.EnergyHistoryWindow)
	if err != nil {
		return nil, err
	}
	return &Controller{
		cfg:       cfg,
		lifecycle: lc,
		history:   history,
		threshold: cfg.OpenThreshold,
	}, nil
}

// Update advances the controller by one frame.
func (c *Controller) Update(f features.Frame) Intensity {
	if c.lifecycle.State() == lifecycle.Idle {
		c.close()
		c.dropping = false
		return c.intensity
	}

	c.history.Push(f.Energy)
	values := c.history.Values()

	avg := c.averages(values)
	c.dropping = avg.Recent < avg.Older*c.cfg.EnergyDropMultiplier && avg.Older > c.cfg.MicroPauseThreshold

	if len(values) >= c.cfg.MinEnergyValuesForAdaptive {
		c.threshold = max(c.cfg.CloseThreshold, ring.Mean(values)*c.cfg.AdaptiveThresholdFactor)
	}

	if f.Energy <= c.cfg.CloseThreshold || c.dropping {
		c.close()
		return c.intensity
	}

	// Inclusive on the open side.
	if c.Combined(f) < c.threshold {
		c.close()
		return c.intensity
	}

	c.intensity = Open
	c.framesOpen++
	if c.framesOpen > c.cfg.MaxOpenFrames && !c.decay {
		c.decay = true
		c.decayValue = 1
	}
	if c.decay {
		c.decayValue *= c.cfg.DecayRate
		if c.decayValue < c.cfg.DecayClosedThreshold {
			c.close()
		}
	}
	return c.intensity
}

// Combined returns the weighted feature sum compared against the threshold.
func (c *Controller) Combined(f features.Frame) float64 {
	w := c.cfg.Weights
	return f.Energy*w.Energy +
		f.ZeroCrossingRate*w.ZeroCrossingRate +
		f.SpectralCentroid*w.SpectralCentroid +
		f.HighFreqEnergy*w.HighFreqEnergy
}

// averages returns the mean of the newest RecentAvgWindow values and of the
// oldest OlderAvgWindow values. Both are zero until the history holds both
// windows, or is full when the windows are larger than the history.
func (c *Controller) averages(values []float64) Averages {
	need := min(c.cfg.RecentAvgWindow+c.cfg.OlderAvgWindow, c.history.Cap())
	if len(values) < need || len(values) == 0 {
		return Averages{}
	}
	recent := values[len(values)-min(c.cfg.RecentAvgWindow, len(values)):]
	older := values[:min(c.cfg.OlderAvgWindow, len(values))]
	return Averages{Recent: ring.Mean(recent), Older: ring.Mean(older)}
}

func (c *Controller) close() {
	c.intensity = Closed
	c.framesOpen = 0
	c.decay = false
	c.decayValue = 0
}

// Intensity returns the last computed signal.
func (c *Controller) Intensity() Intensity {
	return c.intensity
}

// State returns a snapshot of the controller.
func (c *Controller) State() State {
	return State{
		Intensity:         c.intensity,
		FramesOpen:        c.framesOpen,
		AdaptiveThreshold: c.threshold,
		DecayActive:       c.decay,
		DecayValue:        c.decayValue,
		EnergyDropping:    c.dropping,
		HistoryLen:        c.history.Len(),
	}
}

// Reset restores construction-time defaults.
func (c *Controller) Reset() {
	c.history.Reset()
	c.close()
	c.threshold = c.cfg.OpenThreshold
	c.dropping = false
}
