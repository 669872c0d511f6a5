package mouth

import (
	"errors"
	"math"
	"testing"

	"github.com/teslashibe/go-avatar/pkg/features"
	"github.com/teslashibe/go-avatar/pkg/lifecycle"
)

// testConfig uses energy-only weights and disables drop detection and the
// adaptive threshold so each test can enable what it needs.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.CloseThreshold = 0.02
	cfg.OpenThreshold = 0.1
	cfg.EnergyHistoryWindow = 10
	cfg.MinEnergyValuesForAdaptive = 1000
	cfg.EnergyDropMultiplier = 0
	cfg.MaxOpenFrames = 3
	cfg.DecayRate = 0.5
	cfg.DecayClosedThreshold = 0.3
	cfg.Weights = Weights{Energy: 1}
	return cfg
}

func newController(t *testing.T, cfg Config, state lifecycle.State) *Controller {
	t.Helper()
	c, err := New(cfg, lifecycle.Fixed(state))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func energy(e float64) features.Frame {
	return features.Frame{Energy: e}
}

func TestDefaultConfig_Valid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig invalid: %v", err)
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative window", func(c *Config) { c.EnergyHistoryWindow = -1 }},
		{"decay rate one", func(c *Config) { c.DecayRate = 1 }},
		{"open below close", func(c *Config) { c.OpenThreshold = 0.001 }},
		{"negative weight", func(c *Config) { c.Weights.HighFreqEnergy = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if _, err := New(cfg, nil); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestController_IdleAlwaysClosed(t *testing.T) {
	c := newController(t, testConfig(), lifecycle.Idle)

	for i := 0; i < 50; i++ {
		if got := c.Update(energy(0.9)); got != Closed {
			t.Fatalf("Frame %d: idle mouth was %v", i, got)
		}
		if c.State().FramesOpen != 0 {
			t.Fatalf("Frame %d: idle framesOpen = %d", i, c.State().FramesOpen)
		}
	}
	if c.State().HistoryLen != 0 {
		t.Errorf("Idle frames should not enter the energy history, got %d", c.State().HistoryLen)
	}
}

// Combined intensity equal to the threshold opens.
func TestController_ThresholdInclusive(t *testing.T) {
	c := newController(t, testConfig(), lifecycle.Speaking)

	if got := c.Update(energy(0.1)); got != Open {
		t.Errorf("Expected open at combined == threshold, got %v", got)
	}
	if got := c.Update(energy(0.0999)); got != Closed {
		t.Errorf("Expected closed just below threshold, got %v", got)
	}
}

func TestController_CloseThresholdWins(t *testing.T) {
	cfg := testConfig()
	cfg.Weights = Weights{Energy: 1, HighFreqEnergy: 10}
	c := newController(t, cfg, lifecycle.Speaking)

	// Combined is large, but raw energy is at the close threshold.
	f := features.Frame{Energy: 0.02, HighFreqEnergy: 1}
	if got := c.Update(f); got != Closed {
		t.Errorf("Expected closed at close threshold, got %v", got)
	}
}

func TestController_DecayBoundsOpenDuration(t *testing.T) {
	c := newController(t, testConfig(), lifecycle.Speaking)

	// Open for frames 1-4, decay starts on 4 (0.5), closes on 5 (0.25 < 0.3).
	want := []Intensity{Open, Open, Open, Open, Closed, Open}
	for i, w := range want {
		if got := c.Update(energy(0.5)); got != w {
			t.Errorf("Frame %d: got %v, want %v (state %+v)", i+1, got, w, c.State())
		}
	}
	if c.State().DecayActive {
		t.Error("Decay should be cleared after a forced close")
	}
}

func TestController_DecayNeverExceedsBound(t *testing.T) {
	cfg := testConfig()
	c := newController(t, cfg, lifecycle.Speaking)

	run, longest := 0, 0
	for i := 0; i < 200; i++ {
		if c.Update(energy(0.8)) == Open {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}

	// Decay factor 0.5 reaches 0.3 in two frames after MaxOpenFrames.
	if longest > cfg.MaxOpenFrames+1 {
		t.Errorf("Longest open run %d exceeds bound %d", longest, cfg.MaxOpenFrames+1)
	}
}

func TestController_EnergyDropCloses(t *testing.T) {
	cfg := testConfig()
	cfg.RecentAvgWindow = 2
	cfg.OlderAvgWindow = 2
	cfg.EnergyDropMultiplier = 0.5
	cfg.MicroPauseThreshold = 0.03
	cfg.MaxOpenFrames = 100
	c := newController(t, cfg, lifecycle.Speaking)

	for i := 0; i < 4; i++ {
		if got := c.Update(energy(0.5)); got != Open {
			t.Fatalf("Frame %d: expected open on steady energy, got %v", i+1, got)
		}
	}

	// recent (0.5+0.12)/2 = 0.31 is not below 0.25
	if got := c.Update(energy(0.12)); got != Open {
		t.Errorf("Expected open before drop registers, got %v", got)
	}

	// recent 0.12 < 0.5*0.5 and older 0.5 > micro-pause threshold
	if got := c.Update(energy(0.12)); got != Closed {
		t.Errorf("Expected energy drop to close, got %v", got)
	}
	if !c.State().EnergyDropping {
		t.Error("Expected EnergyDropping in state")
	}
}

func TestController_AdaptiveThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.MinEnergyValuesForAdaptive = 4
	cfg.AdaptiveThresholdFactor = 0.5
	cfg.MaxOpenFrames = 100
	c := newController(t, cfg, lifecycle.Speaking)

	for i := 0; i < 4; i++ {
		c.Update(energy(0.4))
	}
	if th := c.State().AdaptiveThreshold; math.Abs(th-0.2) > 1e-9 {
		t.Errorf("Expected adaptive threshold 0.2, got %v", th)
	}

	// 0.15 would open against the initial 0.1 threshold; mean is now 0.35*0.5.
	if got := c.Update(energy(0.15)); got != Closed {
		t.Errorf("Expected closed against adapted threshold, got %v", got)
	}
}

func TestController_AdaptiveThresholdFloor(t *testing.T) {
	cfg := testConfig()
	cfg.MinEnergyValuesForAdaptive = 2
	cfg.AdaptiveThresholdFactor = 0.5
	c := newController(t, cfg, lifecycle.Speaking)

	for i := 0; i < 10; i++ {
		c.Update(energy(0.03))
	}
	if th := c.State().AdaptiveThreshold; th != cfg.CloseThreshold {
		t.Errorf("Expected threshold floored at %v, got %v", cfg.CloseThreshold, th)
	}
}

func TestController_HistoryBounded(t *testing.T) {
	cfg := testConfig()
	cfg.EnergyHistoryWindow = 5
	c := newController(t, cfg, lifecycle.Speaking)

	for i := 0; i < 30; i++ {
		c.Update(energy(float64(i) / 30))
		if n := c.State().HistoryLen; n > 5 {
			t.Fatalf("History length %d exceeds window 5", n)
		}
	}
}

func TestController_OversizedWindowsDegrade(t *testing.T) {
	cfg := testConfig()
	cfg.EnergyHistoryWindow = 4
	cfg.RecentAvgWindow = 10
	cfg.OlderAvgWindow = 10
	cfg.EnergyDropMultiplier = 0.5
	c := newController(t, cfg, lifecycle.Speaking)

	for i := 0; i < 12; i++ {
		c.Update(energy(0.5))
	}
	avg := c.averages(c.history.Values())
	if avg.Recent != 0.5 || avg.Older != 0.5 {
		t.Errorf("Expected partial-window means of 0.5, got %+v", avg)
	}
}

func TestController_Reset(t *testing.T) {
	cfg := testConfig()
	cfg.MinEnergyValuesForAdaptive = 2
	c := newController(t, cfg, lifecycle.Speaking)

	c.Update(energy(0.5))
	c.Update(energy(0.5))
	c.Reset()
	c.Reset()

	st := c.State()
	if st.Intensity != Closed || st.FramesOpen != 0 || st.DecayActive || st.HistoryLen != 0 {
		t.Errorf("Expected cleared state after reset, got %+v", st)
	}
	if st.AdaptiveThreshold != cfg.OpenThreshold {
		t.Errorf("Expected threshold %v after reset, got %v", cfg.OpenThreshold, st.AdaptiveThreshold)
	}
}

type switchable struct{ state lifecycle.State }

func (s *switchable) State() lifecycle.State { return s.state }

func TestController_ReadsLifecycleEveryFrame(t *testing.T) {
	lc := &switchable{state: lifecycle.Speaking}
	c, err := New(testConfig(), lc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if c.Update(energy(0.5)) != Open {
		t.Fatal("Expected open while speaking")
	}
	lc.state = lifecycle.Idle
	if c.Update(energy(0.5)) != Closed || c.State().FramesOpen != 0 {
		t.Errorf("Expected closed and reset after switching to idle, got %+v", c.State())
	}
}
