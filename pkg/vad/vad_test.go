package vad

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	th := Thresholds{LowEnergy: 0.02, HighEnergy: 0.08, ZCRWeight: 0.05, ZCRMaxContribution: 0.02}

	tests := []struct {
		name   string
		energy float64
		zcr    float64
		want   Level
	}{
		{"true silence ignores zcr", 0, 10, Quiet},
		{"below low", 0.01, 0, Quiet},
		{"at low is quiet", 0.02, 0, Quiet},
		{"mid range", 0.05, 0, Mid},
		{"at high is active", 0.08, 0, Active},
		{"zcr bonus lifts to mid", 0.015, 0.2, Mid},         // 0.015 + 0.01
		{"zcr bonus is capped", 0.05, 100, Mid},             // 0.05 + 0.02 (cap)
		{"capped bonus reaches active", 0.065, 100, Active}, // 0.065 + 0.02
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.energy, tt.zcr, th); got != tt.want {
				t.Errorf("Classify(%v, %v) = %v, want %v", tt.energy, tt.zcr, got, tt.want)
			}
		})
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig invalid: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero debounce", func(c *Config) { c.DebounceFrames = 0 }, "debounce_frames"},
		{"smoothing above one", func(c *Config) { c.SmoothingFactor = 1.5 }, "smoothing_factor"},
		{"inverted thresholds", func(c *Config) { c.Thresholds.HighEnergy = 0.01 }, "thresholds.high_energy"},
		{"negative window", func(c *Config) { c.PauseThresholdFrames = -3 }, "pause_threshold_frames"},
		{"zero multiplier", func(c *Config) { c.StrongSignalMultiplier = 0 }, "strong_signal_multiplier"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Expected ErrInvalidConfig, got %v", err)
			}
			var ce *ConfigError
			if !errors.As(err, &ce) || ce.Field != tt.field {
				t.Errorf("Expected field %q, got %v", tt.field, err)
			}
		})
	}
}

func TestNewSmoother_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DebounceFrames = -1
	if _, err := NewSmoother(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func newSmoother(t *testing.T, window int, factor float64) *Smoother {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DebounceFrames = window
	cfg.SmoothingFactor = factor
	s, err := NewSmoother(cfg)
	if err != nil {
		t.Fatalf("NewSmoother: %v", err)
	}
	return s
}

func TestSmoother_HoldsUntilWindowFull(t *testing.T) {
	s := newSmoother(t, 4, 0.5)

	for i := 0; i < 3; i++ {
		if got := s.Push(Active); got != Quiet {
			t.Fatalf("Push %d: level changed to %v before window filled", i+1, got)
		}
	}
	if got := s.Push(Active); got != Active {
		t.Errorf("Expected active once window full, got %v", got)
	}
}

func TestSmoother_RequiresConfidence(t *testing.T) {
	s := newSmoother(t, 4, 0.75)

	// 2/4 active is below 0.75
	for _, l := range []Level{Quiet, Active, Active, Mid} {
		s.Push(l)
	}
	if s.Current() != Quiet {
		t.Errorf("Expected hold at quiet with 50%% confidence, got %v", s.Current())
	}

	// 3/4 active meets 0.75
	if got := s.Push(Active); got != Active {
		t.Errorf("Expected active at 75%% confidence, got %v (confidence %.2f)", got, s.Confidence())
	}
}

func TestSmoother_SingleFrameFlickerIgnored(t *testing.T) {
	s := newSmoother(t, 3, 0.6)
	for i := 0; i < 3; i++ {
		s.Push(Active)
	}

	if got := s.Push(Quiet); got != Active {
		t.Errorf("Single quiet frame flipped level to %v", got)
	}
	if got := s.Push(Active); got != Active {
		t.Errorf("Expected active, got %v", got)
	}
}

func TestSmoother_TieBreaksByDeclarationOrder(t *testing.T) {
	s := newSmoother(t, 4, 0.5)
	for _, l := range []Level{Active, Active, Mid, Mid} {
		s.Push(l)
	}
	// Mid and Active tie at 2; Mid is declared first.
	if s.Current() != Mid {
		t.Errorf("Expected tie to resolve to mid, got %v", s.Current())
	}
}

func TestSmoother_Reset(t *testing.T) {
	s := newSmoother(t, 2, 0.5)
	s.Push(Active)
	s.Push(Active)

	s.Reset()
	if s.Current() != Quiet {
		t.Errorf("Expected quiet after reset, got %v", s.Current())
	}
	if got := s.Push(Active); got != Quiet {
		t.Errorf("Reset should require a fresh window, got %v", got)
	}
}

func newHistory(t *testing.T, mutate func(*Config)) *History {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	h, err := NewHistory(cfg)
	if err != nil {
		t.Fatalf("NewHistory: %v", err)
	}
	return h
}

// ZeroEnergyFrames of dead audio finishes speech.
func TestHistory_ZeroEnergyFinish(t *testing.T) {
	h := newHistory(t, func(c *Config) {
		c.ZeroEnergyFrames = 5
		c.FinishedThresholdFrames = 100
	})

	var res HistoryResult
	for f := int64(1); f <= 5; f++ {
		res = h.Update(Quiet, 0, f)
		if f < 5 && res.ShouldFinishSpeaking {
			t.Fatalf("Finished early on frame %d", f)
		}
	}

	if !res.ShouldFinishSpeaking || res.FinishReason != FinishZeroEnergy {
		t.Errorf("Expected zero_energy finish, got %+v", res)
	}

	// Counter resets after firing
	if res = h.Update(Quiet, 0, 6); res.ShouldFinishSpeaking {
		t.Errorf("Expected counter reset after zero-energy finish, got %+v", res)
	}
}

// FinishedThresholdFrames quiet levels with no subtitle shown.
func TestHistory_SustainedQuietFinish(t *testing.T) {
	h := newHistory(t, func(c *Config) {
		c.FinishedThresholdFrames = 6
		c.ZeroEnergyFrames = 1000
	})

	var res HistoryResult
	for f := int64(1); f <= 6; f++ {
		res = h.Update(Quiet, 0.01, f)
		if f < 6 && res.ShouldFinishSpeaking {
			t.Fatalf("Finished early on frame %d", f)
		}
	}
	if !res.ShouldFinishSpeaking || res.FinishReason != FinishSustainedQuiet {
		t.Fatalf("Expected sustained_quiet finish, got %+v", res)
	}
	if res.FramesSinceLastSubtitle != -1 {
		t.Errorf("Expected -1 frames since subtitle, got %d", res.FramesSinceLastSubtitle)
	}

	// Fires once per quiet run
	if res = h.Update(Quiet, 0.01, 7); res.ShouldFinishSpeaking {
		t.Errorf("Sustained quiet fired twice in one run")
	}

	// A non-quiet frame re-arms it
	h.Update(Active, 0.2, 8)
	if h.InSustainedQuiet() {
		t.Error("Expected sustained-quiet flag cleared by activity")
	}
	if h.LastActiveFrame() != 8 {
		t.Errorf("Expected last active frame 8, got %d", h.LastActiveFrame())
	}
}

func TestHistory_SustainedQuietWaitsForSubtitle(t *testing.T) {
	h := newHistory(t, func(c *Config) {
		c.FinishedThresholdFrames = 3
		c.MinFramesAfterSubtitle = 10
		c.ZeroEnergyFrames = 1000
	})
	h.MarkSubtitle(0)

	for f := int64(1); f < 10; f++ {
		if res := h.Update(Quiet, 0.01, f); res.ShouldFinishSpeaking {
			t.Fatalf("Finished on frame %d, only %d frames after subtitle", f, res.FramesSinceLastSubtitle)
		}
	}
	res := h.Update(Quiet, 0.01, 10)
	if !res.ShouldFinishSpeaking || res.FinishReason != FinishSustainedQuiet {
		t.Errorf("Expected finish once subtitle settled, got %+v", res)
	}
}

func TestHistory_ZeroEnergyTakesPrecedence(t *testing.T) {
	h := newHistory(t, func(c *Config) {
		c.FinishedThresholdFrames = 4
		c.ZeroEnergyFrames = 4
	})

	var res HistoryResult
	for f := int64(1); f <= 4; f++ {
		res = h.Update(Quiet, 0, f)
	}
	if !res.ShouldFinishSpeaking || res.FinishReason != FinishZeroEnergy {
		t.Errorf("Expected zero_energy to win same-frame finish, got %+v", res)
	}
}

func TestHistory_PauseCheckIsEdge(t *testing.T) {
	h := newHistory(t, func(c *Config) { c.PauseThresholdFrames = 3 })

	fired := 0
	for f := int64(1); f <= 10; f++ {
		if h.Update(Quiet, 0.001, f).ShouldTriggerPauseCheck {
			fired++
			if f != 3 {
				t.Errorf("Pause check fired on frame %d, want 3", f)
			}
		}
	}
	if fired != 1 {
		t.Errorf("Expected pause check once per run, fired %d times", fired)
	}

	// Loud frame resets the run
	h.Update(Active, 0.5, 11)
	for f := int64(12); f <= 14; f++ {
		if res := h.Update(Quiet, 0.001, f); res.ShouldTriggerPauseCheck != (f == 14) {
			t.Errorf("Frame %d: pause check = %v", f, res.ShouldTriggerPauseCheck)
		}
	}
}

// A strong signal exactly minIdleDuration frames after idle.
func TestHistory_ResumeFromIdle(t *testing.T) {
	h := newHistory(t, func(c *Config) {
		c.MinIdleDuration = 10
		c.Thresholds.HighEnergy = 0.1
		c.StrongSignalMultiplier = 2
	})
	h.MarkIdle(100)

	strong := 0.25 // > 0.1 * 2

	if res := h.Update(Active, strong, 109); res.ShouldResumeFromIdle {
		t.Error("Resumed one frame before minIdleDuration")
	}
	if res := h.Update(Active, strong, 110); !res.ShouldResumeFromIdle {
		t.Error("Expected resume at exactly minIdleDuration")
	}
	if res := h.Update(Active, 0.15, 111); res.ShouldResumeFromIdle {
		t.Error("Resumed on signal below strong threshold")
	}
	if res := h.Update(Quiet, strong, 112); res.ShouldResumeFromIdle {
		t.Error("Resumed on quiet level")
	}
}

func TestHistory_NoResumeWithoutIdleStart(t *testing.T) {
	h := newHistory(t, nil)
	if res := h.Update(Active, 10, 1000); res.ShouldResumeFromIdle {
		t.Error("Resumed without a recorded idle start")
	}
}

func TestHistory_RecentActivityBounded(t *testing.T) {
	h := newHistory(t, func(c *Config) { c.PauseThresholdFrames = 4 })
	for f := int64(0); f < 20; f++ {
		h.Update(Level(f%3), 0.05, f)
		if n := len(h.RecentActivity()); n > 4 {
			t.Fatalf("Recent activity length %d exceeds capacity 4", n)
		}
	}
	got := h.RecentActivity()
	want := []Level{Mid, Active, Quiet, Mid} // frames 16..19
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("RecentActivity[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestHistory_Reset(t *testing.T) {
	h := newHistory(t, func(c *Config) { c.FinishedThresholdFrames = 3 })
	h.MarkSubtitle(5)
	h.MarkIdle(5)
	h.Update(Quiet, 0.01, 6)
	h.Update(Quiet, 0.01, 7)

	h.Reset()
	h.Reset()

	res := h.Update(Quiet, 0.01, 8)
	if res.FramesSinceLastSubtitle != -1 {
		t.Errorf("Expected subtitle mark cleared, got %d", res.FramesSinceLastSubtitle)
	}
	if res.ShouldFinishSpeaking {
		t.Error("Quiet counter survived reset")
	}
	if h.LastActiveFrame() != -1 {
		t.Errorf("Expected last active frame cleared, got %d", h.LastActiveFrame())
	}
	if len(h.RecentActivity()) != 1 {
		t.Errorf("Expected one recent level after reset, got %d", len(h.RecentActivity()))
	}
}
