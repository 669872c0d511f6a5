package vad

// Thresholds holds the classifier constants.
type Thresholds struct {
	LowEnergy          float64 `mapstructure:"low_energy" json:"low_energy"`                     // adjusted energy ≤ this is quiet
	HighEnergy         float64 `mapstructure:"high_energy" json:"high_energy"`                   // adjusted energy ≥ this is active
	ZCRWeight          float64 `mapstructure:"zcr_weight" json:"zcr_weight"`                     // zcr multiplier for the energy bonus
	ZCRMaxContribution float64 `mapstructure:"zcr_max_contribution" json:"zcr_max_contribution"` // cap on the zcr bonus
}

// Config holds all tunable parameters for voice activity detection,
// smoothing, and pause/finish detection. Frame counts assume the caller's
// tick rate (24-30 Hz).
type Config struct {
	Thresholds Thresholds `mapstructure:"thresholds" json:"thresholds"`

	// Smoothing
	DebounceFrames  int     `mapstructure:"debounce_frames" json:"debounce_frames"`   // history length before a change is considered
	SmoothingFactor float64 `mapstructure:"smoothing_factor" json:"smoothing_factor"` // required dominant-level confidence (0-1]

	// Pause and finish detection
	PauseEnergyThreshold    float64 `mapstructure:"pause_energy_threshold" json:"pause_energy_threshold"`
	PauseThresholdFrames    int     `mapstructure:"pause_threshold_frames" json:"pause_threshold_frames"`
	FinishedThresholdFrames int     `mapstructure:"finished_threshold_frames" json:"finished_threshold_frames"`
	ZeroEnergyFrames        int     `mapstructure:"zero_energy_frames" json:"zero_energy_frames"`
	ZeroEnergyEpsilon       float64 `mapstructure:"zero_energy_epsilon" json:"zero_energy_epsilon"`
	MinFramesAfterSubtitle  int     `mapstructure:"min_frames_after_subtitle" json:"min_frames_after_subtitle"`

	// Hysteresis recovery from idle
	MinIdleDuration        int     `mapstructure:"min_idle_duration" json:"min_idle_duration"`
	StrongSignalMultiplier float64 `mapstructure:"strong_signal_multiplier" json:"strong_signal_multiplier"`
}

// DefaultConfig returns the recommended configuration at ~30 frames per second
func DefaultConfig() Config {
	return Config{
		Thresholds: Thresholds{
			LowEnergy:          0.02,
			HighEnergy:         0.08,
			ZCRWeight:          0.05,
			ZCRMaxContribution: 0.02,
		},

		// Smoothing - 100ms window, 2 of 3 frames must agree
		DebounceFrames:  3,
		SmoothingFactor: 0.6,

		// Pause and finish
		PauseEnergyThreshold:    0.015,
		PauseThresholdFrames:    8,  // ~270ms
		FinishedThresholdFrames: 30, // ~1s of quiet
		ZeroEnergyFrames:        15, // ~500ms of dead audio
		ZeroEnergyEpsilon:       1e-6,
		MinFramesAfterSubtitle:  20,

		// Hysteresis
		MinIdleDuration:        10,
		StrongSignalMultiplier: 1.5,
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	th := c.Thresholds
	switch {
	case th.LowEnergy < 0:
		return configError("thresholds.low_energy", "must be >= 0")
	case th.HighEnergy <= th.LowEnergy:
		return configError("thresholds.high_energy", "must be greater than low_energy")
	case th.ZCRWeight < 0:
		return configError("thresholds.zcr_weight", "must be >= 0")
	case th.ZCRMaxContribution < 0:
		return configError("thresholds.zcr_max_contribution", "must be >= 0")
	case c.DebounceFrames < 1:
		return configError("debounce_frames", "must be >= 1")
	case c.SmoothingFactor <= 0 || c.SmoothingFactor > 1:
		return configError("smoothing_factor", "must be in (0, 1]")
	case c.PauseEnergyThreshold < 0:
		return configError("pause_energy_threshold", "must be >= 0")
	case c.PauseThresholdFrames < 1:
		return configError("pause_threshold_frames", "must be >= 1")
	case c.FinishedThresholdFrames < 1:
		return configError("finished_threshold_frames", "must be >= 1")
	case c.ZeroEnergyFrames < 1:
		return configError("zero_energy_frames", "must be >= 1")
	case c.ZeroEnergyEpsilon < 0:
		return configError("zero_energy_epsilon", "must be >= 0")
	case c.MinFramesAfterSubtitle < 0:
		return configError("min_frames_after_subtitle", "must be >= 0")
	case c.MinIdleDuration < 0:
		return configError("min_idle_duration", "must be >= 0")
	case c.StrongSignalMultiplier <= 0:
		return configError("strong_signal_multiplier", "must be > 0")
	}
	return nil
}
