package mouth

import (
	"errors"
	"fmt"
)

// Weights combines frame features into a single mouth intensity.
type Weights struct {
	Energy           float64 `mapstructure:"energy" json:"energy"`
	ZeroCrossingRate float64 `mapstructure:"zcr" json:"zcr"`
	SpectralCentroid float64 `mapstructure:"spectral_centroid" json:"spectral_centroid"`
	HighFreqEnergy   float64 `mapstructure:"high_freq_energy" json:"high_freq_energy"`
}

// Config holds all tunable parameters for the mouth controller.
type Config struct {
	// Thresholds
	CloseThreshold float64 `mapstructure:"close_threshold" json:"close_threshold"` // energy ≤ this always closes
	OpenThreshold  float64 `mapstructure:"open_threshold" json:"open_threshold"`   // initial adaptive threshold

	// Adaptive threshold
	EnergyHistoryWindow        int     `mapstructure:"energy_history_window" json:"energy_history_window"`
	MinEnergyValuesForAdaptive int     `mapstructure:"min_energy_values_for_adaptive" json:"min_energy_values_for_adaptive"`
	AdaptiveThresholdFactor    float64 `mapstructure:"adaptive_threshold_factor" json:"adaptive_threshold_factor"`

	// Energy-drop detection
	RecentAvgWindow      int     `mapstructure:"recent_avg_window" json:"recent_avg_window"`
	OlderAvgWindow       int     `mapstructure:"older_avg_window" json:"older_avg_window"`
	EnergyDropMultiplier float64 `mapstructure:"energy_drop_multiplier" json:"energy_drop_multiplier"`
	MicroPauseThreshold  float64 `mapstructure:"micro_pause_threshold" json:"micro_pause_threshold"`

	// Forced decay on long openings
	MaxOpenFrames        int     `mapstructure:"max_open_frames" json:"max_open_frames"`
	DecayRate            float64 `mapstructure:"decay_rate" json:"decay_rate"` // per-frame multiplier (0-1)
	DecayClosedThreshold float64 `mapstructure:"decay_closed_threshold" json:"decay_closed_threshold"`

	Weights Weights `mapstructure:"weights" json:"weights"`
}

// DefaultConfig returns the recommended configuration at ~30 frames per second
func DefaultConfig() Config {
	return Config{
		CloseThreshold: 0.02,
		OpenThreshold:  0.05,

		EnergyHistoryWindow:        20, // ~650ms
		MinEnergyValuesForAdaptive: 8,
		AdaptiveThresholdFactor:    0.6,

		RecentAvgWindow:      3,
		OlderAvgWindow:       6,
		EnergyDropMultiplier: 0.5, // recent < half of older = syllable gap
		MicroPauseThreshold:  0.03,

		MaxOpenFrames:        12, // ~400ms before forcing a close
		DecayRate:            0.7,
		DecayClosedThreshold: 0.3,

		Weights: Weights{
			Energy:           0.7,
			ZeroCrossingRate: 0.05,
			SpectralCentroid: 0.05,
			HighFreqEnergy:   0.2,
		},
	}
}

// ErrInvalidConfig is returned when a configuration value is out of range.
var ErrInvalidConfig = errors.New("mouth: invalid config")

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	w := c.Weights
	switch {
	case c.CloseThreshold < 0:
		return invalid("close_threshold", "must be >= 0")
	case c.OpenThreshold < c.CloseThreshold:
		return invalid("open_threshold", "must be >= close_threshold")
	case c.EnergyHistoryWindow < 1:
		return invalid("energy_history_window", "must be >= 1")
	case c.MinEnergyValuesForAdaptive < 1:
		return invalid("min_energy_values_for_adaptive", "must be >= 1")
	case c.AdaptiveThresholdFactor <= 0:
		return invalid("adaptive_threshold_factor", "must be > 0")
	case c.RecentAvgWindow < 1:
		return invalid("recent_avg_window", "must be >= 1")
	case c.OlderAvgWindow < 1:
		return invalid("older_avg_window", "must be >= 1")
	case c.EnergyDropMultiplier < 0:
		return invalid("energy_drop_multiplier", "must be >= 0")
	case c.MicroPauseThreshold < 0:
		return invalid("micro_pause_threshold", "must be >= 0")
	case c.MaxOpenFrames < 1:
		return invalid("max_open_frames", "must be >= 1")
	case c.DecayRate <= 0 || c.DecayRate >= 1:
		return invalid("decay_rate", "must be in (0, 1)")
	case c.DecayClosedThreshold <= 0 || c.DecayClosedThreshold >= 1:
		return invalid("decay_closed_threshold", "must be in (0, 1)")
	case w.Energy < 0 || w.ZeroCrossingRate < 0 || w.SpectralCentroid < 0 || w.HighFreqEnergy < 0:
		return invalid("weights", "must be >= 0")
	}
	return nil
}

func invalid(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidConfig, field, reason)
}
