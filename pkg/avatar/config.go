package avatar

import (
	"fmt"
	"sort"
	"time"

	"github.com/teslashibe/go-avatar/pkg/blink"
	"github.com/teslashibe/go-avatar/pkg/emotions"
	"github.com/teslashibe/go-avatar/pkg/mouth"
	"github.com/teslashibe/go-avatar/pkg/vad"
)

// Config aggregates every tunable of one avatar.
type Config struct {
	VAD   vad.Config   `mapstructure:"vad" json:"vad"`
	Mouth mouth.Config `mapstructure:"mouth" json:"mouth"`
	Blink blink.Config `mapstructure:"blink" json:"blink"`

	// DefaultEmotion is rendered before the first utterance and whenever a
	// tag cannot be resolved. Empty uses the emotion registry's default tag.
	DefaultEmotion string `mapstructure:"default_emotion" json:"default_emotion"`

	// EmojiDurationFrames bounds overlays requested through a message
	// emoji reference. Zero keeps them until the avatar goes idle.
	EmojiDurationFrames int `mapstructure:"emoji_duration_frames" json:"emoji_duration_frames"`
}

// DefaultConfig returns the recommended configuration at ~30 frames per second.
func DefaultConfig() Config {
	return Config{
		VAD:                 vad.DefaultConfig(),
		Mouth:               mouth.DefaultConfig(),
		Blink:               blink.DefaultConfig(),
		EmojiDurationFrames: 60,
	}
}

// CalmConfig holds speech longer before finishing and blinks less often.
func CalmConfig() Config {
	cfg := DefaultConfig()
	cfg.VAD.DebounceFrames = 4
	cfg.VAD.SmoothingFactor = 0.75
	cfg.VAD.FinishedThresholdFrames = 45
	cfg.VAD.MinIdleDuration = 15

	cfg.Mouth.AdaptiveThresholdFactor = 0.7
	cfg.Mouth.MaxOpenFrames = 10

	cfg.Blink.Idle.Interval = blink.Timing{Base: 5 * time.Second, Variance: 1500 * time.Millisecond}
	cfg.Blink.Speaking.Interval = blink.Timing{Base: 3500 * time.Millisecond, Variance: time.Second}
	cfg.Blink.Speaking.Probabilities = blink.Probabilities{Slow: 0.4, Fast: 0.5, Double: 0.1}
	return cfg
}

// ExpressiveConfig reacts faster and animates more.
func ExpressiveConfig() Config {
	cfg := DefaultConfig()
	cfg.VAD.DebounceFrames = 2
	cfg.VAD.SmoothingFactor = 1
	cfg.VAD.FinishedThresholdFrames = 24

	cfg.Mouth.OpenThreshold = 0.04
	cfg.Mouth.AdaptiveThresholdFactor = 0.5
	cfg.Mouth.MaxOpenFrames = 15

	cfg.Blink.Speaking.Interval = blink.Timing{Base: 2 * time.Second, Variance: 800 * time.Millisecond}
	cfg.Blink.Speaking.Probabilities = blink.Probabilities{Slow: 0.1, Fast: 0.6, Double: 0.3}
	cfg.EmojiDurationFrames = 90
	return cfg
}

var presets = map[string]func() Config{
	"default":    DefaultConfig,
	"calm":       CalmConfig,
	"expressive": ExpressiveConfig,
}

// Preset returns a named configuration.
func Preset(name string) (Config, error) {
	fn, ok := presets[name]
	if !ok {
		return Config{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, name)
	}
	return fn(), nil
}

// Presets returns the available preset names, sorted.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks every section of the configuration.
func (c Config) Validate() error {
	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("avatar: %w", err)
	}
	if err := c.Mouth.Validate(); err != nil {
		return fmt.Errorf("avatar: %w", err)
	}
	if err := c.Blink.Validate(); err != nil {
		return fmt.Errorf("avatar: %w", err)
	}
	if c.DefaultEmotion != "" && emotions.Normalize(c.DefaultEmotion) == "" {
		return fmt.Errorf("%w: default_emotion %q is not a valid tag", ErrInvalidConfig, c.DefaultEmotion)
	}
	if c.EmojiDurationFrames < 0 {
		return fmt.Errorf("%w: emoji_duration_frames must be >= 0", ErrInvalidConfig)
	}
	return nil
}
