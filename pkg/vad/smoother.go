package vad

import "github.com/teslashibe/go-avatar/pkg/ring"

// Smoother debounces classifier output. The reported level only changes
// once a different level dominates a full window with enough confidence.
type Smoother struct {
	window  int
	factor  float64
	history *ring.Bytes
	current Level

	lastConfidence float64
}

// NewSmoother creates a smoother from cfg.DebounceFrames and cfg.SmoothingFactor.
func NewSmoother(cfg Config) (*Smoother, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	history, err := ring.NewBytes(cfg.DebounceFrames)
	if err != nil {
		return nil, err
	}
	return &Smoother{
		window:  cfg.DebounceFrames,
		factor:  cfg.SmoothingFactor,
		history: history,
		current: Quiet,
	}, nil
}

// Push records a new sample and returns the stable level.
func (s *Smoother) Push(level Level) Level {
	s.history.Push(byte(level))

	if s.history.Len() < s.window {
		return s.current
	}

	dominant, count := s.dominant()
	s.lastConfidence = float64(count) / float64(s.window)

	if dominant != s.current && s.lastConfidence >= s.factor {
		s.current = dominant
	}
	return s.current
}

// dominant returns the most frequent level; ties go to the earliest
// declared level.
func (s *Smoother) dominant() (Level, int) {
	var counts [len(Levels)]int
	for _, b := range s.history.Values() {
		if int(b) < len(counts) {
			counts[b]++
		}
	}

	best, bestCount := Quiet, -1
	for _, l := range Levels {
		if counts[l] > bestCount {
			best, bestCount = l, counts[l]
		}
	}
	return best, bestCount
}

// Current returns the stable level without recording a sample.
func (s *Smoother) Current() Level {
	return s.current
}

// Confidence returns the dominant-level confidence from the last full window.
func (s *Smoother) Confidence() float64 {
	return s.lastConfidence
}

// Reset clears the history and returns to Quiet.
func (s *Smoother) Reset() {
	s.history.Reset()
	s.current = Quiet
	s.lastConfidence = 0
}
