// Package vad classifies per-frame voice activity and tracks the speech
// history used to decide when an utterance has finished.
//
// The pipeline is Classify → Smoother → History: the classifier maps one
// frame to a coarse Level, the smoother debounces it over a short window,
// and the history turns the smoothed stream into pause, finish, and resume
// signals.
package vad

import (
	"fmt"
	"math"
)

// Level is a coarse voice activity level. Declaration order matters: the
// smoother breaks frequency ties in this order.
type Level uint8

const (
	Quiet Level = iota
	Mid
	Active
)

// Levels lists every level in declaration order.
var Levels = [...]Level{Quiet, Mid, Active}

// String returns a human-readable level name.
func (l Level) String() string {
	switch l {
	case Quiet:
		return "quiet"
	case Mid:
		return "mid"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	switch string(text) {
	case "quiet":
		*l = Quiet
	case "mid":
		*l = Mid
	case "active":
		*l = Active
	default:
		return fmt.Errorf("unknown level %q", text)
	}
	return nil
}

// Classify maps one frame's energy and zero-crossing rate to a Level.
// True silence short-circuits to Quiet. Otherwise zcr adds a capped bonus
// to energy before comparing against the thresholds.
func Classify(energy, zcr float64, th Thresholds) Level {
	if energy == 0 {
		return Quiet
	}

	adjusted := energy + math.Min(zcr*th.ZCRWeight, th.ZCRMaxContribution)
	switch {
	case adjusted <= th.LowEnergy:
		return Quiet
	case adjusted >= th.HighEnergy:
		return Active
	default:
		return Mid
	}
}
