// Package secondary chooses reaction animations (emoji or short clips) for
// conversational turns.
//
// Each emotion tag maps to a weighted list of animations plus an "empty"
// weight for playing nothing. A selector draws from that list at most once
// per turn.
package secondary

import "errors"

// Entry is one registered reaction animation.
type Entry struct {
	AssetRef string  `json:"asset_ref"`
	Weight   float64 `json:"weight"`

	// DurationFrames bounds how long the animation stays active. Zero keeps
	// it active until the avatar goes idle.
	DurationFrames int `json:"duration_frames,omitempty"`
}

// Set is the weighted animation table for one emotion tag.
type Set struct {
	Tag         string  `json:"tag"`
	EmptyWeight float64 `json:"empty_weight"`
	Entries     []Entry `json:"entries"`
}

// TotalWeight returns the empty weight plus every entry weight.
func (s Set) TotalWeight() float64 {
	total := s.EmptyWeight
	for _, e := range s.Entries {
		total += e.Weight
	}
	return total
}

// Registry looks up the animation table for a tag.
type Registry interface {
	Lookup(tag string) (Set, bool)
}

// Rand draws uniform values in [0, 1).
type Rand interface {
	Float64() float64
}

// Selection is the outcome of one draw.
type Selection struct {
	// Tag is the table the draw was made from, after fallback.
	Tag string `json:"tag,omitempty"`

	// AssetRef is empty when the draw chose no animation.
	AssetRef       string `json:"asset_ref,omitempty"`
	DurationFrames int    `json:"duration_frames,omitempty"`
}

// Empty reports whether no animation was chosen.
func (s Selection) Empty() bool {
	return s.AssetRef == ""
}

var (
	// ErrInvalidSet is returned when a manifest entry is malformed.
	ErrInvalidSet = errors.New("secondary: invalid animation set")
)
