// Package emotions maps emotion tags to the avatar's four canonical frame images.
//
// Every emotion has one image per combination of eyes (open/closed) and
// mouth (open/closed). Image sets are loaded from JSON manifests, either the
// embedded default set or a custom directory, and looked up by tag.
package emotions

// ImageSet holds the four visual variants of one emotion.
type ImageSet struct {
	// Tag is the bare emotion identifier (e.g. "happy").
	Tag string `json:"tag"`

	// Description explains when the emotion is used.
	Description string `json:"description,omitempty"`

	EyesOpenMouthOpen     string `json:"eyes_open_mouth_open"`
	EyesOpenMouthClosed   string `json:"eyes_open_mouth_closed"`
	EyesClosedMouthOpen   string `json:"eyes_closed_mouth_open"`
	EyesClosedMouthClosed string `json:"eyes_closed_mouth_closed"`
}

// Image returns the asset reference for the given eye and mouth state.
func (s ImageSet) Image(eyesClosed, mouthClosed bool) string {
	switch {
	case eyesClosed && mouthClosed:
		return s.EyesClosedMouthClosed
	case eyesClosed:
		return s.EyesClosedMouthOpen
	case mouthClosed:
		return s.EyesOpenMouthClosed
	default:
		return s.EyesOpenMouthOpen
	}
}

// Complete reports whether all four variants are set.
func (s ImageSet) Complete() bool {
	return s.EyesOpenMouthOpen != "" && s.EyesOpenMouthClosed != "" &&
		s.EyesClosedMouthOpen != "" && s.EyesClosedMouthClosed != ""
}

// Selector identifies one frame image before it is resolved to an asset.
type Selector struct {
	Emotion     string `json:"emotion"`
	EyesClosed  bool   `json:"eyes_closed"`
	MouthClosed bool   `json:"mouth_closed"`
}

// Manifest is the on-disk JSON structure of an image set file.
type Manifest struct {
	// BaseURL is prefixed to every relative image reference.
	BaseURL string `json:"base_url,omitempty"`

	// DefaultTag is the fallback emotion for this manifest.
	DefaultTag string `json:"default_tag,omitempty"`

	Emotions []ImageSet `json:"emotions"`
}

// Lookup resolves a tag to its image set.
type Lookup interface {
	Get(tag string) (ImageSet, error)
}
