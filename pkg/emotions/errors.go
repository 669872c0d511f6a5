package emotions

import "errors"

var (
	// ErrNotFound is returned when an emotion tag has no image set.
	ErrNotFound = errors.New("emotion not found")

	// ErrDefaultMissing is returned when even the default emotion cannot be
	// resolved. It means the asset registry is incomplete.
	ErrDefaultMissing = errors.New("default emotion not found")

	// ErrInvalidEmotion is returned when a manifest entry is malformed.
	ErrInvalidEmotion = errors.New("invalid emotion data")

	// ErrInvalidTag is returned when a string is not a bracketed emotion tag.
	ErrInvalidTag = errors.New("invalid emotion tag")
)
