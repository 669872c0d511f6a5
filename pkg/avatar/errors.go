package avatar

import "errors"

var (
	// ErrInvalidConfig is returned when an avatar-level setting is out of range.
	ErrInvalidConfig = errors.New("avatar: invalid config")

	// ErrNoEmotions is returned by New when no emotion lookup is supplied.
	ErrNoEmotions = errors.New("avatar: emotion lookup is required")
)
