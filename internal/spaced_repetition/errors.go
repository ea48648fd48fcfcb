package spaced_repetition

import "errors"

// Sentinel errors; check with errors.Is.
var (
	ErrInvalidRating = errors.New("spaced_repetition: invalid rating")
	ErrInvalidConfig = errors.New("spaced_repetition: invalid config")
)
