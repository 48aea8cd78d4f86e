package average

import "errors"

var (
	// ErrNoValues indicates an averaging call received no samples.
	ErrNoValues = errors.New("no values to average")
)
