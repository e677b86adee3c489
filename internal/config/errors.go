package config

import (
	"errors"
)

// Sentinel error kinds for this package. Validation failures always wrap
// ErrInvalidConfig; the narrower kinds below are wrapped alongside it.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")

	// ErrUnknownStore names a store backend other than memory, sqlite or
	// postgres.
	ErrUnknownStore    = errors.New("unknown store backend")
	// ErrUnknownTimezone means the puzzle timezone could not be loaded.
	ErrUnknownTimezone = errors.New("unknown timezone")
)
