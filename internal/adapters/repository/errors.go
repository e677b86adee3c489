package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrNoResults    = errors.New("no stored results")
	ErrNoSnapshot   = errors.New("no saved window")
	ErrInvalidLimit = errors.New("invalid limit")

	// ErrStaleSnapshot means a day the window already covers was
	// replaced after the window was saved.
	ErrStaleSnapshot = errors.New("stale window snapshot")
)
