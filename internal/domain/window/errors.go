package window

import "errors"

// Sentinel kinds for window errors.
var (
	ErrInvalidRange  = errors.New("invalid date range")
	ErrUnknownWindow = errors.New("unknown window")
)
