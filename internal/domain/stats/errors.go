package stats

import "errors"

// ErrMissingSkillState means counters and skill state were built over
// different day ranges.
var ErrMissingSkillState = errors.New("missing skill state")
