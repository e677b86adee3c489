package normalize

import "errors"

// Sentinel kinds for normalization errors.
var (
	ErrEmptyLeaderboard = errors.New("empty leaderboard")
	ErrInvalidEntry     = errors.New("invalid leaderboard entry")
	ErrDuplicatePlayer  = errors.New("duplicate player in leaderboard")
)
