package testevents

import (
	"errors"
	"fmt"

	"github.com/okian/minirank/internal/domain/model"
)

// ErrInconsistentRows is returned when leaderboard rows break a counter
// or ordering rule.
var ErrInconsistentRows = errors.New("inconsistent leaderboard rows")

// VerifyRows checks the rules every window output must hold: at least
// one play per row, wins within plays, exact average time, positive
// sigma, unique players and score-then-player ordering.
func VerifyRows(rows []model.AggregateRow) error {
	seen := make(map[string]struct{}, len(rows))
	for i, r := range rows {
		if _, dup := seen[r.Player]; dup {
			return fmt.Errorf("row %d: player %q repeated: %w", i, r.Player, ErrInconsistentRows)
		}
		seen[r.Player] = struct{}{}

		if r.NumPlayed <= 0 {
			return fmt.Errorf("row %d: %q has no plays: %w", i, r.Player, ErrInconsistentRows)
		}
		if r.NumWins > r.NumPlayed {
			return fmt.Errorf("row %d: %q wins %d > played %d: %w", i, r.Player, r.NumWins, r.NumPlayed, ErrInconsistentRows)
		}
		if r.AverageTime != float64(r.TotalTime)/float64(r.NumPlayed) {
			return fmt.Errorf("row %d: %q average %v: %w", i, r.Player, r.AverageTime, ErrInconsistentRows)
		}
		if !(r.Sigma > 0) {
			return fmt.Errorf("row %d: %q sigma %v: %w", i, r.Player, r.Sigma, ErrInconsistentRows)
		}
		if i > 0 {
			prev := rows[i-1]
			if prev.Score < r.Score || (prev.Score == r.Score && prev.Player > r.Player) {
				return fmt.Errorf("row %d: %q out of order: %w", i, r.Player, ErrInconsistentRows)
			}
		}
	}
	return nil
}
