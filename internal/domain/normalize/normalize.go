// Package normalize turns a raw daily leaderboard into ranked results.
package normalize

import (
	"fmt"
	"sort"
	"time"

	"github.com/okian/minirank/internal/domain/model"
)

// Rank sorts a day's entries ascending by elapsed time and assigns ranks.
//
// Equal times share the rank of the first of them, so a tie for first
// yields 1, 1 and the next distinct time gets 3. The sort is stable, so
// tied players keep their input order. The input slice is not modified.
func Rank(day time.Time, entries []model.Entry) ([]model.RankedResult, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s: %w", day.Format(time.DateOnly), ErrEmptyLeaderboard)
	}

	seen := make(map[string]struct{}, len(entries))
	sorted := make([]model.Entry, len(entries))
	copy(sorted, entries)
	for _, e := range sorted {
		if e.Player == "" || e.Seconds < 0 {
			return nil, fmt.Errorf("%s: player %q seconds %d: %w",
				day.Format(time.DateOnly), e.Player, e.Seconds, ErrInvalidEntry)
		}
		if _, dup := seen[e.Player]; dup {
			return nil, fmt.Errorf("%s: player %q: %w", day.Format(time.DateOnly), e.Player, ErrDuplicatePlayer)
		}
		seen[e.Player] = struct{}{}
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Seconds < sorted[j].Seconds
	})

	out := make([]model.RankedResult, len(sorted))
	rank := 0
	for i, e := range sorted {
		if i == 0 || e.Seconds != sorted[i-1].Seconds {
			rank = i + 1
		}
		out[i] = model.RankedResult{Day: day, Player: e.Player, Seconds: e.Seconds, Rank: rank}
	}
	return out, nil
}

// DropUnsolved removes entries without a positive solve time. The remote
// leaderboard lists friends who opened the puzzle but never finished it.
func DropUnsolved(entries []model.Entry) []model.Entry {
	out := make([]model.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Seconds > 0 {
			out = append(out, e)
		}
	}
	return out
}

// Entries strips ranks back to raw entries, in rank order.
func Entries(results []model.RankedResult) []model.Entry {
	out := make([]model.Entry, len(results))
	for i, r := range results {
		out[i] = model.Entry{Player: r.Player, Seconds: r.Seconds}
	}
	return out
}
