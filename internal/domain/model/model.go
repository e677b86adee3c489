// Package model contains domain models passed between layers.
package model

import (
	"sort"
	"time"
)

// conservativeSigmas is how many standard deviations the derived score
// subtracts from the mean.
const conservativeSigmas = 3

// Entry is one raw leaderboard line for a day, before ranking.
type Entry struct {
	Player  string
	Seconds int
}

// RankedResult is a player's result on a day with its derived rank.
// Rank 1 is best; equal times share the rank of the first of them.
type RankedResult struct {
	Day     time.Time
	Player  string
	Seconds int
	Rank    int
}

// SkillState is the mean and uncertainty of a player's latent skill.
type SkillState struct {
	Mu    float64 `json:"mu"`
	Sigma float64 `json:"sigma"`
}

// ConservativeScore returns (mu - 3*sigma) * scale.
func (s SkillState) ConservativeScore(scale float64) float64 {
	return (s.Mu - conservativeSigmas*s.Sigma) * scale
}

// Counters are the running per-player totals folded by the aggregator.
type Counters struct {
	Played    int   `json:"num_played"`
	Wins      int   `json:"num_wins"`
	TotalTime int64 `json:"total_time"`
}

// AverageTime returns TotalTime / Played. Callers must not ask for it
// before the first play.
func (c Counters) AverageTime() float64 {
	return float64(c.TotalTime) / float64(c.Played)
}

// AggregateRow is one player's line in a window leaderboard.
type AggregateRow struct {
	Player      string  `json:"player"`
	Mu          float64 `json:"mu"`
	Sigma       float64 `json:"sigma"`
	Score       float64 `json:"score"`
	AverageTime float64 `json:"average_time"`
	TotalTime   int64   `json:"total_time"`
	NumPlayed   int     `json:"num_played"`
	NumWins     int     `json:"num_wins"`
}

// Skill returns the row's skill state.
func (r AggregateRow) Skill() SkillState {
	return SkillState{Mu: r.Mu, Sigma: r.Sigma}
}

// Counters returns the row's counters.
func (r AggregateRow) Counters() Counters {
	return Counters{Played: r.NumPlayed, Wins: r.NumWins, TotalTime: r.TotalTime}
}

// SortRows orders rows by score desc, then player asc.
func SortRows(rows []AggregateRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].Player < rows[j].Player
	})
}

// Snapshot is the accumulated state of a window through a given day.
// A zero Through means nothing has been accumulated yet.
type Snapshot struct {
	Through  time.Time
	Skills   map[string]SkillState
	Counters map[string]Counters
}

// IsZero reports whether the snapshot carries no state.
func (s Snapshot) IsZero() bool {
	return s.Through.IsZero() && len(s.Skills) == 0 && len(s.Counters) == 0
}

// Clone deep-copies the snapshot maps.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Through:  s.Through,
		Skills:   make(map[string]SkillState, len(s.Skills)),
		Counters: make(map[string]Counters, len(s.Counters)),
	}
	for k, v := range s.Skills {
		out.Skills[k] = v
	}
	for k, v := range s.Counters {
		out.Counters[k] = v
	}
	return out
}

// SnapshotFromRows rebuilds a snapshot from persisted window rows.
func SnapshotFromRows(through time.Time, rows []AggregateRow) Snapshot {
	s := Snapshot{
		Through:  through,
		Skills:   make(map[string]SkillState, len(rows)),
		Counters: make(map[string]Counters, len(rows)),
	}
	for _, r := range rows {
		s.Skills[r.Player] = r.Skill()
		s.Counters[r.Player] = r.Counters()
	}
	return s
}

// WindowOutput is the complete, authoritative result of one window run.
type WindowOutput struct {
	Window  string
	Through time.Time
	Rows    []AggregateRow
}
