// Package types contains wire shapes shared by the API and the cache.
package types

import (
	"github.com/okian/minirank/internal/domain/model"
	"github.com/okian/minirank/pkg/dateutil"
)

// Entry is one positioned leaderboard row.
type Entry struct {
	Rank        int     `json:"rank"`
	Player      string  `json:"player"`
	Score       float64 `json:"score"`
	Mu          float64 `json:"mu"`
	Sigma       float64 `json:"sigma"`
	AverageTime float64 `json:"average_time"`
	TotalTime   int64   `json:"total_time"`
	NumPlayed   int     `json:"num_played"`
	NumWins     int     `json:"num_wins"`
}

// Leaderboard is a window's rows as served.
type Leaderboard struct {
	Window  string  `json:"window"`
	Through string  `json:"through,omitempty"`
	Entries []Entry `json:"entries"`
}

// Result is one daily result as served.
type Result struct {
	Date    string `json:"date"`
	Player  string `json:"player"`
	Seconds int    `json:"seconds"`
	Rank    int    `json:"rank"`
}

// NewEntry positions a row at rank.
func NewEntry(rank int, r model.AggregateRow) Entry {
	return Entry{
		Rank:        rank,
		Player:      r.Player,
		Score:       r.Score,
		Mu:          r.Mu,
		Sigma:       r.Sigma,
		AverageTime: r.AverageTime,
		TotalTime:   r.TotalTime,
		NumPlayed:   r.NumPlayed,
		NumWins:     r.NumWins,
	}
}

// Row converts an entry back to an aggregate row.
func (e Entry) Row() model.AggregateRow {
	return model.AggregateRow{
		Player:      e.Player,
		Mu:          e.Mu,
		Sigma:       e.Sigma,
		Score:       e.Score,
		AverageTime: e.AverageTime,
		TotalTime:   e.TotalTime,
		NumPlayed:   e.NumPlayed,
		NumWins:     e.NumWins,
	}
}

// Entries positions already ordered rows, 1-based.
func Entries(rows []model.AggregateRow) []Entry {
	out := make([]Entry, len(rows))
	for i, r := range rows {
		out[i] = NewEntry(i+1, r)
	}
	return out
}

// NewResult converts a ranked result.
func NewResult(r model.RankedResult) Result {
	return Result{Date: dateutil.Format(r.Day), Player: r.Player, Seconds: r.Seconds, Rank: r.Rank}
}

// Results converts ranked results, keeping order.
func Results(rs []model.RankedResult) []Result {
	out := make([]Result, len(rs))
	for i, r := range rs {
		out[i] = NewResult(r)
	}
	return out
}
