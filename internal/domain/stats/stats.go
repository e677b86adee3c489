// Package stats folds daily results into per-player counters and derives
// leaderboard rows from them.
package stats

import (
	"fmt"

	"github.com/okian/minirank/internal/domain/model"
)

// DefaultScale maps the conservative skill estimate to display points.
const DefaultScale = 60

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithSeed starts from previously accumulated counters. Entries with no
// plays are ignored so every stored counter has at least one play.
func WithSeed(counters map[string]model.Counters) Option {
	return func(a *Aggregator) {
		for k, v := range counters {
			if v.Played > 0 {
				a.counters[k] = v
			}
		}
	}
}

// WithScale sets the derived score multiplier.
func WithScale(scale float64) Option {
	return func(a *Aggregator) {
		if scale > 0 {
			a.scale = scale
		}
	}
}

// Aggregator owns the counters for one window run. It is not safe for
// concurrent use.
type Aggregator struct {
	scale    float64
	counters map[string]model.Counters
}

// New creates an empty aggregator.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		scale:    DefaultScale,
		counters: make(map[string]model.Counters),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Accumulate adds one day's results. A counter is only ever created by a
// play, so Played is never zero for a stored player.
func (a *Aggregator) Accumulate(day []model.RankedResult) {
	for _, r := range day {
		c := a.counters[r.Player]
		c.Played++
		c.TotalTime += int64(r.Seconds)
		if r.Rank == 1 {
			c.Wins++
		}
		a.counters[r.Player] = c
	}
}

// Finalize emits one row per player with counters, ordered by score desc
// then player. Players known only to the skill snapshot have never played
// in this window and get no row.
func (a *Aggregator) Finalize(skills map[string]model.SkillState) ([]model.AggregateRow, error) {
	rows := make([]model.AggregateRow, 0, len(a.counters))
	for player, c := range a.counters {
		s, ok := skills[player]
		if !ok {
			return nil, fmt.Errorf("player %q: %w", player, ErrMissingSkillState)
		}
		rows = append(rows, model.AggregateRow{
			Player:      player,
			Mu:          s.Mu,
			Sigma:       s.Sigma,
			Score:       s.ConservativeScore(a.scale),
			AverageTime: c.AverageTime(),
			TotalTime:   c.TotalTime,
			NumPlayed:   c.Played,
			NumWins:     c.Wins,
		})
	}
	model.SortRows(rows)
	return rows, nil
}

// Counters returns a copy of the current counters.
func (a *Aggregator) Counters() map[string]model.Counters {
	out := make(map[string]model.Counters, len(a.counters))
	for k, v := range a.counters {
		out[k] = v
	}
	return out
}
