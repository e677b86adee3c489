// Package rating owns per-player skill state and applies one joint
// update per day.
package rating

import (
	"errors"
	"fmt"

	"github.com/okian/minirank/internal/domain/model"
	"github.com/okian/minirank/internal/domain/skill"
)

// ErrInvalidPrior is returned for a non-positive prior uncertainty.
var ErrInvalidPrior = errors.New("invalid rating prior")

// Config holds the default prior given to a player on first touch.
type Config struct {
	Mu    float64
	Sigma float64
}

// DefaultConfig returns the conventional 25 / 25/3 prior.
func DefaultConfig() Config {
	return Config{Mu: 25, Sigma: 25.0 / 3}
}

// Prior returns the configured default state.
func (c Config) Prior() model.SkillState {
	return model.SkillState{Mu: c.Mu, Sigma: c.Sigma}
}

// Option configures an Engine.
type Option func(*Engine)

// WithSeed starts the engine from previously accumulated state. The map
// is copied.
func WithSeed(states map[string]model.SkillState) Option {
	return func(e *Engine) {
		for k, v := range states {
			e.states[k] = v
		}
	}
}

// WithModel replaces the update model built from the prior.
func WithModel(m *skill.Model) Option {
	return func(e *Engine) {
		if m != nil {
			e.model = m
		}
	}
}

// Engine is a single-owner skill table. It is not safe for concurrent use;
// run separate engines for separate windows.
type Engine struct {
	prior  model.SkillState
	model  *skill.Model
	states map[string]model.SkillState
}

// New creates an engine.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if !(cfg.Sigma > 0) {
		return nil, fmt.Errorf("sigma %v: %w", cfg.Sigma, ErrInvalidPrior)
	}
	e := &Engine{
		prior:  cfg.Prior(),
		model:  skill.New(cfg.Sigma),
		states: make(map[string]model.SkillState),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Get returns the player's state, materializing the prior on first touch.
func (e *Engine) Get(player string) model.SkillState {
	s, ok := e.states[player]
	if !ok {
		s = e.prior
		e.states[player] = s
	}
	return s
}

// Update applies one day's ranked results as a single match. Players
// absent from the day are untouched.
func (e *Engine) Update(day []model.RankedResult) error {
	if len(day) == 0 {
		return nil
	}
	states := make([]model.SkillState, len(day))
	ranks := make([]int, len(day))
	for i, r := range day {
		states[i] = e.Get(r.Player)
		ranks[i] = r.Rank
	}
	post, err := e.model.Rate(states, ranks)
	if err != nil {
		return fmt.Errorf("rate day: %w", err)
	}
	for i, r := range day {
		e.states[r.Player] = post[i]
	}
	return nil
}

// Snapshot returns a copy of every known state.
func (e *Engine) Snapshot() map[string]model.SkillState {
	out := make(map[string]model.SkillState, len(e.states))
	for k, v := range e.states {
		out[k] = v
	}
	return out
}

// Len returns the number of known players.
func (e *Engine) Len() int { return len(e.states) }
