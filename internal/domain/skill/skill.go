// Package skill implements a rank-based Bayesian skill update.
//
// A day is one multiplayer match. Every pair of players is compared as a
// win, loss or draw (equal rank) under a Thurstone-Mosteller model and the
// per-pair corrections are summed into one posterior per player, following
// the Weng-Lin approximation. The update has no randomness and no hidden
// state: the posterior depends only on the pre-update states and ranks.
package skill

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/okian/minirank/internal/domain/model"
)

const (
	defaultDrawProbability = 0.10
	defaultKappa           = 1e-4
)

// ErrLengthMismatch is returned when states and ranks differ in length.
var ErrLengthMismatch = errors.New("states and ranks length mismatch")

// Option configures a Model.
type Option func(*Model)

// WithBeta overrides the performance noise (sigma0/2 by default).
func WithBeta(beta float64) Option {
	return func(m *Model) {
		if beta > 0 {
			m.beta = beta
		}
	}
}

// WithDrawProbability sets the prior probability of two equal players
// posting the same time. It controls the draw margin.
func WithDrawProbability(p float64) Option {
	return func(m *Model) {
		if p > 0 && p < 1 {
			m.drawProbability = p
		}
	}
}

// WithKappa sets the lower bound on the variance shrink factor.
func WithKappa(k float64) Option {
	return func(m *Model) {
		if k > 0 && k < 1 {
			m.kappa = k
		}
	}
}

// Model holds the fixed update constants.
type Model struct {
	beta            float64
	drawProbability float64
	kappa           float64
	epsilon         float64
}

// New builds a model for priors with default uncertainty sigma0.
func New(sigma0 float64, opts ...Option) *Model {
	m := &Model{
		beta:            sigma0 / 2,
		drawProbability: defaultDrawProbability,
		kappa:           defaultKappa,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.epsilon = ppf((m.drawProbability+1)/2) * math.Sqrt2 * m.beta
	return m
}

// Beta returns the performance noise.
func (m *Model) Beta() float64 { return m.beta }

// DrawMargin returns the draw margin in skill units.
func (m *Model) DrawMargin() float64 { return m.epsilon }

// Rate returns posterior states for one match. ranks[i] is the finishing
// rank of states[i]; lower is better and equal ranks are draws. The
// inputs are not modified.
func (m *Model) Rate(states []model.SkillState, ranks []int) ([]model.SkillState, error) {
	if len(states) != len(ranks) {
		return nil, fmt.Errorf("%d states, %d ranks: %w", len(states), len(ranks), ErrLengthMismatch)
	}

	order := sumOrder(states, ranks)
	beta2 := 2 * m.beta * m.beta
	out := make([]model.SkillState, len(states))
	for i, si := range states {
		vari := si.Sigma * si.Sigma
		var omega, delta float64
		for _, q := range order {
			if q == i {
				continue
			}
			sq := states[q]
			c := math.Sqrt(vari + sq.Sigma*sq.Sigma + beta2)
			x := (si.Mu - sq.Mu) / c
			t := m.epsilon / c
			s := vari / c
			gamma := si.Sigma / c

			switch {
			case ranks[i] < ranks[q]:
				omega += s * vWin(x, t)
				delta += gamma * s / c * wWin(x, t)
			case ranks[i] > ranks[q]:
				omega -= s * vWin(-x, t)
				delta += gamma * s / c * wWin(-x, t)
			default:
				omega += s * vDraw(x, t)
				delta += gamma * s / c * wDraw(x, t)
			}
		}
		if delta < 0 {
			delta = 0
		}
		out[i] = model.SkillState{
			Mu:    si.Mu + omega,
			Sigma: si.Sigma * math.Sqrt(math.Max(1-delta, m.kappa)),
		}
	}
	return out, nil
}

// sumOrder lists indices by rank, then mu, then sigma. Corrections are
// summed in this order so that tied players with equal states add the
// same terms in the same sequence and end bit-identical, wherever they
// sit in the input.
func sumOrder(states []model.SkillState, ranks []int) []int {
	order := make([]int, len(states))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Or(
			cmp.Compare(ranks[a], ranks[b]),
			cmp.Compare(states[a].Mu, states[b].Mu),
			cmp.Compare(states[a].Sigma, states[b].Sigma),
		)
	})
	return order
}
