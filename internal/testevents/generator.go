// Package testevents generates synthetic daily leaderboards for demos and
// property tests.
package testevents

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/okian/minirank/internal/domain/model"
	"github.com/okian/minirank/pkg/dateutil"
)

// Solve time shape. Each player has a typical time; a day's time is that
// scaled by a random factor, and Saturday puzzles are larger.
const (
	minTypicalSeconds = 20.0
	maxTypicalSeconds = 150.0
	minDayFactor      = 0.6
	maxDayFactor      = 1.6
	saturdayFactor    = 2.5
)

// Day is one generated leaderboard.
type Day struct {
	Date    time.Time
	Entries []model.Entry
}

type player struct {
	name    string
	typical float64
}

// Generator builds deterministic histories from a seeded faker.
type Generator struct {
	cfg     Config
	faker   *gofakeit.Faker
	players []player
}

// NewGenerator creates a generator.
func NewGenerator(opts ...Option) *Generator {
	cfg := Config{
		Players:       defaultPlayers,
		Days:          defaultDays,
		Start:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Seed:          defaultSeed,
		Participation: defaultParticipation,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.Start = dateutil.Day(cfg.Start)

	g := &Generator{cfg: cfg, faker: gofakeit.New(cfg.Seed)}
	seen := make(map[string]int, cfg.Players)
	for i := 0; i < cfg.Players; i++ {
		name := g.faker.FirstName()
		seen[name]++
		if n := seen[name]; n > 1 {
			name += strconv.Itoa(n)
		}
		g.players = append(g.players, player{
			name:    name,
			typical: g.faker.Float64Range(minTypicalSeconds, maxTypicalSeconds),
		})
	}
	return g
}

// Players returns the generated player names.
func (g *Generator) Players() []string {
	out := make([]string, len(g.players))
	for i, p := range g.players {
		out[i] = p.name
	}
	return out
}

// Generate returns cfg.Days consecutive days. Days where nobody played
// are included with no entries.
func (g *Generator) Generate() []Day {
	days := make([]Day, 0, g.cfg.Days)
	for i := 0; i < g.cfg.Days; i++ {
		date := dateutil.AddDays(g.cfg.Start, i)
		day := Day{Date: date}
		for _, p := range g.players {
			if g.faker.Float64() >= g.cfg.Participation {
				continue
			}
			secs := p.typical * g.faker.Float64Range(minDayFactor, maxDayFactor)
			if dateutil.IsSaturday(date) {
				secs *= saturdayFactor
			}
			if secs < 1 {
				secs = 1
			}
			day.Entries = append(day.Entries, model.Entry{Player: p.name, Seconds: int(secs)})
		}
		days = append(days, day)
	}
	return days
}

// History serves generated days as a leaderboard source.
type History struct {
	days map[string][]model.Entry
	keys []time.Time
}

// NewHistory indexes days by date.
func NewHistory(days []Day) *History {
	h := &History{days: make(map[string][]model.Entry, len(days))}
	for _, d := range days {
		h.days[dateutil.Format(d.Date)] = d.Entries
		h.keys = append(h.keys, dateutil.Day(d.Date))
	}
	sort.Slice(h.keys, func(i, j int) bool { return h.keys[i].Before(h.keys[j]) })
	return h
}

// Fetch returns a copy of the day's entries; unknown days are empty.
func (h *History) Fetch(_ context.Context, day time.Time) ([]model.Entry, error) {
	entries := h.days[dateutil.Format(day)]
	out := make([]model.Entry, len(entries))
	copy(out, entries)
	return out, nil
}

// First returns the earliest day.
func (h *History) First() time.Time {
	if len(h.keys) == 0 {
		return time.Time{}
	}
	return h.keys[0]
}

// Last returns the latest day.
func (h *History) Last() time.Time {
	if len(h.keys) == 0 {
		return time.Time{}
	}
	return h.keys[len(h.keys)-1]
}
