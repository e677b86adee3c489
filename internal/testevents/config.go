package testevents

import "time"

// Defaults for generated histories.
const (
	defaultPlayers       = 8
	defaultDays          = 60
	defaultSeed          = 1
	defaultParticipation = 0.75
)

// Config holds generator settings.
type Config struct {
	Players       int       // Size of the friend group
	Days          int       // Number of consecutive days
	Start         time.Time // First generated day
	Seed          uint64    // Faker seed; equal seeds give equal histories
	Participation float64   // Chance a player solves on a given day
}

// Option configures a Generator.
type Option func(*Config)

// WithPlayers sets the number of players.
func WithPlayers(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Players = n
		}
	}
}

// WithDays sets the number of days.
func WithDays(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Days = n
		}
	}
}

// WithStart sets the first day.
func WithStart(day time.Time) Option {
	return func(c *Config) {
		if !day.IsZero() {
			c.Start = day
		}
	}
}

// WithSeed sets the faker seed.
func WithSeed(seed uint64) Option {
	return func(c *Config) {
		if seed != 0 {
			c.Seed = seed
		}
	}
}

// WithParticipation sets the daily participation probability.
func WithParticipation(p float64) Option {
	return func(c *Config) {
		if p > 0 && p <= 1 {
			c.Participation = p
		}
	}
}
