// Package repository defines the result and window stores and an
// in-memory implementation.
package repository

import (
	"context"
	"time"

	"github.com/okian/minirank/internal/domain/model"
)

// ResultStore holds ranked daily results.
type ResultStore interface {
	// SaveDay replaces every result stored for day. Saved windows whose
	// through day is on or after day are marked stale.
	SaveDay(ctx context.Context, day time.Time, results []model.RankedResult) error
	// Day returns the day's results ordered by time, then player. A day
	// without results yields an empty slice.
	Day(ctx context.Context, day time.Time) ([]model.RankedResult, error)
	// Bounds returns the earliest and latest stored day, or ErrNoResults.
	Bounds(ctx context.Context) (earliest, latest time.Time, err error)
	// PlayerResults returns all of a player's results ordered by day, or
	// ErrNotFound.
	PlayerResults(ctx context.Context, player string) ([]model.RankedResult, error)
	// Fastest returns the n fastest results ever, ties broken by day then
	// player.
	Fastest(ctx context.Context, n int) ([]model.RankedResult, error)
}

// WindowStore holds the latest complete output of each window.
type WindowStore interface {
	// SaveWindows atomically replaces the rows of every given window.
	// Either all outputs are stored or none are.
	SaveWindows(ctx context.Context, outputs []model.WindowOutput) error
	// SaveWindows clears the stale mark of every window it saves.
	//
	// Snapshot rebuilds a window's accumulated state, or ErrNoSnapshot.
	// A window marked stale yields ErrStaleSnapshot.
	Snapshot(ctx context.Context, window string) (model.Snapshot, error)
	// Rows returns the first limit rows of a window ordered by score
	// desc then player (all rows when limit <= 0) and the day the window
	// ends on, or ErrNoSnapshot.
	Rows(ctx context.Context, window string, limit int) ([]model.AggregateRow, time.Time, error)
	// Rank returns a player's 1-based position in a window, or ErrNotFound.
	Rank(ctx context.Context, window, player string) (int, model.AggregateRow, error)
}

// Store is the complete persistence surface.
type Store interface {
	ResultStore
	WindowStore
	Close() error
}
