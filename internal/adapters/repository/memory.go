package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/minirank/internal/domain/history"
	"github.com/okian/minirank/internal/domain/model"
	"github.com/okian/minirank/pkg/dateutil"
	"github.com/okian/minirank/pkg/metrics"
)

// windowView is an immutable published window. Readers never lock.
type windowView struct {
	through      time.Time
	rows         []model.AggregateRow
	rankByPlayer map[string]int
}

// windowsView maps window name to its published view.
type windowsView map[string]*windowView

// MemoryStore keeps everything in process. Results are guarded by a
// mutex; windows are swapped in as a whole through an atomic pointer so
// a reader sees either the previous save or the next one.
type MemoryStore struct {
	mu      sync.RWMutex
	results map[string][]model.RankedResult

	windows atomic.Pointer[windowsView]
	saveMu  sync.Mutex
	stale   map[string]bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		results: make(map[string][]model.RankedResult),
		stale:   make(map[string]bool),
	}
	empty := windowsView{}
	s.windows.Store(&empty)
	return s
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

func sortDay(rs []model.RankedResult) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Seconds != rs[j].Seconds {
			return rs[i].Seconds < rs[j].Seconds
		}
		return rs[i].Player < rs[j].Player
	})
}

// SaveDay implements ResultStore.
func (s *MemoryStore) SaveDay(_ context.Context, day time.Time, results []model.RankedResult) error {
	defer observe("save_day", time.Now())
	day = dateutil.Day(day)
	rows := make([]model.RankedResult, len(results))
	for i, r := range results {
		r.Day = day
		rows[i] = r
	}
	sortDay(rows)

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(rows) == 0 {
		delete(s.results, dateutil.Format(day))
	} else {
		s.results[dateutil.Format(day)] = rows
	}
	s.markStale(day)
	return nil
}

// markStale flags every saved window that already covers day.
func (s *MemoryStore) markStale(day time.Time) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	for name, v := range *s.windows.Load() {
		if !v.through.Before(day) {
			s.stale[name] = true
		}
	}
}

// Day implements ResultStore.
func (s *MemoryStore) Day(_ context.Context, day time.Time) ([]model.RankedResult, error) {
	defer observe("day", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.results[dateutil.Format(day)]
	return append([]model.RankedResult{}, rows...), nil
}

// Bounds implements ResultStore.
func (s *MemoryStore) Bounds(_ context.Context) (time.Time, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var earliest, latest time.Time
	for _, rows := range s.results {
		d := rows[0].Day
		if earliest.IsZero() || d.Before(earliest) {
			earliest = d
		}
		if latest.IsZero() || d.After(latest) {
			latest = d
		}
	}
	if earliest.IsZero() {
		return time.Time{}, time.Time{}, ErrNoResults
	}
	return earliest, latest, nil
}

func (s *MemoryStore) all() []model.RankedResult {
	var out []model.RankedResult
	for _, rows := range s.results {
		out = append(out, rows...)
	}
	return out
}

// PlayerResults implements ResultStore.
func (s *MemoryStore) PlayerResults(_ context.Context, player string) ([]model.RankedResult, error) {
	defer observe("player_results", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.RankedResult
	for _, rows := range s.results {
		for _, r := range rows {
			if r.Player == player {
				out = append(out, r)
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("player %q: %w", player, ErrNotFound)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

// Fastest implements ResultStore.
func (s *MemoryStore) Fastest(_ context.Context, n int) ([]model.RankedResult, error) {
	defer observe("fastest", time.Now())
	if n < 1 {
		return nil, fmt.Errorf("fastest %d: %w", n, ErrInvalidLimit)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return history.Podium(s.all(), n), nil
}

// SaveWindows implements WindowStore.
func (s *MemoryStore) SaveWindows(_ context.Context, outputs []model.WindowOutput) error {
	defer observe("save_windows", time.Now())
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	prev := *s.windows.Load()
	next := make(windowsView, len(prev)+len(outputs))
	for k, v := range prev {
		next[k] = v
	}
	for _, out := range outputs {
		rows := append([]model.AggregateRow(nil), out.Rows...)
		model.SortRows(rows)
		ranks := make(map[string]int, len(rows))
		for i, r := range rows {
			ranks[r.Player] = i + 1
		}
		next[out.Window] = &windowView{through: dateutil.Day(out.Through), rows: rows, rankByPlayer: ranks}
		delete(s.stale, out.Window)
	}
	s.windows.Store(&next)
	return nil
}

func (s *MemoryStore) view(window string) (*windowView, error) {
	v, ok := (*s.windows.Load())[window]
	if !ok {
		return nil, fmt.Errorf("window %q: %w", window, ErrNoSnapshot)
	}
	return v, nil
}

// Snapshot implements WindowStore.
func (s *MemoryStore) Snapshot(_ context.Context, window string) (model.Snapshot, error) {
	s.saveMu.Lock()
	stale := s.stale[window]
	s.saveMu.Unlock()
	if stale {
		return model.Snapshot{}, fmt.Errorf("window %q: %w", window, ErrStaleSnapshot)
	}
	v, err := s.view(window)
	if err != nil {
		return model.Snapshot{}, err
	}
	return model.SnapshotFromRows(v.through, v.rows), nil
}

// Rows implements WindowStore.
func (s *MemoryStore) Rows(_ context.Context, window string, limit int) ([]model.AggregateRow, time.Time, error) {
	defer observe("rows", time.Now())
	v, err := s.view(window)
	if err != nil {
		return nil, time.Time{}, err
	}
	rows := v.rows
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return append([]model.AggregateRow{}, rows...), v.through, nil
}

// Rank implements WindowStore.
func (s *MemoryStore) Rank(_ context.Context, window, player string) (int, model.AggregateRow, error) {
	v, err := s.view(window)
	if err != nil {
		return 0, model.AggregateRow{}, err
	}
	rank, ok := v.rankByPlayer[player]
	if !ok {
		return 0, model.AggregateRow{}, fmt.Errorf("player %q in %s: %w", player, window, ErrNotFound)
	}
	return rank, v.rows[rank-1], nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
