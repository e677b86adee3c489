package window

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/minirank/internal/domain/model"
	"github.com/okian/minirank/pkg/dateutil"
)

// Source supplies the raw leaderboard for a day. An empty slice means the
// day has no data; an error means the fetch failed and the run must stop.
type Source interface {
	Fetch(ctx context.Context, day time.Time) ([]model.Entry, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, day time.Time) ([]model.Entry, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context, day time.Time) ([]model.Entry, error) {
	return f(ctx, day)
}

// CachedSource memoizes successful fetches so several windows running
// at once read each day from the underlying source exactly once.
// Failed fetches are not cached. Safe for concurrent use.
type CachedSource struct {
	src   Source
	group singleflight.Group

	mu   sync.RWMutex
	days map[string][]model.Entry
}

// NewCachedSource wraps src.
func NewCachedSource(src Source) *CachedSource {
	return &CachedSource{src: src, days: make(map[string][]model.Entry)}
}

// Fetch returns the cached day or loads it once.
func (c *CachedSource) Fetch(ctx context.Context, day time.Time) ([]model.Entry, error) {
	key := dateutil.Format(day)

	c.mu.RLock()
	entries, ok := c.days[key]
	c.mu.RUnlock()
	if ok {
		return entries, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		cached, ok := c.days[key]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}
		entries, err := c.src.Fetch(ctx, day)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.days[key] = entries
		c.mu.Unlock()
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Entry), nil
}

// Len returns the number of cached days.
func (c *CachedSource) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.days)
}
