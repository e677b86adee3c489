// Package cache publishes window leaderboards to Redis for fast reads.
//
// Each window uses three keys:
//   - "{prefix}:window:{name}:order" sorted set, player -> 1-based position
//   - "{prefix}:window:{name}:info"  hash, player -> entry JSON
//   - "{prefix}:window:{name}:meta"  string, window metadata JSON
//
// Positions rather than scores order the set so ties keep the same
// player order as the store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/minirank/internal/domain/model"
	"github.com/okian/minirank/internal/domain/types"
	"github.com/okian/minirank/pkg/dateutil"
)

const (
	defaultPrefix      = "minirank"
	defaultDialTimeout = 5 * time.Second
)

// ErrMiss means the window has not been published.
var ErrMiss = errors.New("cache miss")

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Option configures a Cache.
type Option func(*Cache)

// WithPrefix namespaces every key.
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithTTL expires published windows after ttl. Zero keeps them until the
// next publish.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// Cache is a Redis-backed leaderboard cache.
type Cache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// Meta describes a published window.
type Meta struct {
	Window    string    `json:"window"`
	Through   string    `json:"through"`
	Count     int       `json:"count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config, opts ...Option) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: defaultDialTimeout,
	})
	pctx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping %s: %w", cfg.Addr, err)
	}
	return NewWithClient(client, opts...), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient, opts ...Option) *Cache {
	c := &Cache{client: client, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close closes the client.
func (c *Cache) Close() error { return c.client.Close() }

func (c *Cache) key(window, part string) string {
	return c.prefix + ":window:" + window + ":" + part
}

// Publish replaces the cached copy of every output in one MULTI/EXEC.
func (c *Cache) Publish(ctx context.Context, outputs []model.WindowOutput) error {
	now := time.Now().UTC()
	pipe := c.client.TxPipeline()
	for _, out := range outputs {
		orderKey, infoKey, metaKey := c.key(out.Window, "order"), c.key(out.Window, "info"), c.key(out.Window, "meta")
		pipe.Del(ctx, orderKey, infoKey)

		entries := types.Entries(out.Rows)
		if len(entries) > 0 {
			members := make([]redis.Z, len(entries))
			info := make(map[string]interface{}, len(entries))
			for i, e := range entries {
				members[i] = redis.Z{Score: float64(e.Rank), Member: e.Player}
				raw, err := json.Marshal(e)
				if err != nil {
					return fmt.Errorf("cache: encode %s: %w", e.Player, err)
				}
				info[e.Player] = raw
			}
			pipe.ZAdd(ctx, orderKey, members...)
			pipe.HSet(ctx, infoKey, info)
		}

		meta, err := json.Marshal(Meta{
			Window:    out.Window,
			Through:   dateutil.Format(out.Through),
			Count:     len(entries),
			UpdatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("cache: encode meta: %w", err)
		}
		pipe.Set(ctx, metaKey, meta, c.ttl)
		if c.ttl > 0 {
			pipe.Expire(ctx, orderKey, c.ttl)
			pipe.Expire(ctx, infoKey, c.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache: publish: %w", err)
	}
	return nil
}

// Leaderboard reads the first limit entries of a window (all when
// limit <= 0), or ErrMiss when it was never published.
func (c *Cache) Leaderboard(ctx context.Context, window string, limit int) (types.Leaderboard, error) {
	rawMeta, err := c.client.Get(ctx, c.key(window, "meta")).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.Leaderboard{}, fmt.Errorf("window %q: %w", window, ErrMiss)
	}
	if err != nil {
		return types.Leaderboard{}, fmt.Errorf("cache: meta: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(rawMeta, &meta); err != nil {
		return types.Leaderboard{}, fmt.Errorf("cache: decode meta: %w", err)
	}

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	players, err := c.client.ZRange(ctx, c.key(window, "order"), 0, stop).Result()
	if err != nil {
		return types.Leaderboard{}, fmt.Errorf("cache: order: %w", err)
	}

	lb := types.Leaderboard{Window: window, Through: meta.Through, Entries: []types.Entry{}}
	if len(players) == 0 {
		return lb, nil
	}
	raw, err := c.client.HMGet(ctx, c.key(window, "info"), players...).Result()
	if err != nil {
		return types.Leaderboard{}, fmt.Errorf("cache: info: %w", err)
	}
	lb.Entries, err = decodeEntries(players, raw)
	if err != nil {
		return types.Leaderboard{}, err
	}
	return lb, nil
}

// decodeEntries decodes HMGET values; a missing value means the keys
// were torn by expiry and is treated as a miss.
func decodeEntries(players []string, raw []interface{}) ([]types.Entry, error) {
	out := make([]types.Entry, 0, len(raw))
	for i, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("player %q: %w", players[i], ErrMiss)
		}
		var e types.Entry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			return nil, fmt.Errorf("cache: decode %s: %w", players[i], err)
		}
		out = append(out, e)
	}
	return out, nil
}
