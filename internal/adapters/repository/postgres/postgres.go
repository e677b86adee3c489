// Package postgres implements repository.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/minirank/internal/adapters/repository"
	"github.com/okian/minirank/internal/domain/model"
	"github.com/okian/minirank/pkg/dateutil"
	"github.com/okian/minirank/pkg/metrics"
)

// Pool defaults applied when the URL does not set them.
const (
	defaultMaxConns        = 10
	defaultMinConns        = 1
	defaultMaxConnLifetime = time.Hour
	defaultMaxConnIdleTime = 30 * time.Minute
)

const schema = `
CREATE TABLE IF NOT EXISTS results (
	day      DATE    NOT NULL,
	player   TEXT    NOT NULL,
	seconds  INTEGER NOT NULL,
	day_rank INTEGER NOT NULL,
	PRIMARY KEY (day, player)
);
CREATE INDEX IF NOT EXISTS results_player ON results (player);
CREATE TABLE IF NOT EXISTS window_rows (
	window_name  TEXT             NOT NULL,
	player       TEXT             NOT NULL,
	mu           DOUBLE PRECISION NOT NULL,
	sigma        DOUBLE PRECISION NOT NULL,
	score        DOUBLE PRECISION NOT NULL,
	average_time DOUBLE PRECISION NOT NULL,
	total_time   BIGINT           NOT NULL,
	num_played   INTEGER          NOT NULL,
	num_wins     INTEGER          NOT NULL,
	PRIMARY KEY (window_name, player)
);
CREATE TABLE IF NOT EXISTS window_meta (
	window_name TEXT        PRIMARY KEY,
	through     DATE        NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS stale_windows (
	window_name TEXT PRIMARY KEY
);`

// Store is a repository.Store over a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ repository.Store = (*Store)(nil)

// Open connects to databaseURL, verifies the connection and applies the
// idempotent schema.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse url: %w", err)
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = defaultMaxConns
	}
	if cfg.MinConns == 0 {
		cfg.MinConns = defaultMinConns
	}
	cfg.MaxConnLifetime = defaultMaxConnLifetime
	cfg.MaxConnIdleTime = defaultMaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Truncate empties every table. Used by tests against a shared database.
func (s *Store) Truncate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE results, window_rows, window_meta, stale_windows`)
	return err
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

// withTx runs fn in a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// SaveDay implements repository.ResultStore.
func (s *Store) SaveDay(ctx context.Context, day time.Time, results []model.RankedResult) error {
	defer observe("save_day", time.Now())
	day = dateutil.Day(day)
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM results WHERE day = $1`, day); err != nil {
			return fmt.Errorf("clear day: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO stale_windows (window_name)
			SELECT window_name FROM window_meta WHERE through >= $1
			ON CONFLICT (window_name) DO NOTHING`, day); err != nil {
			return fmt.Errorf("mark stale windows: %w", err)
		}
		if len(results) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for _, r := range results {
			batch.Queue(`INSERT INTO results (day, player, seconds, day_rank) VALUES ($1, $2, $3, $4)`,
				day, r.Player, r.Seconds, r.Rank)
		}
		br := tx.SendBatch(ctx, batch)
		defer br.Close()
		for _, r := range results {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("insert %s: %w", r.Player, err)
			}
		}
		return nil
	})
}

func collectResults(rows pgx.Rows) ([]model.RankedResult, error) {
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.RankedResult, error) {
		var r model.RankedResult
		err := row.Scan(&r.Day, &r.Player, &r.Seconds, &r.Rank)
		r.Day = dateutil.Day(r.Day)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan results: %w", err)
	}
	return out, nil
}

// Day implements repository.ResultStore.
func (s *Store) Day(ctx context.Context, day time.Time) ([]model.RankedResult, error) {
	defer observe("day", time.Now())
	rows, err := s.pool.Query(ctx,
		`SELECT day, player, seconds, day_rank FROM results WHERE day = $1 ORDER BY seconds, player`,
		dateutil.Day(day))
	if err != nil {
		return nil, fmt.Errorf("postgres: query day: %w", err)
	}
	return collectResults(rows)
}

// Bounds implements repository.ResultStore.
func (s *Store) Bounds(ctx context.Context) (time.Time, time.Time, error) {
	var first, last *time.Time
	if err := s.pool.QueryRow(ctx, `SELECT MIN(day), MAX(day) FROM results`).Scan(&first, &last); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("postgres: bounds: %w", err)
	}
	if first == nil || last == nil {
		return time.Time{}, time.Time{}, repository.ErrNoResults
	}
	return dateutil.Day(*first), dateutil.Day(*last), nil
}

// PlayerResults implements repository.ResultStore.
func (s *Store) PlayerResults(ctx context.Context, player string) ([]model.RankedResult, error) {
	defer observe("player_results", time.Now())
	rows, err := s.pool.Query(ctx,
		`SELECT day, player, seconds, day_rank FROM results WHERE player = $1 ORDER BY day`, player)
	if err != nil {
		return nil, fmt.Errorf("postgres: query player: %w", err)
	}
	out, err := collectResults(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("player %q: %w", player, repository.ErrNotFound)
	}
	return out, nil
}

// Fastest implements repository.ResultStore.
func (s *Store) Fastest(ctx context.Context, n int) ([]model.RankedResult, error) {
	defer observe("fastest", time.Now())
	if n < 1 {
		return nil, fmt.Errorf("fastest %d: %w", n, repository.ErrInvalidLimit)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT day, player, seconds, day_rank FROM results ORDER BY seconds, day, player LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("postgres: query fastest: %w", err)
	}
	return collectResults(rows)
}

// SaveWindows implements repository.WindowStore. Every window is replaced
// in one transaction.
func (s *Store) SaveWindows(ctx context.Context, outputs []model.WindowOutput) error {
	defer observe("save_windows", time.Now())
	return s.withTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, out := range outputs {
			batch.Queue(`DELETE FROM window_rows WHERE window_name = $1`, out.Window)
			for _, r := range out.Rows {
				batch.Queue(`
					INSERT INTO window_rows
					(window_name, player, mu, sigma, score, average_time, total_time, num_played, num_wins)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
					out.Window, r.Player, r.Mu, r.Sigma, r.Score, r.AverageTime, r.TotalTime, r.NumPlayed, r.NumWins)
			}
			batch.Queue(`
				INSERT INTO window_meta (window_name, through, updated_at) VALUES ($1, $2, now())
				ON CONFLICT (window_name) DO UPDATE SET through = EXCLUDED.through, updated_at = EXCLUDED.updated_at`,
				out.Window, dateutil.Day(out.Through))
			batch.Queue(`DELETE FROM stale_windows WHERE window_name = $1`, out.Window)
		}
		br := tx.SendBatch(ctx, batch)
		defer br.Close()
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("save windows: %w", err)
			}
		}
		return nil
	})
}

const rowColumns = `player, mu, sigma, score, average_time, total_time, num_played, num_wins`

// Rows implements repository.WindowStore.
func (s *Store) Rows(ctx context.Context, window string, limit int) ([]model.AggregateRow, time.Time, error) {
	defer observe("rows", time.Now())
	var through time.Time
	err := s.pool.QueryRow(ctx, `SELECT through FROM window_meta WHERE window_name = $1`, window).Scan(&through)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, time.Time{}, fmt.Errorf("window %q: %w", window, repository.ErrNoSnapshot)
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("postgres: window meta: %w", err)
	}

	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+rowColumns+` FROM window_rows WHERE window_name = $1 ORDER BY score DESC, player LIMIT $2`,
		window, lim)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("postgres: query rows: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.AggregateRow, error) {
		var r model.AggregateRow
		err := row.Scan(&r.Player, &r.Mu, &r.Sigma, &r.Score, &r.AverageTime, &r.TotalTime, &r.NumPlayed, &r.NumWins)
		return r, err
	})
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("postgres: scan rows: %w", err)
	}
	return out, dateutil.Day(through), nil
}

// Snapshot implements repository.WindowStore.
func (s *Store) Snapshot(ctx context.Context, window string) (model.Snapshot, error) {
	var stale bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM stale_windows WHERE window_name = $1)`, window).Scan(&stale)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("postgres: stale check: %w", err)
	}
	if stale {
		return model.Snapshot{}, fmt.Errorf("window %q: %w", window, repository.ErrStaleSnapshot)
	}
	rows, through, err := s.Rows(ctx, window, 0)
	if err != nil {
		return model.Snapshot{}, err
	}
	return model.SnapshotFromRows(through, rows), nil
}

// Rank implements repository.WindowStore.
func (s *Store) Rank(ctx context.Context, window, player string) (int, model.AggregateRow, error) {
	var (
		rank int
		r    model.AggregateRow
	)
	err := s.pool.QueryRow(ctx, `
		SELECT pos, `+rowColumns+` FROM (
			SELECT ROW_NUMBER() OVER (ORDER BY score DESC, player) AS pos, `+rowColumns+`
			FROM window_rows WHERE window_name = $1
		) ranked WHERE player = $2`, window, player,
	).Scan(&rank, &r.Player, &r.Mu, &r.Sigma, &r.Score, &r.AverageTime, &r.TotalTime, &r.NumPlayed, &r.NumWins)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, model.AggregateRow{}, fmt.Errorf("player %q in %s: %w", player, window, repository.ErrNotFound)
	}
	if err != nil {
		return 0, model.AggregateRow{}, fmt.Errorf("postgres: rank: %w", err)
	}
	return rank, r, nil
}
