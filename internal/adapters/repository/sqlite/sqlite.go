// Package sqlite implements repository.Store on an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/okian/minirank/internal/adapters/repository"
	"github.com/okian/minirank/internal/domain/model"
	"github.com/okian/minirank/pkg/dateutil"
	"github.com/okian/minirank/pkg/metrics"
)

// Memory is the path of a private in-memory database.
const Memory = ":memory:"

const defaultBusyTimeout = 5 * time.Second

const schema = `
CREATE TABLE IF NOT EXISTS results (
	day      TEXT    NOT NULL,
	player   TEXT    NOT NULL,
	seconds  INTEGER NOT NULL,
	day_rank INTEGER NOT NULL,
	PRIMARY KEY (day, player)
);
CREATE INDEX IF NOT EXISTS results_player ON results (player);
CREATE TABLE IF NOT EXISTS window_rows (
	window_name  TEXT    NOT NULL,
	player       TEXT    NOT NULL,
	mu           REAL    NOT NULL,
	sigma        REAL    NOT NULL,
	score        REAL    NOT NULL,
	average_time REAL    NOT NULL,
	total_time   INTEGER NOT NULL,
	num_played   INTEGER NOT NULL,
	num_wins     INTEGER NOT NULL,
	PRIMARY KEY (window_name, player)
);
CREATE TABLE IF NOT EXISTS window_meta (
	window_name TEXT PRIMARY KEY,
	through     TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS stale_windows (
	window_name TEXT PRIMARY KEY
);`

// Option configures a Store.
type Option func(*Store)

// WithBusyTimeout sets how long a writer waits on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}

// Store is a repository.Store over database/sql and modernc SQLite.
type Store struct {
	db          *sql.DB
	busyTimeout time.Duration
}

var _ repository.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	s := &Store{busyTimeout: defaultBusyTimeout}
	for _, opt := range opts {
		opt(s)
	}

	if path != Memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create directory: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		path, s.busyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes
	// writers the way SQLite wants them.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	s.db = db
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

// withTx runs fn in a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("sqlite: %w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// SaveDay implements repository.ResultStore.
func (s *Store) SaveDay(ctx context.Context, day time.Time, results []model.RankedResult) error {
	defer observe("save_day", time.Now())
	key := dateutil.Format(day)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE day = ?`, key); err != nil {
			return fmt.Errorf("clear day %s: %w", key, err)
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO results (day, player, seconds, day_rank) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range results {
			if _, err := stmt.ExecContext(ctx, key, r.Player, r.Seconds, r.Rank); err != nil {
				return fmt.Errorf("insert %s/%s: %w", key, r.Player, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO stale_windows (window_name)
			SELECT window_name FROM window_meta WHERE through >= ?`, key); err != nil {
			return fmt.Errorf("mark stale windows: %w", err)
		}
		return nil
	})
}

func scanResults(rows *sql.Rows) ([]model.RankedResult, error) {
	defer rows.Close()
	out := []model.RankedResult{}
	for rows.Next() {
		var (
			day string
			r   model.RankedResult
		)
		if err := rows.Scan(&day, &r.Player, &r.Seconds, &r.Rank); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		d, err := dateutil.Parse(day)
		if err != nil {
			return nil, err
		}
		r.Day = d
		out = append(out, r)
	}
	return out, rows.Err()
}

// Day implements repository.ResultStore.
func (s *Store) Day(ctx context.Context, day time.Time) ([]model.RankedResult, error) {
	defer observe("day", time.Now())
	rows, err := s.db.QueryContext(ctx,
		`SELECT day, player, seconds, day_rank FROM results WHERE day = ? ORDER BY seconds, player`,
		dateutil.Format(day))
	if err != nil {
		return nil, fmt.Errorf("sqlite: query day: %w", err)
	}
	return scanResults(rows)
}

// Bounds implements repository.ResultStore.
func (s *Store) Bounds(ctx context.Context) (time.Time, time.Time, error) {
	var first, last sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT MIN(day), MAX(day) FROM results`).Scan(&first, &last)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("sqlite: bounds: %w", err)
	}
	if !first.Valid {
		return time.Time{}, time.Time{}, repository.ErrNoResults
	}
	earliest, err := dateutil.Parse(first.String)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	latest, err := dateutil.Parse(last.String)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return earliest, latest, nil
}

// PlayerResults implements repository.ResultStore.
func (s *Store) PlayerResults(ctx context.Context, player string) ([]model.RankedResult, error) {
	defer observe("player_results", time.Now())
	rows, err := s.db.QueryContext(ctx,
		`SELECT day, player, seconds, day_rank FROM results WHERE player = ? ORDER BY day`, player)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query player: %w", err)
	}
	out, err := scanResults(rows)
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
	rows, err := s.db.QueryContext(ctx,
		`SELECT day, player, seconds, day_rank FROM results ORDER BY seconds, day, player LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query fastest: %w", err)
	}
	return scanResults(rows)
}

// SaveWindows implements repository.WindowStore.
func (s *Store) SaveWindows(ctx context.Context, outputs []model.WindowOutput) error {
	defer observe("save_windows", time.Now())
	now := time.Now().UTC().Format(time.RFC3339)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, out := range outputs {
			if _, err := tx.ExecContext(ctx, `DELETE FROM window_rows WHERE window_name = ?`, out.Window); err != nil {
				return fmt.Errorf("clear window %s: %w", out.Window, err)
			}
			for _, r := range out.Rows {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO window_rows
					(window_name, player, mu, sigma, score, average_time, total_time, num_played, num_wins)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
					out.Window, r.Player, r.Mu, r.Sigma, r.Score, r.AverageTime, r.TotalTime, r.NumPlayed, r.NumWins,
				); err != nil {
					return fmt.Errorf("insert %s/%s: %w", out.Window, r.Player, err)
				}
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO window_meta (window_name, through, updated_at) VALUES (?, ?, ?)
				ON CONFLICT (window_name) DO UPDATE SET through = excluded.through, updated_at = excluded.updated_at`,
				out.Window, dateutil.Format(out.Through), now,
			); err != nil {
				return fmt.Errorf("upsert meta %s: %w", out.Window, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM stale_windows WHERE window_name = ?`, out.Window); err != nil {
				return fmt.Errorf("clear stale %s: %w", out.Window, err)
			}
		}
		return nil
	})
}

func (s *Store) through(ctx context.Context, window string) (time.Time, error) {
	var through string
	err := s.db.QueryRowContext(ctx, `SELECT through FROM window_meta WHERE window_name = ?`, window).Scan(&through)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("window %q: %w", window, repository.ErrNoSnapshot)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: window meta: %w", err)
	}
	return dateutil.Parse(through)
}

const rowColumns = `player, mu, sigma, score, average_time, total_time, num_played, num_wins`

func scanRow(sc interface{ Scan(...any) error }, r *model.AggregateRow) error {
	return sc.Scan(&r.Player, &r.Mu, &r.Sigma, &r.Score, &r.AverageTime, &r.TotalTime, &r.NumPlayed, &r.NumWins)
}

// Rows implements repository.WindowStore.
func (s *Store) Rows(ctx context.Context, window string, limit int) ([]model.AggregateRow, time.Time, error) {
	defer observe("rows", time.Now())
	through, err := s.through(ctx, window)
	if err != nil {
		return nil, time.Time{}, err
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+rowColumns+` FROM window_rows WHERE window_name = ? ORDER BY score DESC, player LIMIT ?`,
		window, limit)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("sqlite: query rows: %w", err)
	}
	defer rows.Close()
	out := []model.AggregateRow{}
	for rows.Next() {
		var r model.AggregateRow
		if err := scanRow(rows, &r); err != nil {
			return nil, time.Time{}, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, err
	}
	return out, through, nil
}

// Snapshot implements repository.WindowStore.
func (s *Store) Snapshot(ctx context.Context, window string) (model.Snapshot, error) {
	var stale bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM stale_windows WHERE window_name = ?)`, window).Scan(&stale)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("sqlite: stale check: %w", err)
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
	row := s.db.QueryRowContext(ctx, `
		SELECT pos, `+rowColumns+` FROM (
			SELECT ROW_NUMBER() OVER (ORDER BY score DESC, player) AS pos, `+rowColumns+`
			FROM window_rows WHERE window_name = ?
		) WHERE player = ?`, window, player)
	err := row.Scan(&rank, &r.Player, &r.Mu, &r.Sigma, &r.Score, &r.AverageTime, &r.TotalTime, &r.NumPlayed, &r.NumWins)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, model.AggregateRow{}, fmt.Errorf("player %q in %s: %w", player, window, repository.ErrNotFound)
	}
	if err != nil {
		return 0, model.AggregateRow{}, fmt.Errorf("sqlite: rank: %w", err)
	}
	return rank, r, nil
}
