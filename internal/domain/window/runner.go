// Package window drives rating and aggregation over a closed day range.
package window

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/minirank/internal/domain/model"
	"github.com/okian/minirank/internal/domain/normalize"
	"github.com/okian/minirank/internal/domain/rating"
	"github.com/okian/minirank/internal/domain/stats"
	"github.com/okian/minirank/pkg/dateutil"
	"github.com/okian/minirank/pkg/logger"
	"github.com/okian/minirank/pkg/metrics"
)

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithScale sets the derived score multiplier.
func WithScale(scale float64) Option {
	return func(r *Runner) {
		if scale > 0 {
			r.scale = scale
		}
	}
}

// WithName labels logs and metrics for this runner.
func WithName(name string) Option {
	return func(r *Runner) {
		if name != "" {
			r.name = name
		}
	}
}

// Runner folds days from a Source into rows. Each Run builds its own
// engine and aggregator, so one Runner may serve concurrent runs.
type Runner struct {
	src    Source
	priors rating.Config
	scale  float64
	name   string
	log    logger.Logger
}

// Result is the outcome of one run.
type Result struct {
	Rows      []model.AggregateRow
	Snapshot  model.Snapshot
	Processed int
	Skipped   int
}

// NewRunner creates a runner over src with the given priors.
func NewRunner(src Source, priors rating.Config, opts ...Option) *Runner {
	r := &Runner{
		src:    src,
		priors: priors,
		scale:  stats.DefaultScale,
		name:   "adhoc",
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes [start, end] in order. When seed is non-zero the run
// resumes from it and only replays days after seed.Through, so seeding
// with the snapshot of days 1..K and running to N equals a fresh run
// over 1..N. No rows are returned when any day fails.
func (r *Runner) Run(ctx context.Context, start, end time.Time, seed model.Snapshot) (Result, error) {
	started := time.Now()
	res, err := r.run(ctx, dateutil.Day(start), dateutil.Day(end), seed)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordWindowRun(r.name, status, time.Since(started))
	return res, err
}

func (r *Runner) run(ctx context.Context, start, end time.Time, seed model.Snapshot) (Result, error) {
	if end.Before(start) {
		return Result{}, fmt.Errorf("%s..%s: %w", dateutil.Format(start), dateutil.Format(end), ErrInvalidRange)
	}

	engine, err := rating.New(r.priors, rating.WithSeed(seed.Skills))
	if err != nil {
		return Result{}, err
	}
	agg := stats.New(stats.WithScale(r.scale), stats.WithSeed(seed.Counters))

	through := seed.Through
	if !seed.Through.IsZero() {
		resume := dateutil.AddDays(dateutil.Day(seed.Through), 1)
		if resume.After(start) {
			start = resume
		}
	}

	r.log.Info(ctx, "window run started",
		logger.String("window", r.name),
		logger.Day("start", start),
		logger.Day("end", end),
		logger.Bool("seeded", !seed.IsZero()),
	)

	var res Result
	for _, day := range dateutil.Range(start, end) {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		entries, err := r.src.Fetch(ctx, day)
		if err != nil {
			return Result{}, fmt.Errorf("fetch %s: %w", dateutil.Format(day), err)
		}
		ranked, err := normalize.Rank(day, entries)
		if errors.Is(err, normalize.ErrEmptyLeaderboard) {
			r.log.Debug(ctx, "skipping empty day", logger.String("window", r.name), logger.Day("day", day))
			metrics.RecordDaySkipped(r.name)
			res.Skipped++
			through = day
			continue
		}
		if err != nil {
			return Result{}, err
		}
		if err := engine.Update(ranked); err != nil {
			return Result{}, fmt.Errorf("rate %s: %w", dateutil.Format(day), err)
		}
		agg.Accumulate(ranked)
		metrics.RecordDayProcessed(r.name)
		res.Processed++
		through = day
	}

	skills := engine.Snapshot()
	rows, err := agg.Finalize(skills)
	if err != nil {
		return Result{}, fmt.Errorf("finalize %s: %w", r.name, err)
	}

	res.Rows = rows
	res.Snapshot = model.Snapshot{Through: through, Skills: skills, Counters: agg.Counters()}
	metrics.UpdateWindowPlayers(r.name, len(rows))
	r.log.Info(ctx, "window run finished",
		logger.String("window", r.name),
		logger.Int("processed", res.Processed),
		logger.Int("skipped", res.Skipped),
		logger.Int("players", len(rows)),
	)
	return res, nil
}
