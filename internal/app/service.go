// Package service orchestrates the daily ingest and update jobs and
// answers the read queries behind the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/minirank/internal/adapters/cache"
	"github.com/okian/minirank/internal/adapters/repository"
	"github.com/okian/minirank/internal/domain/model"
	"github.com/okian/minirank/internal/domain/normalize"
	"github.com/okian/minirank/internal/domain/rating"
	"github.com/okian/minirank/internal/domain/stats"
	"github.com/okian/minirank/internal/domain/types"
	"github.com/okian/minirank/internal/domain/window"
	"github.com/okian/minirank/pkg/dateutil"
	"github.com/okian/minirank/pkg/logger"
	"github.com/okian/minirank/pkg/metrics"
)

// ErrNoFetcher is returned by ingest when no remote source is configured.
var ErrNoFetcher = errors.New("no leaderboard fetcher configured")

// Publisher receives saved window outputs and serves them back.
type Publisher interface {
	Publish(ctx context.Context, outputs []model.WindowOutput) error
	Leaderboard(ctx context.Context, window string, limit int) (types.Leaderboard, error)
	Close() error
}

// Service ties the store, the remote source and the optional cache together.
type Service struct {
	store     repository.Store
	fetcher   window.Source
	publisher Publisher

	specs  []window.Spec
	priors rating.Config
	scale  float64
	loc    *time.Location
	now    func() time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithFetcher sets the remote leaderboard source used by ingest.
func WithFetcher(f window.Source) Option {
	return func(s *Service) { s.fetcher = f }
}

// WithPublisher enables publishing saved windows to a cache.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithTrailingWindows sets the trailing window lengths in days.
func WithTrailingWindows(days []int) Option {
	return func(s *Service) {
		s.specs = window.Specs(days)
	}
}

// WithPriors sets the prior skill of new players.
func WithPriors(cfg rating.Config) Option {
	return func(s *Service) { s.priors = cfg }
}

// WithScale sets the derived score multiplier.
func WithScale(scale float64) Option {
	return func(s *Service) {
		if scale > 0 {
			s.scale = scale
		}
	}
}

// WithLocation sets the timezone deciding which puzzle day is today.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service over store.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		specs:  window.Specs([]int{30, 90}),
		priors: rating.DefaultConfig(),
		scale:  stats.DefaultScale,
		loc:    time.UTC,
		now:    time.Now,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases the store and the publisher.
func (s *Service) Close() error {
	var errs []error
	if s.publisher != nil {
		errs = append(errs, s.publisher.Close())
	}
	errs = append(errs, s.store.Close())
	return errors.Join(errs...)
}

// Windows lists the configured windows, trailing first.
func (s *Service) Windows() []window.Spec {
	out := make([]window.Spec, len(s.specs))
	copy(out, s.specs)
	return out
}

// Today returns the current puzzle day.
func (s *Service) Today() time.Time {
	return dateutil.Today(s.now(), s.loc)
}

// Ingest fetches and stores today's leaderboard.
func (s *Service) Ingest(ctx context.Context) (int, error) {
	return s.IngestDay(ctx, s.Today())
}

// IngestDay fetches day from the remote source and replaces its stored
// results. It returns the number of stored results.
func (s *Service) IngestDay(ctx context.Context, day time.Time) (int, error) {
	if s.fetcher == nil {
		return 0, ErrNoFetcher
	}
	entries, err := s.fetcher.Fetch(ctx, day)
	if err != nil {
		metrics.RecordErrorByComponent("ingest", "fetch")
		return 0, err
	}
	return s.ImportDay(ctx, day, entries)
}

// ImportDay ranks entries and replaces the day's stored results.
// Unsolved entries are dropped first.
func (s *Service) ImportDay(ctx context.Context, day time.Time, entries []model.Entry) (int, error) {
	day = dateutil.Day(day)
	ranked, err := normalize.Rank(day, normalize.DropUnsolved(entries))
	if err != nil {
		return 0, err
	}
	if err := s.store.SaveDay(ctx, day, ranked); err != nil {
		metrics.RecordErrorByComponent("ingest", "store")
		return 0, fmt.Errorf("save %s: %w", dateutil.Format(day), err)
	}
	metrics.RecordResultsIngested(len(ranked))
	s.logger.Info(ctx, "day ingested", logger.Day("day", day), logger.Int("results", len(ranked)))
	return len(ranked), nil
}

// WindowReport summarises one window of an update.
type WindowReport struct {
	Window    string    `json:"window"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Seeded    bool      `json:"seeded"`
	Processed int       `json:"processed"`
	Skipped   int       `json:"skipped"`
	Players   int       `json:"players"`
}

// UpdateReport summarises an update run.
type UpdateReport struct {
	RunID     string         `json:"run_id"`
	Through   time.Time      `json:"through"`
	Windows   []WindowReport `json:"windows"`
	Published bool           `json:"published"`
}

// Update recomputes every window up to the latest stored day. Trailing
// windows are rebuilt; the all-time window resumes from its stored
// snapshot unless a day it covers was replaced since, in which case it
// is rebuilt too. Nothing is saved unless every window succeeds.
func (s *Service) Update(ctx context.Context) (UpdateReport, error) {
	return s.update(ctx, false)
}

// Rebuild is Update with the all-time window recomputed from the first
// stored day.
func (s *Service) Rebuild(ctx context.Context) (UpdateReport, error) {
	return s.update(ctx, true)
}

func (s *Service) update(ctx context.Context, fresh bool) (UpdateReport, error) {
	report := UpdateReport{RunID: uuid.NewString()}
	log := s.logger.Named("update")

	earliest, latest, err := s.store.Bounds(ctx)
	if err != nil {
		return report, fmt.Errorf("bounds: %w", err)
	}
	report.Through = latest

	log.Info(ctx, "update started",
		logger.String("run_id", report.RunID),
		logger.Day("earliest", earliest),
		logger.Day("latest", latest),
		logger.Bool("fresh", fresh),
	)

	src := window.NewCachedSource(window.SourceFunc(s.storedEntries))
	outputs := make([]model.WindowOutput, len(s.specs))
	report.Windows = make([]WindowReport, len(s.specs))

	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range s.specs {
		g.Go(func() error {
			seed := model.Snapshot{}
			if spec.Seeded() && !fresh {
				snap, err := s.store.Snapshot(gctx, spec.Name)
				switch {
				case err == nil:
					seed = snap
				case errors.Is(err, repository.ErrStaleSnapshot):
					log.Warn(gctx, "covered day replaced, replaying window from the first day",
						logger.String("run_id", report.RunID), logger.String("window", spec.Name))
				case !errors.Is(err, repository.ErrNoSnapshot):
					return fmt.Errorf("snapshot %s: %w", spec.Name, err)
				}
			}

			start, end := spec.Range(earliest, latest)
			runner := window.NewRunner(src, s.priors,
				window.WithLogger(log),
				window.WithScale(s.scale),
				window.WithName(spec.Name),
			)
			res, err := runner.Run(gctx, start, end, seed)
			if err != nil {
				return fmt.Errorf("window %s: %w", spec.Name, err)
			}

			outputs[i] = model.WindowOutput{Window: spec.Name, Through: res.Snapshot.Through, Rows: res.Rows}
			report.Windows[i] = WindowReport{
				Window:    spec.Name,
				Start:     start,
				End:       end,
				Seeded:    !seed.IsZero(),
				Processed: res.Processed,
				Skipped:   res.Skipped,
				Players:   len(res.Rows),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.RecordErrorByComponent("update", "window")
		log.Error(ctx, "update failed", logger.String("run_id", report.RunID), logger.Error(err))
		return report, err
	}

	if err := s.store.SaveWindows(ctx, outputs); err != nil {
		metrics.RecordErrorByComponent("update", "store")
		log.Error(ctx, "saving windows failed", logger.String("run_id", report.RunID), logger.Error(err))
		return report, fmt.Errorf("save windows: %w", err)
	}
	metrics.UpdateLastUpdate(s.now())
	log.Info(ctx, "windows saved", logger.String("run_id", report.RunID), logger.Int("windows", len(outputs)))

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, outputs); err != nil {
			metrics.RecordCachePublishError()
			log.Error(ctx, "publishing windows failed", logger.String("run_id", report.RunID), logger.Error(err))
		} else {
			report.Published = true
		}
	}
	return report, nil
}

// storedEntries reads a stored day back as raw entries.
func (s *Service) storedEntries(ctx context.Context, day time.Time) ([]model.Entry, error) {
	results, err := s.store.Day(ctx, day)
	if err != nil {
		return nil, err
	}
	return normalize.Entries(results), nil
}

// Window runs an ad-hoc window over [from, to] on stored results. Nothing
// is saved.
func (s *Service) Window(ctx context.Context, from, to time.Time) (types.Leaderboard, error) {
	runner := window.NewRunner(window.SourceFunc(s.storedEntries), s.priors,
		window.WithLogger(s.logger.Named("adhoc")),
		window.WithScale(s.scale),
	)
	res, err := runner.Run(ctx, from, to, model.Snapshot{})
	if err != nil {
		return types.Leaderboard{}, err
	}
	return types.Leaderboard{
		Window:  fmt.Sprintf("%s..%s", dateutil.Format(from), dateutil.Format(to)),
		Through: dateutil.Format(res.Snapshot.Through),
		Entries: types.Entries(res.Rows),
	}, nil
}

// Leaderboard returns the first limit rows of a window (all when
// limit <= 0), from the cache when it has them.
func (s *Service) Leaderboard(ctx context.Context, name string, limit int) (types.Leaderboard, error) {
	spec, err := window.Lookup(s.specs, name)
	if err != nil {
		return types.Leaderboard{}, err
	}

	if s.publisher != nil {
		lb, err := s.publisher.Leaderboard(ctx, spec.Name, limit)
		if err == nil {
			metrics.RecordCacheRead("cache")
			return lb, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn(ctx, "cache read failed", logger.String("window", spec.Name), logger.Error(err))
		}
	}

	rows, through, err := s.store.Rows(ctx, spec.Name, limit)
	if err != nil {
		return types.Leaderboard{}, err
	}
	metrics.RecordCacheRead("store")
	return types.Leaderboard{
		Window:  spec.Name,
		Through: dateutil.Format(through),
		Entries: types.Entries(rows),
	}, nil
}
