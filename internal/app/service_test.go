package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/okian/minirank/internal/adapters/cache"
	"github.com/okian/minirank/internal/adapters/repository"
	service "github.com/okian/minirank/internal/app"
	"github.com/okian/minirank/internal/domain/model"
	"github.com/okian/minirank/internal/domain/normalize"
	"github.com/okian/minirank/internal/domain/types"
	"github.com/okian/minirank/internal/domain/window"
	"github.com/okian/minirank/internal/testevents"
	. "github.com/smartystreets/goconvey/convey"
)

var day1 = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return day1.AddDate(0, 0, n-1) }

// fetcherFunc serves canned entries.
type fetcherFunc func(ctx context.Context, day time.Time) ([]model.Entry, error)

func (f fetcherFunc) Fetch(ctx context.Context, day time.Time) ([]model.Entry, error) {
	return f(ctx, day)
}

// fakePublisher keeps published outputs in memory.
type fakePublisher struct {
	mu      sync.Mutex
	boards  map[string]types.Leaderboard
	failPub error
	failGet error
	calls   int
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{boards: make(map[string]types.Leaderboard)}
}

func (p *fakePublisher) Publish(_ context.Context, outputs []model.WindowOutput) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failPub != nil {
		return p.failPub
	}
	for _, o := range outputs {
		p.boards[o.Window] = types.Leaderboard{Window: o.Window, Through: "cached", Entries: types.Entries(o.Rows)}
	}
	return nil
}

func (p *fakePublisher) Leaderboard(_ context.Context, w string, _ int) (types.Leaderboard, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failGet != nil {
		return types.Leaderboard{}, p.failGet
	}
	lb, ok := p.boards[w]
	if !ok {
		return types.Leaderboard{}, cache.ErrMiss
	}
	return lb, nil
}

func (p *fakePublisher) Close() error { return nil }

// failingStore breaks selected operations of a real store.
type failingStore struct {
	repository.Store
	saveErr error
	badDay  time.Time
}

func (s *failingStore) SaveWindows(ctx context.Context, outputs []model.WindowOutput) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.Store.SaveWindows(ctx, outputs)
}

func (s *failingStore) Day(ctx context.Context, d time.Time) ([]model.RankedResult, error) {
	if d.Equal(s.badDay) {
		return nil, errors.New("disk on fire")
	}
	return s.Store.Day(ctx, d)
}

func importAll(ctx context.Context, svc *service.Service, days []testevents.Day) {
	for _, d := range days {
		_, err := svc.ImportDay(ctx, d.Date, d.Entries)
		if err != nil && !errors.Is(err, normalize.ErrEmptyLeaderboard) {
			panic(err)
		}
	}
}

func rows(ctx context.Context, store repository.Store, w string) []model.AggregateRow {
	r, _, err := store.Rows(ctx, w, 0)
	if err != nil {
		panic(err)
	}
	return r
}

func TestService_Ingest(t *testing.T) {
	Convey("Given a service with a remote fetcher", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		var fetched time.Time
		fetcher := fetcherFunc(func(_ context.Context, d time.Time) ([]model.Entry, error) {
			fetched = d
			return []model.Entry{
				{Player: "bob", Seconds: 40},
				{Player: "alice", Seconds: 30},
				{Player: "carol", Seconds: 40},
				{Player: "dave", Seconds: 0},
			}, nil
		})
		denver, err := time.LoadLocation("America/Denver")
		So(err, ShouldBeNil)
		svc := service.New(store,
			service.WithFetcher(fetcher),
			service.WithLocation(denver),
			service.WithClock(func() time.Time { return time.Date(2024, 3, 10, 3, 0, 0, 0, time.UTC) }),
		)

		Convey("When ingesting today", func() {
			n, err := svc.Ingest(ctx)

			Convey("Then today is the day in the configured zone", func() {
				So(err, ShouldBeNil)
				So(fetched, ShouldEqual, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC))
			})

			Convey("Then unsolved entries are dropped and ties share a rank", func() {
				So(n, ShouldEqual, 3)
				got, err := store.Day(ctx, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC))
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 3)
				So(got[0].Player, ShouldEqual, "alice")
				So(got[0].Rank, ShouldEqual, 1)
				So(got[1].Rank, ShouldEqual, 2)
				So(got[2].Rank, ShouldEqual, 2)
			})
		})

		Convey("When the fetcher fails", func() {
			svc := service.New(store, service.WithFetcher(fetcherFunc(func(context.Context, time.Time) ([]model.Entry, error) {
				return nil, errors.New("upstream down")
			})))
			_, err := svc.IngestDay(ctx, day(1))

			Convey("Then nothing is stored", func() {
				So(err, ShouldNotBeNil)
				_, _, err := store.Bounds(ctx)
				So(errors.Is(err, repository.ErrNoResults), ShouldBeTrue)
			})
		})
	})

	Convey("Given a service without a fetcher", t, func() {
		svc := service.New(repository.NewMemoryStore())

		Convey("Then ingest reports it", func() {
			_, err := svc.Ingest(context.Background())
			So(errors.Is(err, service.ErrNoFetcher), ShouldBeTrue)
		})
	})

	Convey("Given a day where nobody solved", t, func() {
		svc := service.New(repository.NewMemoryStore())

		Convey("Then import reports an empty leaderboard", func() {
			_, err := svc.ImportDay(context.Background(), day(1), []model.Entry{{Player: "a", Seconds: 0}})
			So(errors.Is(err, normalize.ErrEmptyLeaderboard), ShouldBeTrue)
		})
	})
}

func TestService_Update(t *testing.T) {
	Convey("Given three stored days", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		pub := newFakePublisher()
		svc := service.New(store, service.WithPublisher(pub), service.WithTrailingWindows([]int{2}))

		_, err := svc.ImportDay(ctx, day(1), []model.Entry{{Player: "A", Seconds: 30}, {Player: "B", Seconds: 40}})
		So(err, ShouldBeNil)
		_, err = svc.ImportDay(ctx, day(2), []model.Entry{{Player: "A", Seconds: 50}, {Player: "C", Seconds: 20}})
		So(err, ShouldBeNil)
		_, err = svc.ImportDay(ctx, day(3), []model.Entry{{Player: "B", Seconds: 25}})
		So(err, ShouldBeNil)

		Convey("When updating", func() {
			report, err := svc.Update(ctx)
			So(err, ShouldBeNil)

			Convey("Then every window is saved through the latest day", func() {
				So(report.RunID, ShouldNotBeEmpty)
				So(report.Through, ShouldEqual, day(3))
				So(report.Windows, ShouldHaveLength, 2)
				So(report.Windows[0].Window, ShouldEqual, "last_2")
				So(report.Windows[0].Start, ShouldEqual, day(2))
				So(report.Windows[1].Window, ShouldEqual, window.AllTime)
				So(report.Windows[1].Processed, ShouldEqual, 3)
				So(report.Windows[1].Seeded, ShouldBeFalse)

				all := rows(ctx, store, window.AllTime)
				So(all, ShouldHaveLength, 3)
				So(testevents.VerifyRows(all), ShouldBeNil)

				last2 := rows(ctx, store, "last_2")
				So(last2, ShouldHaveLength, 3)
			})

			Convey("Then the windows are published", func() {
				So(report.Published, ShouldBeTrue)
				So(pub.boards, ShouldContainKey, window.AllTime)
				So(pub.boards, ShouldContainKey, "last_2")
			})

			Convey("Then leaderboards are read from the cache", func() {
				lb, err := svc.Leaderboard(ctx, "ALL_TIME", 10)
				So(err, ShouldBeNil)
				So(lb.Through, ShouldEqual, "cached")
			})

			Convey("Then a rerun on the same day replays nothing", func() {
				before := rows(ctx, store, window.AllTime)
				again, err := svc.Update(ctx)
				So(err, ShouldBeNil)
				So(again.Windows[1].Seeded, ShouldBeTrue)
				So(again.Windows[1].Processed, ShouldEqual, 0)
				So(again.RunID, ShouldNotEqual, report.RunID)
				So(rows(ctx, store, window.AllTime), ShouldResemble, before)
			})
		})

		Convey("When publishing fails", func() {
			pub.failPub = errors.New("redis gone")
			report, err := svc.Update(ctx)

			Convey("Then the update still succeeds from the store", func() {
				So(err, ShouldBeNil)
				So(report.Published, ShouldBeFalse)
				lb, err := svc.Leaderboard(ctx, window.AllTime, 0)
				So(err, ShouldBeNil)
				So(lb.Through, ShouldEqual, "2024-03-06")
				So(lb.Entries, ShouldHaveLength, 3)
			})
		})

		Convey("When the cache is unreachable", func() {
			_, err := svc.Update(ctx)
			So(err, ShouldBeNil)
			pub.failGet = errors.New("timeout")

			Convey("Then reads fall back to the store", func() {
				lb, err := svc.Leaderboard(ctx, "last_2", 1)
				So(err, ShouldBeNil)
				So(lb.Through, ShouldEqual, "2024-03-06")
				So(lb.Entries, ShouldHaveLength, 1)
				So(lb.Entries[0].Rank, ShouldEqual, 1)
			})
		})

		Convey("When a window is unknown", func() {
			_, err := svc.Leaderboard(ctx, "last_7", 10)
			So(errors.Is(err, window.ErrUnknownWindow), ShouldBeTrue)
		})
	})

	Convey("Given an empty store", t, func() {
		svc := service.New(repository.NewMemoryStore())

		Convey("Then update reports there is nothing to do", func() {
			_, err := svc.Update(context.Background())
			So(errors.Is(err, repository.ErrNoResults), ShouldBeTrue)
		})

		Convey("Then leaderboards are not found", func() {
			_, err := svc.Leaderboard(context.Background(), window.AllTime, 10)
			So(errors.Is(err, repository.ErrNoSnapshot), ShouldBeTrue)
		})
	})

	Convey("Given a store that cannot save windows", t, func() {
		ctx := context.Background()
		store := &failingStore{Store: repository.NewMemoryStore(), saveErr: errors.New("tx aborted")}
		pub := newFakePublisher()
		svc := service.New(store, service.WithPublisher(pub))
		_, err := svc.ImportDay(ctx, day(1), []model.Entry{{Player: "A", Seconds: 30}})
		So(err, ShouldBeNil)

		Convey("Then the update fails and nothing is published", func() {
			_, err := svc.Update(ctx)
			So(err, ShouldNotBeNil)
			So(pub.calls, ShouldEqual, 0)
		})
	})

	Convey("Given a store that fails reading one day", t, func() {
		ctx := context.Background()
		store := &failingStore{Store: repository.NewMemoryStore(), badDay: day(2)}
		svc := service.New(store)
		for i := 1; i <= 3; i++ {
			_, err := svc.ImportDay(ctx, day(i), []model.Entry{{Player: "A", Seconds: 30 + i}})
			So(err, ShouldBeNil)
		}

		Convey("Then no window is saved", func() {
			_, err := svc.Update(ctx)
			So(err, ShouldNotBeNil)
			_, err = store.Snapshot(ctx, window.AllTime)
			So(errors.Is(err, repository.ErrNoSnapshot), ShouldBeTrue)
			_, _, err = store.Rows(ctx, "last_30", 0)
			So(errors.Is(err, repository.ErrNoSnapshot), ShouldBeTrue)
		})
	})
}

func TestService_IncrementalAllTime(t *testing.T) {
	Convey("Given a generated history", t, func() {
		ctx := context.Background()
		days := testevents.NewGenerator(testevents.WithDays(28), testevents.WithPlayers(6), testevents.WithSeed(11)).Generate()

		daily := repository.NewMemoryStore()
		dailySvc := service.New(daily)
		for _, d := range days {
			_, err := dailySvc.ImportDay(ctx, d.Date, d.Entries)
			if errors.Is(err, normalize.ErrEmptyLeaderboard) {
				continue
			}
			So(err, ShouldBeNil)
			_, err = dailySvc.Update(ctx)
			So(err, ShouldBeNil)
		}

		batch := repository.NewMemoryStore()
		batchSvc := service.New(batch)
		importAll(ctx, batchSvc, days)
		_, err := batchSvc.Rebuild(ctx)
		So(err, ShouldBeNil)

		Convey("Then daily updates equal one rebuild", func() {
			for _, w := range []string{window.AllTime, "last_30", "last_90"} {
				diff := cmp.Diff(rows(ctx, batch, w), rows(ctx, daily, w), cmpopts.EquateApprox(0, 1e-9))
				So(diff, ShouldBeEmpty)
			}
		})

		Convey("Then every window is consistent", func() {
			So(testevents.VerifyRows(rows(ctx, daily, window.AllTime)), ShouldBeNil)
		})
	})
}

func TestService_ReimportCoveredDay(t *testing.T) {
	Convey("Given two updated days", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		svc := service.New(store)
		_, err := svc.ImportDay(ctx, day(1), []model.Entry{{Player: "A", Seconds: 30}, {Player: "B", Seconds: 40}})
		So(err, ShouldBeNil)
		_, err = svc.ImportDay(ctx, day(2), []model.Entry{{Player: "A", Seconds: 30}})
		So(err, ShouldBeNil)
		_, err = svc.Update(ctx)
		So(err, ShouldBeNil)

		Convey("When the latest day is imported again with more results and updated", func() {
			_, err := svc.ImportDay(ctx, day(2), []model.Entry{
				{Player: "A", Seconds: 30}, {Player: "B", Seconds: 20}, {Player: "C", Seconds: 50},
			})
			So(err, ShouldBeNil)
			report, err := svc.Update(ctx)
			So(err, ShouldBeNil)

			Convey("Then the all-time window replays from the first day", func() {
				So(report.Windows[len(report.Windows)-1].Seeded, ShouldBeFalse)
				So(report.Windows[len(report.Windows)-1].Processed, ShouldEqual, 2)
			})

			Convey("Then it equals a rebuild over the same days", func() {
				incremental := rows(ctx, store, window.AllTime)
				So(incremental, ShouldHaveLength, 3)

				fresh := repository.NewMemoryStore()
				freshSvc := service.New(fresh)
				_, _ = freshSvc.ImportDay(ctx, day(1), []model.Entry{{Player: "A", Seconds: 30}, {Player: "B", Seconds: 40}})
				_, _ = freshSvc.ImportDay(ctx, day(2), []model.Entry{
					{Player: "A", Seconds: 30}, {Player: "B", Seconds: 20}, {Player: "C", Seconds: 50},
				})
				_, err := freshSvc.Rebuild(ctx)
				So(err, ShouldBeNil)

				diff := cmp.Diff(rows(ctx, fresh, window.AllTime), incremental, cmpopts.EquateApprox(0, 1e-9))
				So(diff, ShouldBeEmpty)
			})

			Convey("Then the next update resumes from the saved snapshot again", func() {
				_, err := svc.ImportDay(ctx, day(3), []model.Entry{{Player: "C", Seconds: 25}})
				So(err, ShouldBeNil)
				report, err := svc.Update(ctx)
				So(err, ShouldBeNil)
				So(report.Windows[len(report.Windows)-1].Seeded, ShouldBeTrue)
				So(report.Windows[len(report.Windows)-1].Processed, ShouldEqual, 1)
			})
		})
	})
}

func TestService_Window(t *testing.T) {
	Convey("Given stored days", t, func() {
		ctx := context.Background()
		svc := service.New(repository.NewMemoryStore())
		_, _ = svc.ImportDay(ctx, day(1), []model.Entry{{Player: "A", Seconds: 30}, {Player: "B", Seconds: 40}})
		_, _ = svc.ImportDay(ctx, day(3), []model.Entry{{Player: "B", Seconds: 20}})

		Convey("When running an ad-hoc window", func() {
			lb, err := svc.Window(ctx, day(1), day(3))

			Convey("Then rows cover the range without saving", func() {
				So(err, ShouldBeNil)
				So(lb.Window, ShouldEqual, "2024-03-04..2024-03-06")
				So(lb.Through, ShouldEqual, "2024-03-06")
				So(lb.Entries, ShouldHaveLength, 2)
				So(lb.Entries[0].Rank, ShouldEqual, 1)
			})
		})

		Convey("When the range is inverted", func() {
			_, err := svc.Window(ctx, day(3), day(1))
			So(errors.Is(err, window.ErrInvalidRange), ShouldBeTrue)
		})
	})
}
