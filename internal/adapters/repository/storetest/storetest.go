// Package storetest holds the behaviour every repository.Store must pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/minirank/internal/adapters/repository"
	"github.com/okian/minirank/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var (
	day1 = time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	day3 = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
)

func rr(day time.Time, player string, seconds, rank int) model.RankedResult {
	return model.RankedResult{Day: day, Player: player, Seconds: seconds, Rank: rank}
}

// Run exercises a fresh store from newStore for every leaf.
func Run(t *testing.T, newStore func(t *testing.T) repository.Store) {
	t.Helper()
	ctx := context.Background()

	Convey("Given an empty store", t, func() {
		s := newStore(t)
		Reset(func() { _ = s.Close() })

		Convey("Then there are no bounds, windows or players", func() {
			_, _, err := s.Bounds(ctx)
			So(errors.Is(err, repository.ErrNoResults), ShouldBeTrue)

			_, err = s.Snapshot(ctx, "all_time")
			So(errors.Is(err, repository.ErrNoSnapshot), ShouldBeTrue)

			_, _, err = s.Rows(ctx, "all_time", 0)
			So(errors.Is(err, repository.ErrNoSnapshot), ShouldBeTrue)

			_, err = s.PlayerResults(ctx, "nobody")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)

			rows, err := s.Day(ctx, day1)
			So(err, ShouldBeNil)
			So(rows, ShouldBeEmpty)
		})

		Convey("When results are saved for three days", func() {
			So(s.SaveDay(ctx, day1, []model.RankedResult{
				rr(day1, "c", 45, 3), rr(day1, "b", 30, 1), rr(day1, "a", 30, 1),
			}), ShouldBeNil)
			So(s.SaveDay(ctx, day2, []model.RankedResult{rr(day2, "a", 25, 1), rr(day2, "b", 90, 2)}), ShouldBeNil)
			So(s.SaveDay(ctx, day3, []model.RankedResult{rr(day3, "b", 20, 1)}), ShouldBeNil)

			Convey("Then a day reads back ordered by time then player", func() {
				rows, err := s.Day(ctx, day1)
				So(err, ShouldBeNil)
				So(rows, ShouldResemble, []model.RankedResult{
					rr(day1, "a", 30, 1), rr(day1, "b", 30, 1), rr(day1, "c", 45, 3),
				})
			})

			Convey("Then bounds span the stored days", func() {
				first, last, err := s.Bounds(ctx)
				So(err, ShouldBeNil)
				So(first.Equal(day1), ShouldBeTrue)
				So(last.Equal(day3), ShouldBeTrue)
			})

			Convey("Then a player's results come back in day order", func() {
				rows, err := s.PlayerResults(ctx, "b")
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 3)
				So(rows[0].Day.Equal(day1), ShouldBeTrue)
				So(rows[2].Seconds, ShouldEqual, 20)
			})

			Convey("Then the fastest results are ordered by time, day, player", func() {
				rows, err := s.Fastest(ctx, 3)
				So(err, ShouldBeNil)
				So(rows, ShouldResemble, []model.RankedResult{
					rr(day3, "b", 20, 1), rr(day2, "a", 25, 1), rr(day1, "a", 30, 1),
				})

				_, err = s.Fastest(ctx, 0)
				So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
			})

			Convey("Then saving a day again replaces it", func() {
				So(s.SaveDay(ctx, day1, []model.RankedResult{rr(day1, "z", 99, 1)}), ShouldBeNil)
				rows, err := s.Day(ctx, day1)
				So(err, ShouldBeNil)
				So(rows, ShouldResemble, []model.RankedResult{rr(day1, "z", 99, 1)})

				_, err = s.PlayerResults(ctx, "c")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When windows are saved", func() {
			allTime := model.WindowOutput{
				Window:  "all_time",
				Through: day2,
				Rows: []model.AggregateRow{
					{Player: "b", Mu: 28, Sigma: 3, Score: 1140, AverageTime: 60, TotalTime: 120, NumPlayed: 2, NumWins: 1},
					{Player: "a", Mu: 30, Sigma: 2, Score: 1440, AverageTime: 27.5, TotalTime: 55, NumPlayed: 2, NumWins: 2},
					{Player: "c", Mu: 20, Sigma: 5, Score: 300, AverageTime: 45, TotalTime: 45, NumPlayed: 1},
				},
			}
			last30 := model.WindowOutput{
				Window:  "last_30",
				Through: day2,
				Rows:    []model.AggregateRow{{Player: "a", Mu: 26, Sigma: 4, Score: 840, AverageTime: 25, TotalTime: 25, NumPlayed: 1, NumWins: 1}},
			}
			So(s.SaveWindows(ctx, []model.WindowOutput{allTime, last30}), ShouldBeNil)

			Convey("Then rows come back ordered and limited", func() {
				rows, through, err := s.Rows(ctx, "all_time", 0)
				So(err, ShouldBeNil)
				So(through.Equal(day2), ShouldBeTrue)
				So(rows, ShouldHaveLength, 3)
				So(rows[0].Player, ShouldEqual, "a")
				So(rows[1].Player, ShouldEqual, "b")
				So(rows[0], ShouldResemble, allTime.Rows[1])

				top, _, err := s.Rows(ctx, "all_time", 2)
				So(err, ShouldBeNil)
				So(top, ShouldHaveLength, 2)
			})

			Convey("Then a player's rank is their position", func() {
				rank, row, err := s.Rank(ctx, "all_time", "c")
				So(err, ShouldBeNil)
				So(rank, ShouldEqual, 3)
				So(row.NumPlayed, ShouldEqual, 1)

				_, _, err = s.Rank(ctx, "last_30", "c")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("Then the snapshot rebuilds skill and counters", func() {
				snap, err := s.Snapshot(ctx, "all_time")
				So(err, ShouldBeNil)
				So(snap.Through.Equal(day2), ShouldBeTrue)
				So(snap.Skills["a"], ShouldResemble, model.SkillState{Mu: 30, Sigma: 2})
				So(snap.Counters["b"], ShouldResemble, model.Counters{Played: 2, Wins: 1, TotalTime: 120})
			})

			Convey("Then replacing a covered day marks the window stale until it is saved again", func() {
				So(s.SaveDay(ctx, day3, []model.RankedResult{rr(day3, "a", 20, 1)}), ShouldBeNil)
				_, err := s.Snapshot(ctx, "all_time")
				So(err, ShouldBeNil)

				So(s.SaveDay(ctx, day2, []model.RankedResult{rr(day2, "a", 20, 1)}), ShouldBeNil)
				_, err = s.Snapshot(ctx, "all_time")
				So(errors.Is(err, repository.ErrStaleSnapshot), ShouldBeTrue)
				_, err = s.Snapshot(ctx, "last_30")
				So(errors.Is(err, repository.ErrStaleSnapshot), ShouldBeTrue)

				rows, _, err := s.Rows(ctx, "all_time", 0)
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 3)

				So(s.SaveWindows(ctx, []model.WindowOutput{allTime}), ShouldBeNil)
				snap, err := s.Snapshot(ctx, "all_time")
				So(err, ShouldBeNil)
				So(snap.Through.Equal(day2), ShouldBeTrue)
				_, err = s.Snapshot(ctx, "last_30")
				So(errors.Is(err, repository.ErrStaleSnapshot), ShouldBeTrue)
			})

			Convey("Then saving a window again replaces its rows only", func() {
				So(s.SaveWindows(ctx, []model.WindowOutput{{
					Window:  "all_time",
					Through: day3,
					Rows:    []model.AggregateRow{{Player: "a", Mu: 31, Sigma: 2, Score: 1500, AverageTime: 25, TotalTime: 75, NumPlayed: 3, NumWins: 3}},
				}}), ShouldBeNil)

				rows, through, err := s.Rows(ctx, "all_time", 0)
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
				So(through.Equal(day3), ShouldBeTrue)

				other, _, err := s.Rows(ctx, "last_30", 0)
				So(err, ShouldBeNil)
				So(other, ShouldHaveLength, 1)
			})
		})
	})
}
