package normalize_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/minirank/internal/domain/model"
	"github.com/okian/minirank/internal/domain/normalize"
	. "github.com/smartystreets/goconvey/convey"
)

var day = time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)

func TestRank(t *testing.T) {
	Convey("Given a day with a tie for first", t, func() {
		entries := []model.Entry{
			{Player: "C", Seconds: 45},
			{Player: "A", Seconds: 30},
			{Player: "B", Seconds: 30},
		}

		Convey("When ranking", func() {
			got, err := normalize.Rank(day, entries)
			So(err, ShouldBeNil)

			Convey("Then ties share the first rank and the next time skips ahead", func() {
				So(got, ShouldHaveLength, 3)
				So(got[0], ShouldResemble, model.RankedResult{Day: day, Player: "A", Seconds: 30, Rank: 1})
				So(got[1], ShouldResemble, model.RankedResult{Day: day, Player: "B", Seconds: 30, Rank: 1})
				So(got[2], ShouldResemble, model.RankedResult{Day: day, Player: "C", Seconds: 45, Rank: 3})
			})

			Convey("And the input is left in place", func() {
				So(entries[0].Player, ShouldEqual, "C")
			})
		})
	})

	Convey("Given a tie in the middle of the field", t, func() {
		entries := []model.Entry{
			{Player: "a", Seconds: 10},
			{Player: "b", Seconds: 20},
			{Player: "c", Seconds: 20},
			{Player: "d", Seconds: 20},
			{Player: "e", Seconds: 21},
		}
		got, err := normalize.Rank(day, entries)
		So(err, ShouldBeNil)

		ranks := make([]int, len(got))
		for i, r := range got {
			ranks[i] = r.Rank
		}
		So(ranks, ShouldResemble, []int{1, 2, 2, 2, 5})
	})

	Convey("Given no entries", t, func() {
		_, err := normalize.Rank(day, nil)

		Convey("Then the leaderboard is reported empty", func() {
			So(errors.Is(err, normalize.ErrEmptyLeaderboard), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "2024-03-09")
		})
	})

	Convey("Given malformed entries", t, func() {
		Convey("Then a negative time is rejected", func() {
			_, err := normalize.Rank(day, []model.Entry{{Player: "a", Seconds: -1}})
			So(errors.Is(err, normalize.ErrInvalidEntry), ShouldBeTrue)
		})

		Convey("Then an empty player is rejected", func() {
			_, err := normalize.Rank(day, []model.Entry{{Player: "", Seconds: 3}})
			So(errors.Is(err, normalize.ErrInvalidEntry), ShouldBeTrue)
		})

		Convey("Then a player listed twice is rejected", func() {
			_, err := normalize.Rank(day, []model.Entry{{Player: "a", Seconds: 3}, {Player: "a", Seconds: 4}})
			So(errors.Is(err, normalize.ErrDuplicatePlayer), ShouldBeTrue)
		})
	})
}

func TestDropUnsolved(t *testing.T) {
	Convey("Given entries with zero times", t, func() {
		in := []model.Entry{{Player: "a", Seconds: 0}, {Player: "b", Seconds: 31}}

		Convey("Then only solved entries remain", func() {
			So(normalize.DropUnsolved(in), ShouldResemble, []model.Entry{{Player: "b", Seconds: 31}})
			So(normalize.DropUnsolved(nil), ShouldBeEmpty)
		})
	})
}

func TestEntries(t *testing.T) {
	Convey("Given ranked results", t, func() {
		ranked, err := normalize.Rank(day, []model.Entry{{Player: "b", Seconds: 9}, {Player: "a", Seconds: 5}})
		So(err, ShouldBeNil)

		Convey("Then stripping ranks keeps rank order", func() {
			So(normalize.Entries(ranked), ShouldResemble, []model.Entry{{Player: "a", Seconds: 5}, {Player: "b", Seconds: 9}})
		})
	})
}
