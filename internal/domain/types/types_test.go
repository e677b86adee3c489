package types_test

import (
	"testing"
	"time"

	"github.com/okian/minirank/internal/domain/model"
	types "github.com/okian/minirank/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEntries(t *testing.T) {
	Convey("Given ordered rows", t, func() {
		rows := []model.AggregateRow{
			{Player: "a", Mu: 30, Sigma: 2, Score: 1440, AverageTime: 25, TotalTime: 50, NumPlayed: 2, NumWins: 1},
			{Player: "b", Mu: 20, Sigma: 5, Score: 300, AverageTime: 40, TotalTime: 40, NumPlayed: 1},
		}

		Convey("When positioning them", func() {
			entries := types.Entries(rows)

			Convey("Then ranks are 1-based in row order", func() {
				So(entries[0].Rank, ShouldEqual, 1)
				So(entries[1].Rank, ShouldEqual, 2)
				So(entries[1].Player, ShouldEqual, "b")
			})

			Convey("Then an entry converts back to its row", func() {
				So(entries[0].Row(), ShouldResemble, rows[0])
			})
		})

		Convey("When there are no rows", func() {
			So(types.Entries(nil), ShouldBeEmpty)
		})
	})
}

func TestResults(t *testing.T) {
	Convey("Given a ranked result", t, func() {
		r := model.RankedResult{Day: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), Player: "a", Seconds: 31, Rank: 2}

		Convey("Then the served date is ISO", func() {
			So(types.Results([]model.RankedResult{r}), ShouldResemble, []types.Result{
				{Date: "2024-03-09", Player: "a", Seconds: 31, Rank: 2},
			})
		})
	})
}
