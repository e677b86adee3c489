package rating_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/minirank/internal/domain/model"
	"github.com/okian/minirank/internal/domain/normalize"
	"github.com/okian/minirank/internal/domain/rating"
	. "github.com/smartystreets/goconvey/convey"
)

var (
	day1 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 = day1.AddDate(0, 0, 1)
)

func ranked(day time.Time, entries ...model.Entry) []model.RankedResult {
	out, err := normalize.Rank(day, entries)
	if err != nil {
		panic(err)
	}
	return out
}

func TestNew(t *testing.T) {
	Convey("Given a non-positive sigma", t, func() {
		_, err := rating.New(rating.Config{Mu: 25, Sigma: 0})
		So(errors.Is(err, rating.ErrInvalidPrior), ShouldBeTrue)
	})

	Convey("Given a seed", t, func() {
		seed := map[string]model.SkillState{"a": {Mu: 30, Sigma: 2}}
		e, err := rating.New(rating.DefaultConfig(), rating.WithSeed(seed))
		So(err, ShouldBeNil)

		Convey("Then seeded players keep their state", func() {
			So(e.Get("a"), ShouldResemble, model.SkillState{Mu: 30, Sigma: 2})
		})

		Convey("And the seed map is not aliased", func() {
			seed["a"] = model.SkillState{}
			So(e.Get("a").Mu, ShouldEqual, 30)
		})
	})
}

func TestGet(t *testing.T) {
	Convey("Given an empty engine with custom priors", t, func() {
		e, err := rating.New(rating.Config{Mu: 1500, Sigma: 350})
		So(err, ShouldBeNil)
		So(e.Len(), ShouldEqual, 0)

		Convey("When a player is first touched", func() {
			s := e.Get("new")

			Convey("Then the prior is returned and materialized", func() {
				So(s, ShouldResemble, model.SkillState{Mu: 1500, Sigma: 350})
				So(e.Len(), ShouldEqual, 1)
				So(e.Snapshot(), ShouldContainKey, "new")
			})
		})
	})
}

func TestUpdate(t *testing.T) {
	Convey("Given the two day scenario", t, func() {
		e, err := rating.New(rating.DefaultConfig())
		So(err, ShouldBeNil)
		prior := rating.DefaultConfig().Prior()

		So(e.Update(ranked(day1,
			model.Entry{Player: "A", Seconds: 30},
			model.Entry{Player: "B", Seconds: 30},
			model.Entry{Player: "C", Seconds: 45},
		)), ShouldBeNil)

		Convey("Then the tied leaders share an equal larger gain than C", func() {
			a, b, c := e.Get("A"), e.Get("B"), e.Get("C")
			So(a, ShouldResemble, b)
			So(a.Mu-prior.Mu, ShouldBeGreaterThan, c.Mu-prior.Mu)
			So(a.Sigma, ShouldBeLessThan, prior.Sigma)
		})

		Convey("When only A plays day two", func() {
			before := e.Snapshot()
			So(e.Update(ranked(day2, model.Entry{Player: "A", Seconds: 25})), ShouldBeNil)
			after := e.Snapshot()

			Convey("Then absent players are untouched", func() {
				So(after["B"], ShouldResemble, before["B"])
				So(after["C"], ShouldResemble, before["C"])
			})

			Convey("Then a lone player has nobody to beat", func() {
				So(after["A"], ShouldResemble, before["A"])
			})
		})
	})

	Convey("Given a day whose tied players are not adjacent", t, func() {
		e, _ := rating.New(rating.DefaultConfig())
		So(e.Update([]model.RankedResult{
			{Day: day1, Player: "A", Seconds: 40, Rank: 2},
			{Day: day1, Player: "X", Seconds: 30, Rank: 1},
			{Day: day1, Player: "Y", Seconds: 50, Rank: 4},
			{Day: day1, Player: "Z", Seconds: 60, Rank: 5},
			{Day: day1, Player: "B", Seconds: 40, Rank: 2},
		}), ShouldBeNil)

		Convey("Then the tied players share an identical posterior", func() {
			So(e.Get("A"), ShouldResemble, e.Get("B"))
		})
	})

	Convey("Given an empty day", t, func() {
		e, _ := rating.New(rating.DefaultConfig())
		So(e.Update(nil), ShouldBeNil)
		So(e.Len(), ShouldEqual, 0)
	})

	Convey("Given the same days replayed on two engines", t, func() {
		days := [][]model.RankedResult{
			ranked(day1, model.Entry{Player: "x", Seconds: 50}, model.Entry{Player: "y", Seconds: 40}, model.Entry{Player: "z", Seconds: 40}),
			ranked(day2, model.Entry{Player: "x", Seconds: 20}, model.Entry{Player: "z", Seconds: 60}),
		}
		a, _ := rating.New(rating.DefaultConfig())
		b, _ := rating.New(rating.DefaultConfig())
		for _, d := range days {
			So(a.Update(d), ShouldBeNil)
			So(b.Update(d), ShouldBeNil)
		}

		Convey("Then their snapshots are identical", func() {
			So(a.Snapshot(), ShouldResemble, b.Snapshot())
		})
	})
}
