package dateutil_test

import (
	"testing"
	"time"

	"github.com/okian/minirank/pkg/dateutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRange(t *testing.T) {
	Convey("Given a closed day range", t, func() {
		start := time.Date(2024, 2, 27, 0, 0, 0, 0, time.UTC)
		end := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

		Convey("When expanding it across a leap day", func() {
			days := dateutil.Range(start, end)

			Convey("Then both ends are included in order", func() {
				So(len(days), ShouldEqual, 5)
				So(dateutil.Format(days[0]), ShouldEqual, "2024-02-27")
				So(dateutil.Format(days[2]), ShouldEqual, "2024-02-29")
				So(dateutil.Format(days[4]), ShouldEqual, "2024-03-02")
				So(dateutil.DaysBetween(start, end), ShouldEqual, 4)
			})
		})

		Convey("When the range is inverted", func() {
			So(dateutil.Range(end, start), ShouldBeNil)
		})

		Convey("When the range is a single day", func() {
			So(len(dateutil.Range(start, start)), ShouldEqual, 1)
		})
	})
}

func TestToday(t *testing.T) {
	Convey("Given an instant just after midnight UTC", t, func() {
		now := time.Date(2024, 3, 10, 3, 0, 0, 0, time.UTC)
		denver, err := time.LoadLocation("America/Denver")
		So(err, ShouldBeNil)

		Convey("Then the Mountain puzzle day is still the previous date", func() {
			So(dateutil.Format(dateutil.Today(now, denver)), ShouldEqual, "2024-03-09")
			So(dateutil.Format(dateutil.Today(now, nil)), ShouldEqual, "2024-03-10")
		})
	})
}

func TestParse(t *testing.T) {
	Convey("Given day strings", t, func() {
		d, err := dateutil.Parse("2024-03-09")
		So(err, ShouldBeNil)
		So(dateutil.IsSaturday(d), ShouldBeTrue)
		So(dateutil.Format(dateutil.AddDays(d, -29)), ShouldEqual, "2024-02-09")

		_, err = dateutil.Parse("03/09/2024")
		So(err, ShouldNotBeNil)
	})
}
