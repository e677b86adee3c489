package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/minirank/internal/adapters/http/api"
	"github.com/okian/minirank/internal/adapters/repository"
	service "github.com/okian/minirank/internal/app"
	"github.com/okian/minirank/internal/domain/model"
	"github.com/okian/minirank/internal/domain/types"
	"github.com/okian/minirank/internal/domain/window"
	. "github.com/smartystreets/goconvey/convey"
)

var monday = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func newTestService() *service.Service {
	ctx := context.Background()
	svc := service.New(repository.NewMemoryStore())
	days := [][]model.Entry{
		{{Player: "ann", Seconds: 30}, {Player: "ben", Seconds: 40}, {Player: "cat", Seconds: 40}},
		{{Player: "ann", Seconds: 50}, {Player: "ben", Seconds: 45}},
		{{Player: "John Doe", Seconds: 18}},
	}
	for i, entries := range days {
		if _, err := svc.ImportDay(ctx, monday.AddDate(0, 0, i), entries); err != nil {
			panic(err)
		}
	}
	if _, err := svc.Update(ctx); err != nil {
		panic(err)
	}
	return svc
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(rec *httptest.ResponseRecorder, v any) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		panic(err)
	}
}

func TestServer_Leaderboard(t *testing.T) {
	Convey("Given an API over an updated service", t, func() {
		h := api.NewServer(newTestService(), api.WithMaxLimit(3)).Handler()

		Convey("When requesting the all-time leaderboard", func() {
			rec := get(h, "/leaderboard/all_time?limit=2")

			Convey("Then the first rows are returned in order", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("Content-Type"), ShouldContainSubstring, "application/json")
				var lb types.Leaderboard
				decode(rec, &lb)
				So(lb.Window, ShouldEqual, window.AllTime)
				So(lb.Through, ShouldEqual, "2024-03-06")
				So(lb.Entries, ShouldHaveLength, 2)
				So(lb.Entries[0].Rank, ShouldEqual, 1)
				So(lb.Entries[0].Score, ShouldBeGreaterThanOrEqualTo, lb.Entries[1].Score)
			})
		})

		Convey("When no limit is given", func() {
			rec := get(h, "/leaderboard/last_30")

			Convey("Then at most the configured cap is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var lb types.Leaderboard
				decode(rec, &lb)
				So(lb.Entries, ShouldHaveLength, 3)
			})
		})

		Convey("When the limit is invalid", func() {
			for _, q := range []string{"0", "-1", "ten"} {
				rec := get(h, "/leaderboard/all_time?limit="+q)
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("When the limit exceeds the cap", func() {
			rec := get(h, "/leaderboard/all_time?limit=4")
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(rec.Body.String(), ShouldContainSubstring, "limit_exceeded")
		})

		Convey("When the window is unknown", func() {
			rec := get(h, "/leaderboard/last_7")
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When listing windows", func() {
			rec := get(h, "/windows")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"name":"last_30","days":30`)
			So(rec.Body.String(), ShouldContainSubstring, `"name":"all_time"`)
		})
	})
}

func TestServer_Results(t *testing.T) {
	Convey("Given an API over an updated service", t, func() {
		h := api.NewServer(newTestService()).Handler()

		Convey("When requesting a day", func() {
			rec := get(h, "/history/2024-03-04")

			Convey("Then ties share a rank", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var d service.DayResults
				decode(rec, &d)
				So(d.Date, ShouldEqual, "2024-03-04")
				So(d.Results, ShouldHaveLength, 3)
				So(d.Results[1].Rank, ShouldEqual, 2)
				So(d.Results[2].Rank, ShouldEqual, 2)
			})
		})

		Convey("When the date is malformed", func() {
			rec := get(h, "/history/yesterday")
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When requesting recent days", func() {
			rec := get(h, "/recent")
			So(rec.Code, ShouldEqual, http.StatusOK)
			var days []service.DayResults
			decode(rec, &days)
			So(days, ShouldHaveLength, 3)
			So(days[0].Date, ShouldEqual, "2024-03-06")
		})

		Convey("When requesting the podium", func() {
			rec := get(h, "/podium")
			So(rec.Code, ShouldEqual, http.StatusOK)
			var results []types.Result
			decode(rec, &results)
			So(results, ShouldHaveLength, 6)
			So(results[0].Player, ShouldEqual, "John Doe")
		})
	})
}

func TestServer_Players(t *testing.T) {
	Convey("Given an API over an updated service", t, func() {
		h := api.NewServer(newTestService()).Handler()

		Convey("When requesting a player with an escaped name", func() {
			rec := get(h, "/players/John%20Doe")

			Convey("Then the profile is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var view service.PlayerView
				decode(rec, &view)
				So(view.Player, ShouldEqual, "John Doe")
				So(view.Windows, ShouldContainKey, window.AllTime)
				So(view.Results, ShouldHaveLength, 1)
			})
		})

		Convey("When requesting an unknown player", func() {
			rec := get(h, "/players/nobody")
			So(rec.Code, ShouldEqual, http.StatusNotFound)
			So(rec.Body.String(), ShouldContainSubstring, "not_found")
		})

		Convey("When comparing two players", func() {
			rec := get(h, "/h2h/ann/ben")
			So(rec.Code, ShouldEqual, http.StatusOK)
			var cmp api.HeadToHead
			decode(rec, &cmp)
			So(cmp.Matches, ShouldEqual, 2)
			So(cmp.WinsA, ShouldEqual, 1)
			So(cmp.WinsB, ShouldEqual, 1)
			So(cmp.Description, ShouldEqual, "On average, ann is 2.5 seconds faster than ben.")
		})

		Convey("When comparing a player with themselves", func() {
			rec := get(h, "/h2h/ann/ann")
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

// failingDeps fails every read.
type failingDeps struct{ err error }

func (f failingDeps) Leaderboard(context.Context, string, int) (types.Leaderboard, error) {
	return types.Leaderboard{}, f.err
}
func (f failingDeps) Day(context.Context, time.Time) (api.DayResults, error) {
	return api.DayResults{}, f.err
}
func (f failingDeps) Recent(context.Context) ([]api.DayResults, error) { return nil, f.err }
func (f failingDeps) Podium(context.Context) ([]types.Result, error)  { return nil, f.err }
func (f failingDeps) Player(context.Context, string) (api.PlayerView, error) {
	return api.PlayerView{}, f.err
}
func (f failingDeps) HeadToHead(context.Context, string, string) (api.HeadToHead, error) {
	return api.HeadToHead{}, f.err
}
func (f failingDeps) Windows() []window.Spec { return window.Specs(nil) }

func TestServer_Errors(t *testing.T) {
	Convey("Given dependencies that fail", t, func() {
		h := api.NewServer(failingDeps{err: errors.New("db down")}).Handler()

		Convey("Then every read route reports an internal error", func() {
			for _, path := range []string{"/leaderboard/all_time", "/history/2024-03-04", "/recent", "/podium", "/players/a", "/h2h/a/b"} {
				rec := get(h, path)
				So(rec.Code, ShouldEqual, http.StatusInternalServerError)
				So(rec.Body.String(), ShouldContainSubstring, "db down")
			}
		})
	})

	Convey("Given dependencies with no data yet", t, func() {
		h := api.NewServer(failingDeps{err: repository.ErrNoSnapshot}).Handler()

		Convey("Then the leaderboard is not found", func() {
			So(get(h, "/leaderboard/all_time").Code, ShouldEqual, http.StatusNotFound)
		})
	})

	Convey("Given an unsupported method", t, func() {
		h := api.NewServer(failingDeps{}).Handler()
		req := httptest.NewRequest(http.MethodPost, "/podium", strings.NewReader("{}"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
	})
}

func TestServer_Health(t *testing.T) {
	Convey("Given an API server", t, func() {
		h := api.NewServer(failingDeps{}).Handler()

		Convey("When requesting /healthz", func() {
			_ = get(h, "/podium")
			rec := get(h, "/healthz")

			Convey("Then Prometheus metrics are served", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "minirank_")
			})
		})
	})
}

func TestServer_ErrorMetrics(t *testing.T) {
	Convey("Given an API that has answered failed requests", t, func() {
		h := api.NewServer(newTestService(), api.WithMaxLimit(3)).Handler()
		So(get(h, "/leaderboard/all_time?limit=4").Code, ShouldEqual, http.StatusBadRequest)
		So(get(h, "/leaderboard/last_7").Code, ShouldEqual, http.StatusNotFound)

		Convey("Then errors are counted under the code each response carried", func() {
			body := get(h, "/healthz").Body.String()
			So(body, ShouldContainSubstring, `component="http_leaderboard",error_type="limit_exceeded"`)
			So(body, ShouldContainSubstring, `component="http_leaderboard",error_type="not_found"`)
		})
	})
}
