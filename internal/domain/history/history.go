// Package history derives read-side views from stored daily results.
package history

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/okian/minirank/internal/domain/model"
	"github.com/okian/minirank/pkg/dateutil"
)

// DefaultPercentiles are the percentiles shown on a player profile.
var DefaultPercentiles = []int{10, 25, 50, 75, 90}

const (
	// PodiumSize is the number of fastest results ever shown.
	PodiumSize = 10
	// RecentDays is how many days back the recent view reaches.
	RecentDays = 10
	// bestTimes is how many personal bests a profile lists.
	bestTimes = 5
)

// Percentile is one percentile of a player's solve times.
type Percentile struct {
	P       int `json:"p"`
	Seconds int `json:"seconds"`
}

// Profile is everything shown for one player.
type Profile struct {
	Player             string               `json:"player"`
	Results            []model.RankedResult `json:"results"`
	Best               []model.RankedResult `json:"best"`
	Percentiles        []Percentile         `json:"percentiles"`
	WeekdayPercentiles []Percentile         `json:"weekday_percentiles"`
}

// HeadToHead compares two players over the days both played.
type HeadToHead struct {
	PlayerA     string  `json:"player_a"`
	PlayerB     string  `json:"player_b"`
	WinsA       int     `json:"wins_a"`
	WinsB       int     `json:"wins_b"`
	Ties        int     `json:"ties"`
	Matches     int     `json:"matches"`
	AvgDiff     float64 `json:"avg_time_difference"`
	Description string  `json:"description"`
}

// sortByTime orders results fastest first, then by day and player.
func sortByTime(results []model.RankedResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Seconds != b.Seconds {
			return a.Seconds < b.Seconds
		}
		if !a.Day.Equal(b.Day) {
			return a.Day.Before(b.Day)
		}
		return a.Player < b.Player
	})
}

// Percentiles returns the nearest-rank-below percentile of each p over
// the results' times: the time at index floor(p/100 * n) of the sorted
// times. Empty input yields nil.
func Percentiles(results []model.RankedResult, ps []int) []Percentile {
	if len(results) == 0 {
		return nil
	}
	times := make([]int, len(results))
	for i, r := range results {
		times[i] = r.Seconds
	}
	sort.Ints(times)

	out := make([]Percentile, 0, len(ps))
	for _, p := range ps {
		idx := int(float64(p) / 100 * float64(len(times)))
		if idx >= len(times) {
			idx = len(times) - 1
		}
		if idx < 0 {
			idx = 0
		}
		out = append(out, Percentile{P: p, Seconds: times[idx]})
	}
	return out
}

// ExcludeSaturdays drops the oversized Saturday puzzles.
func ExcludeSaturdays(results []model.RankedResult) []model.RankedResult {
	out := make([]model.RankedResult, 0, len(results))
	for _, r := range results {
		if !dateutil.IsSaturday(r.Day) {
			out = append(out, r)
		}
	}
	return out
}

// BuildProfile assembles a player's profile from all their results.
func BuildProfile(player string, results []model.RankedResult) Profile {
	byDay := append([]model.RankedResult(nil), results...)
	sort.SliceStable(byDay, func(i, j int) bool { return byDay[i].Day.Before(byDay[j].Day) })

	best := append([]model.RankedResult(nil), results...)
	sortByTime(best)
	if len(best) > bestTimes {
		best = best[:bestTimes]
	}

	return Profile{
		Player:             player,
		Results:            byDay,
		Best:               best,
		Percentiles:        Percentiles(results, DefaultPercentiles),
		WeekdayPercentiles: Percentiles(ExcludeSaturdays(results), DefaultPercentiles),
	}
}

// Podium returns the n fastest results.
func Podium(results []model.RankedResult, n int) []model.RankedResult {
	out := append([]model.RankedResult(nil), results...)
	sortByTime(out)
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Recent lists the n days ending at latest, newest first.
func Recent(latest time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, dateutil.AddDays(latest, -i))
	}
	return out
}

// Compare builds the head-to-head record of a against b. Only days both
// played count; the faster time wins the day and equal times tie.
func Compare(a, b string, resultsA, resultsB []model.RankedResult) HeadToHead {
	h := HeadToHead{PlayerA: a, PlayerB: b}

	timesB := make(map[string]int, len(resultsB))
	for _, r := range resultsB {
		timesB[dateutil.Format(r.Day)] = r.Seconds
	}

	var diff int
	for _, r := range resultsA {
		tb, ok := timesB[dateutil.Format(r.Day)]
		if !ok {
			continue
		}
		h.Matches++
		diff += r.Seconds - tb
		switch {
		case r.Seconds < tb:
			h.WinsA++
		case r.Seconds > tb:
			h.WinsB++
		default:
			h.Ties++
		}
	}

	if h.Matches == 0 {
		h.Description = fmt.Sprintf("%s and %s have not played on the same day yet.", a, b)
		return h
	}
	h.AvgDiff = float64(diff) / float64(h.Matches)
	verb := "slower"
	if h.AvgDiff < 0 {
		verb = "faster"
	}
	h.Description = fmt.Sprintf("On average, %s is %.1f seconds %s than %s.", a, math.Abs(h.AvgDiff), verb, b)
	return h
}
