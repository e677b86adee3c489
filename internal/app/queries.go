package service

import (
	"context"
	"errors"
	"time"

	"github.com/okian/minirank/internal/adapters/repository"
	"github.com/okian/minirank/internal/domain/history"
	"github.com/okian/minirank/internal/domain/types"
	"github.com/okian/minirank/pkg/dateutil"
)

// DayResults is one day's leaderboard as served.
type DayResults struct {
	Date    string         `json:"date"`
	Results []types.Result `json:"results"`
}

// PlayerView is a player's standing in every window plus their history.
type PlayerView struct {
	Player             string                 `json:"player"`
	Windows            map[string]types.Entry `json:"windows"`
	Results            []types.Result         `json:"results"`
	Best               []types.Result         `json:"best"`
	Percentiles        []history.Percentile   `json:"percentiles"`
	WeekdayPercentiles []history.Percentile   `json:"weekday_percentiles"`
}

// Day returns a day's results ordered by time.
func (s *Service) Day(ctx context.Context, day time.Time) (DayResults, error) {
	results, err := s.store.Day(ctx, dateutil.Day(day))
	if err != nil {
		return DayResults{}, err
	}
	return DayResults{Date: dateutil.Format(day), Results: types.Results(results)}, nil
}

// Recent returns the days with results among the last RecentDays days
// ending at the latest stored day, newest first.
func (s *Service) Recent(ctx context.Context) ([]DayResults, error) {
	_, latest, err := s.store.Bounds(ctx)
	if errors.Is(err, repository.ErrNoResults) {
		return []DayResults{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]DayResults, 0, history.RecentDays)
	for _, day := range history.Recent(latest, history.RecentDays) {
		d, err := s.Day(ctx, day)
		if err != nil {
			return nil, err
		}
		if len(d.Results) > 0 {
			out = append(out, d)
		}
	}
	return out, nil
}

// Podium returns the fastest results ever.
func (s *Service) Podium(ctx context.Context) ([]types.Result, error) {
	results, err := s.store.Fastest(ctx, history.PodiumSize)
	if err != nil {
		return nil, err
	}
	return types.Results(results), nil
}

// Player returns a player's profile, or repository.ErrNotFound.
func (s *Service) Player(ctx context.Context, player string) (PlayerView, error) {
	results, err := s.store.PlayerResults(ctx, player)
	if err != nil {
		return PlayerView{}, err
	}
	profile := history.BuildProfile(player, results)

	view := PlayerView{
		Player:             player,
		Windows:            make(map[string]types.Entry, len(s.specs)),
		Results:            types.Results(profile.Results),
		Best:               types.Results(profile.Best),
		Percentiles:        profile.Percentiles,
		WeekdayPercentiles: profile.WeekdayPercentiles,
	}
	for _, spec := range s.specs {
		rank, row, err := s.store.Rank(ctx, spec.Name, player)
		switch {
		case err == nil:
			view.Windows[spec.Name] = types.NewEntry(rank, row)
		case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrNoSnapshot):
		default:
			return PlayerView{}, err
		}
	}
	return view, nil
}

// HeadToHead compares two players over the days both played.
func (s *Service) HeadToHead(ctx context.Context, a, b string) (history.HeadToHead, error) {
	resA, err := s.store.PlayerResults(ctx, a)
	if err != nil {
		return history.HeadToHead{}, err
	}
	resB, err := s.store.PlayerResults(ctx, b)
	if err != nil {
		return history.HeadToHead{}, err
	}
	return history.Compare(a, b, resA, resB), nil
}
