// Package nyt fetches daily mini crossword leaderboards from the
// remote puzzle service.
package nyt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/okian/minirank/internal/domain/model"
	"github.com/okian/minirank/internal/domain/normalize"
	"github.com/okian/minirank/pkg/dateutil"
	"github.com/okian/minirank/pkg/logger"
	"github.com/okian/minirank/pkg/metrics"
)

const (
	// DefaultBaseURL is the production service root.
	DefaultBaseURL = "https://www.nytimes.com"

	DefaultTimeout    = 10 * time.Second
	DefaultAttempts   = 3
	DefaultRetryDelay = 5 * time.Second

	tokenHeader  = "nyt-s"
	maxBodyBytes = 4 << 20
)

// DefaultRateLimit allows one request per second.
var DefaultRateLimit = rate.Every(time.Second)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another host, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit sets the request rate. A non-positive limit disables it.
func WithRateLimit(l rate.Limit) Option {
	return func(c *Client) {
		if l <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(l, 1)
	}
}

// WithRetry sets the number of attempts and the delay between them.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		if delay >= 0 {
			c.delay = delay
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// Client reads day leaderboards. Safe for concurrent use.
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	limiter  *rate.Limiter
	attempts int
	delay    time.Duration
	log      logger.Logger
}

// NewClient builds a client authenticated with the session token.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		token:    token,
		http:     &http.Client{Timeout: DefaultTimeout},
		limiter:  rate.NewLimiter(DefaultRateLimit, 1),
		attempts: DefaultAttempts,
		delay:    DefaultRetryDelay,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type leaderboardResponse struct {
	Data []struct {
		Name  string `json:"name"`
		Score *struct {
			SecondsSpentSolving int `json:"secondsSpentSolving"`
		} `json:"score"`
	} `json:"data"`
}

// Fetch returns the solved entries for day. Transient failures are
// retried; an auth failure is returned at once.
func (c *Client) Fetch(ctx context.Context, day time.Time) ([]model.Entry, error) {
	url := fmt.Sprintf("%s/svc/crosswords/v6/leaderboard/mini/%s.json", c.baseURL, dateutil.Format(day))

	var entries []model.Entry
	attempt := 0
	op := func() error {
		attempt++
		var err error
		entries, err = c.fetchOnce(ctx, url)
		switch {
		case err == nil:
			metrics.RecordFetchAttempt("success")
			return nil
		case errors.Is(err, ErrUnauthorized):
			metrics.RecordFetchAttempt("unauthorized")
			return backoff.Permanent(err)
		case ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		default:
			metrics.RecordFetchAttempt("error")
			c.log.Warn(ctx, "leaderboard fetch failed",
				logger.Day("day", day),
				logger.Int("attempt", attempt),
				logger.Error(err),
			)
			return err
		}
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.delay), uint64(c.attempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("fetch leaderboard %s: %w", dateutil.Format(day), err)
	}
	return entries, nil
}

func (c *Client) fetchOnce(ctx context.Context, url string) ([]model.Entry, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(tokenHeader, c.token)
	req.AddCookie(&http.Cookie{Name: tokenHeader, Value: c.token})

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, ErrUnauthorized)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, ErrUnexpectedStatus)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	return decode(body)
}

func decode(body []byte) ([]model.Entry, error) {
	var payload leaderboardResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	entries := make([]model.Entry, 0, len(payload.Data))
	for _, d := range payload.Data {
		if d.Score == nil {
			continue
		}
		entries = append(entries, model.Entry{Player: d.Name, Seconds: d.Score.SecondsSpentSolving})
	}
	return normalize.DropUnsolved(entries), nil
}
