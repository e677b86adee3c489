package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/okian/minirank/internal/adapters/http/api"
	app "github.com/okian/minirank/internal/app"
	"github.com/okian/minirank/internal/domain/normalize"
	"github.com/okian/minirank/internal/testevents"
	"github.com/okian/minirank/pkg/dateutil"
	"github.com/okian/minirank/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// withService runs fn with a configured service and closes it afterwards.
func withService(c *cli.Context, fn func(ctx context.Context, svc *app.Service, log logger.Logger) error) error {
	ctx := c.Context
	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}
	svc, err := newService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Warn(ctx, "close failed", logger.Error(err))
		}
	}()
	return fn(ctx, svc, log)
}

// dayFlag parses an optional YYYY-MM-DD flag.
func dayFlag(c *cli.Context, name string) (time.Time, bool, error) {
	v := c.String(name)
	if v == "" {
		return time.Time{}, false, nil
	}
	d, err := dateutil.Parse(v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("--%s: %w", name, err)
	}
	return d, true, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func ingestCommand() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "fetch a day's leaderboard and store it",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "date", Usage: "puzzle day as YYYY-MM-DD (default: today)"},
		},
		Action: func(c *cli.Context) error {
			return withService(c, func(ctx context.Context, svc *app.Service, log logger.Logger) error {
				return ingest(ctx, c, svc, log)
			})
		},
	}
}

func ingest(ctx context.Context, c *cli.Context, svc *app.Service, log logger.Logger) error {
	day, ok, err := dayFlag(c, "date")
	if err != nil {
		return err
	}
	if !ok {
		day = svc.Today()
	}
	n, err := svc.IngestDay(ctx, day)
	if errors.Is(err, normalize.ErrEmptyLeaderboard) {
		log.Warn(ctx, "nobody has solved the puzzle yet", logger.Day("day", day))
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "stored %d results for %s\n", n, dateutil.Format(day))
	return nil
}

func updateCommand() *cli.Command {
	return &cli.Command{
		Name:  "update",
		Usage: "recompute and save every window",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "full", Usage: "rebuild the all-time window from the first day"},
		},
		Action: func(c *cli.Context) error {
			return withService(c, func(ctx context.Context, svc *app.Service, _ logger.Logger) error {
				return update(ctx, c, svc)
			})
		},
	}
}

func update(ctx context.Context, c *cli.Context, svc *app.Service) error {
	run := svc.Update
	if c.Bool("full") {
		run = svc.Rebuild
	}
	report, err := run(ctx)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, report)
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "ingest today then update every window (the daily job)",
		Action: func(c *cli.Context) error {
			return withService(c, func(ctx context.Context, svc *app.Service, log logger.Logger) error {
				if err := ingest(ctx, c, svc, log); err != nil {
					return err
				}
				return update(ctx, c, svc)
			})
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the read API",
		Action: func(c *cli.Context) error {
			ctx := c.Context
			cfg, log, err := setup(ctx)
			if err != nil {
				return err
			}
			svc, err := newService(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           api.NewServer(svc, api.WithMaxLimit(cfg.MaxLeaderboardLimit)).Handler(),
				ReadTimeout:       readTimeout,
				WriteTimeout:      writeTimeout,
				IdleTimeout:       idleTimeout,
				ReadHeaderTimeout: readHeaderTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("HTTP server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}
			log.Info(ctx, "shutting down server...")

			// Graceful shutdown with timeout
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error(ctx, "server shutdown failed", logger.Error(err))
				return err
			}
			log.Info(ctx, "server stopped")
			return nil
		},
	}
}

func windowCommand() *cli.Command {
	return &cli.Command{
		Name:  "window",
		Usage: "compute an ad-hoc window over stored results and print it",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Usage: "first day (YYYY-MM-DD)", Required: true},
			&cli.StringFlag{Name: "to", Usage: "last day (YYYY-MM-DD)", Required: true},
		},
		Action: func(c *cli.Context) error {
			from, _, err := dayFlag(c, "from")
			if err != nil {
				return err
			}
			to, _, err := dayFlag(c, "to")
			if err != nil {
				return err
			}
			return withService(c, func(ctx context.Context, svc *app.Service, _ logger.Logger) error {
				lb, err := svc.Window(ctx, from, to)
				if err != nil {
					return err
				}
				return printJSON(c.App.Writer, lb)
			})
		},
	}
}

func demoCommand() *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: "store synthetic results ending today",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "days", Value: 60, Usage: "number of days"},
			&cli.IntFlag{Name: "players", Value: 8, Usage: "number of players"},
			&cli.Uint64Flag{Name: "seed", Value: 1, Usage: "generator seed"},
		},
		Action: func(c *cli.Context) error {
			return withService(c, func(ctx context.Context, svc *app.Service, log logger.Logger) error {
				n := c.Int("days")
				gen := testevents.NewGenerator(
					testevents.WithDays(n),
					testevents.WithPlayers(c.Int("players")),
					testevents.WithSeed(c.Uint64("seed")),
					testevents.WithStart(dateutil.AddDays(svc.Today(), -(n-1))),
				)
				stored := 0
				for _, d := range gen.Generate() {
					_, err := svc.ImportDay(ctx, d.Date, d.Entries)
					if errors.Is(err, normalize.ErrEmptyLeaderboard) {
						continue
					}
					if err != nil {
						return err
					}
					stored++
				}
				log.Info(ctx, "demo data stored", logger.Int("days", stored), logger.Any("players", gen.Players()))
				fmt.Fprintf(c.App.Writer, "stored %d days for %d players\n", stored, len(gen.Players()))
				return nil
			})
		},
	}
}
