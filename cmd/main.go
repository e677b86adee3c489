package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		os.Stderr.WriteString("minirank: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "minirank",
		Usage: "daily mini crossword leaderboards with skill ratings",
		Commands: []*cli.Command{
			ingestCommand(),
			updateCommand(),
			runCommand(),
			serveCommand(),
			windowCommand(),
			demoCommand(),
		},
	}
}
