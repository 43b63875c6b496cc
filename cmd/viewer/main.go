package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lorrc/issue-relay/internal/config"
	"github.com/lorrc/issue-relay/internal/infrastructure/logging"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	cfg, err := config.LoadViewer()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Logs go to stderr so they do not interleave with the rendered board.
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stderr,
		ServiceName: "issue-viewer",
		Environment: "client",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := newCLIApp(cfg, logger, os.Stdout)
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
