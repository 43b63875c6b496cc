package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/urfave/cli/v2"

	"github.com/lorrc/issue-relay/internal/config"
	"github.com/lorrc/issue-relay/internal/core/domain"
	"github.com/lorrc/issue-relay/internal/viewer"
)

const clearScreen = "\033[H\033[2J"

// newCLIApp creates the viewer application with all commands.
func newCLIApp(cfg *config.ViewerConfig, logger *slog.Logger, out io.Writer) *cli.App {
	app := &cli.App{
		Name:    "issue-viewer",
		Usage:   "Live two-column view of a project's issues",
		Version: Version,
		Writer:  out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Aliases: []string{"s"}, Value: cfg.ServerURL, Usage: "Relay base URL"},
			&cli.IntFlag{Name: "width", Value: 120, Usage: "Terminal width used for layout"},
		},
		Commands: []*cli.Command{
			watchCmd(cfg, logger),
			listCmd(cfg, logger),
			toggleCmd(cfg, logger),
			commentCmd(cfg, logger),
			commentsCmd(cfg, logger),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// session bundles the viewer components for one command run.
type session struct {
	board      *viewer.Board
	reconciler *viewer.Reconciler
	client     *viewer.RelayClient
	loader     *viewer.Loader
	dispatcher *viewer.Dispatcher
	renderer   viewer.Renderer
	serverURL  string
}

func newSession(c *cli.Context, cfg *config.ViewerConfig, logger *slog.Logger) *session {
	serverURL := strings.TrimRight(c.String("server"), "/")
	board := viewer.NewBoard()
	reconciler := viewer.NewReconciler(board, cfg.BotAuthorName, logger)
	client := viewer.NewRelayClient(serverURL, nil, cfg.RequestTimeout, logger)

	return &session{
		board:      board,
		reconciler: reconciler,
		client:     client,
		loader:     viewer.NewLoader(client, reconciler, logger),
		dispatcher: viewer.NewDispatcher(client, board, cfg.BotAuthorName, logger),
		renderer:   viewer.NewRenderer(viewer.DefaultTheme, c.Int("width")),
		serverURL:  serverURL,
	}
}

// streamURL maps the relay's http(s) base URL to its websocket endpoint.
func streamURL(serverURL string) string {
	switch {
	case strings.HasPrefix(serverURL, "https://"):
		return "wss://" + strings.TrimPrefix(serverURL, "https://") + "/ws"
	case strings.HasPrefix(serverURL, "http://"):
		return "ws://" + strings.TrimPrefix(serverURL, "http://") + "/ws"
	default:
		return serverURL + "/ws"
	}
}

func idFlag() cli.Flag {
	return &cli.StringFlag{Name: "id", Required: true, Usage: "Issue id (not the project iid)"}
}

// watchCmd creates the watch command.
func watchCmd(cfg *config.ViewerConfig, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Render the board and keep it in sync with the relay",
		Action: func(c *cli.Context) error {
			s := newSession(c, cfg, logger)
			out := c.App.Writer

			var mu sync.Mutex
			var subscriber *viewer.Subscriber
			redraw := func() {
				state := viewer.StateConnecting
				if subscriber != nil {
					state = subscriber.State()
				}
				mu.Lock()
				defer mu.Unlock()
				fmt.Fprint(out, clearScreen)
				fmt.Fprintln(out, s.renderer.Render(s.board, state))
			}

			subscriber = viewer.NewSubscriber(viewer.SubscriberConfig{
				URL:            streamURL(s.serverURL),
				ReconnectDelay: cfg.ReconnectDelay,
				Applier:        s.reconciler,
				OnStateChange:  func(viewer.ConnState) { redraw() },
				Logger:         logger,
			})

			// A failed snapshot leaves an empty board; live events still apply.
			_ = s.loader.Load(c.Context)
			s.board.OnChange(redraw)
			redraw()

			return subscriber.Run(c.Context)
		},
	}
}

// listCmd creates the list command.
func listCmd(cfg *config.ViewerConfig, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Render the current board once",
		Action: func(c *cli.Context) error {
			s := newSession(c, cfg, logger)
			if err := s.loader.Load(c.Context); err != nil {
				return cli.Exit(fmt.Sprintf("failed to load issues: %v", err), 1)
			}
			fmt.Fprintln(c.App.Writer, s.renderer.Render(s.board, viewer.StateClosed))
			return nil
		},
	}
}

// toggleCmd creates the toggle command.
func toggleCmd(cfg *config.ViewerConfig, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "toggle",
		Usage: "Close an open issue or reopen a closed one",
		Flags: []cli.Flag{idFlag()},
		Action: func(c *cli.Context) error {
			return withCard(c, cfg, logger, func(ctx context.Context, s *session, id domain.ItemID) error {
				return s.dispatcher.ToggleItem(ctx, id)
			})
		},
	}
}

// commentCmd creates the comment command.
func commentCmd(cfg *config.ViewerConfig, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "comment",
		Usage: "Post a comment on an issue",
		Flags: []cli.Flag{
			idFlag(),
			&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Required: true, Usage: "Comment text"},
		},
		Action: func(c *cli.Context) error {
			return withCard(c, cfg, logger, func(ctx context.Context, s *session, id domain.ItemID) error {
				return s.dispatcher.SubmitComment(ctx, id, c.String("text"))
			})
		},
	}
}

// commentsCmd creates the comments command.
func commentsCmd(cfg *config.ViewerConfig, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "comments",
		Usage: "Show the comments of an issue",
		Flags: []cli.Flag{idFlag()},
		Action: func(c *cli.Context) error {
			return withCard(c, cfg, logger, func(ctx context.Context, s *session, id domain.ItemID) error {
				_, err := s.dispatcher.ViewComments(ctx, id)
				return err
			})
		},
	}
}

// withCard loads the snapshot, runs fn against the card and prints it.
func withCard(
	c *cli.Context,
	cfg *config.ViewerConfig,
	logger *slog.Logger,
	fn func(ctx context.Context, s *session, id domain.ItemID) error,
) error {
	s := newSession(c, cfg, logger)
	if err := s.loader.Load(c.Context); err != nil {
		return cli.Exit(fmt.Sprintf("failed to load issues: %v", err), 1)
	}

	id := domain.ItemID(c.String("id"))
	if err := fn(c.Context, s, id); err != nil {
		return cli.Exit(fmt.Sprintf("issue %s: %v", id, err), 1)
	}

	card, _, ok := s.board.Card(id)
	if !ok {
		return cli.Exit(fmt.Sprintf("issue %s not found", id), 1)
	}
	fmt.Fprintln(c.App.Writer, s.renderer.RenderCard(card))
	return nil
}
