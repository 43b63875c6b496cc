package viewer

import (
	"context"
	"log/slog"
)

// Loader performs the initial snapshot paint.
type Loader struct {
	api        RelayAPI
	reconciler *Reconciler
	logger     *slog.Logger
}

// NewLoader creates a snapshot loader.
func NewLoader(api RelayAPI, reconciler *Reconciler, logger *slog.Logger) *Loader {
	return &Loader{
		api:        api,
		reconciler: reconciler,
		logger:     logger.With("component", "snapshot_loader"),
	}
}

// Load fetches every issue and repaints the board. On failure the board is
// left untouched and the error returned.
func (l *Loader) Load(ctx context.Context) error {
	issues, err := l.api.ListIssues(ctx)
	if err != nil {
		l.logger.Error("failed to fetch issues", "error", err)
		return err
	}

	l.reconciler.LoadSnapshot(issues)
	return nil
}
