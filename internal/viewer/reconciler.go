package viewer

import (
	"fmt"
	"log/slog"

	"github.com/lorrc/issue-relay/internal/core/domain"
	apperrors "github.com/lorrc/issue-relay/internal/core/errors"
)

// Reconciler applies decoded events to the board.
type Reconciler struct {
	board     *Board
	botAuthor string
	logger    *slog.Logger
}

// NewReconciler creates a reconciler. Notes written by botAuthor are not
// displayed; an empty botAuthor shows everything.
func NewReconciler(board *Board, botAuthor string, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		board:     board,
		botAuthor: botAuthor,
		logger:    logger.With("component", "reconciler"),
	}
}

// Board returns the board the reconciler writes to.
func (r *Reconciler) Board() *Board {
	return r.board
}

// LoadSnapshot performs the full initial paint.
func (r *Reconciler) LoadSnapshot(issues []domain.Issue) {
	r.board.Load(issues)
	r.logger.Info("snapshot loaded", "issues", len(issues))
}

// Apply reconciles one event. A state change for an issue that is not on
// the board is ignored; a note for such an issue returns ErrStaleReference.
func (r *Reconciler) Apply(event domain.Event) error {
	switch e := event.(type) {
	case domain.StateChange:
		return r.applyStateChange(e)
	case domain.Note:
		return r.applyNote(e)
	default:
		return fmt.Errorf("%w: %T", apperrors.ErrUnsupportedEvent, event)
	}
}

func (r *Reconciler) applyStateChange(e domain.StateChange) error {
	switch e.Action {
	case domain.ActionOpen:
		r.board.Upsert(e.Issue)
		r.logger.Debug("issue opened", "issue_id", e.Issue.ID)
		return nil

	case domain.ActionClose, domain.ActionReopen:
		state := e.Issue.State
		if !state.IsValid() {
			state = e.Action.ResultState()
		}
		if !r.board.Move(e.Issue.ID, state) {
			r.logger.Debug("state change for unknown issue ignored",
				"issue_id", e.Issue.ID,
				"action", e.Action,
			)
			return nil
		}
		r.board.Present(e.Issue)
		return nil

	default:
		return fmt.Errorf("%w: action %q", apperrors.ErrUnsupportedEvent, e.Action)
	}
}

func (r *Reconciler) applyNote(e domain.Note) error {
	if r.botAuthor != "" && e.Author.Name == r.botAuthor {
		r.logger.Debug("bot note skipped", "issue_id", e.IssueID)
		return nil
	}

	err := r.board.AppendComment(e.IssueID, domain.Comment{Body: e.Body, Author: e.Author})
	if err != nil {
		return fmt.Errorf("note for issue %s: %w", e.IssueID, err)
	}
	return nil
}
