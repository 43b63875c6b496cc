package viewer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lorrc/issue-relay/internal/core/domain"
	apperrors "github.com/lorrc/issue-relay/internal/core/errors"
)

// Dispatcher turns user actions on a card into relay requests and applies
// the results to the board.
type Dispatcher struct {
	api       RelayAPI
	board     *Board
	botAuthor string
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(api RelayAPI, board *Board, botAuthor string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		api:       api,
		board:     board,
		botAuthor: botAuthor,
		logger:    logger.With("component", "dispatcher"),
	}
}

func (d *Dispatcher) lookup(id domain.ItemID) (Card, error) {
	card, _, ok := d.board.Card(id)
	if !ok {
		return Card{}, fmt.Errorf("issue %s: %w", id, apperrors.ErrStaleReference)
	}
	return card, nil
}

// ToggleItem asks the relay to flip the issue's state. The card moves only
// after the relay confirms; on failure the board is left as it was.
func (d *Dispatcher) ToggleItem(ctx context.Context, id domain.ItemID) error {
	card, err := d.lookup(id)
	if err != nil {
		return err
	}

	action := domain.ToggleAction(card.Issue.State)
	if err := d.api.SetState(ctx, card.Issue.IID, action); err != nil {
		d.logger.Error("failed to change issue state",
			"issue_id", id,
			"action", action,
			"error", err,
		)
		return err
	}

	d.board.Move(id, action.ResultState())
	return nil
}

// SubmitComment hides the comment form and posts text. The new comment is
// not added locally; it arrives through the event stream. Unlike the
// original client, which posted unconditionally, blank text is rejected
// with ErrCommentBodyRequired and never sent.
func (d *Dispatcher) SubmitComment(ctx context.Context, id domain.ItemID, text string) error {
	card, err := d.lookup(id)
	if err != nil {
		return err
	}
	if err := d.board.SetFormVisible(id, false); err != nil {
		return err
	}

	if strings.TrimSpace(text) == "" {
		return apperrors.ErrCommentBodyRequired
	}

	if err := d.api.AddComment(ctx, card.Issue.IID, text); err != nil {
		d.logger.Error("failed to post comment", "issue_id", id, "error", err)
		return err
	}
	return nil
}

// ViewComments fetches the issue's comments, drops bot-authored ones and
// toggles the panel. It returns whether the panel is now visible.
func (d *Dispatcher) ViewComments(ctx context.Context, id domain.ItemID) (bool, error) {
	card, err := d.lookup(id)
	if err != nil {
		return false, err
	}

	comments, err := d.api.ListComments(ctx, card.Issue.IID)
	if err != nil {
		d.logger.Error("failed to fetch comments", "issue_id", id, "error", err)
		return false, err
	}

	return d.board.ReplaceComments(id, domain.FilterComments(comments, d.botAuthor))
}

// ToggleCommentForm flips the card's comment form. No request is made.
func (d *Dispatcher) ToggleCommentForm(id domain.ItemID) (bool, error) {
	return d.board.ToggleForm(id)
}
