package services

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/lorrc/issue-relay/internal/core/domain"
	apperrors "github.com/lorrc/issue-relay/internal/core/errors"
	"github.com/lorrc/issue-relay/internal/core/ports"
	"github.com/lorrc/issue-relay/internal/infrastructure/logging"
)

// IssueService proxies snapshot and mutation calls to the issue tracker.
// Nothing is retried; upstream failures are logged and returned.
type IssueService struct {
	tracker ports.IssueTracker
	logger  *slog.Logger
}

var _ ports.IssueService = (*IssueService)(nil)

// NewIssueService creates a new issue service
func NewIssueService(tracker ports.IssueTracker, logger *slog.Logger) ports.IssueService {
	return &IssueService{
		tracker: tracker,
		logger:  logger.With("component", "issue_service"),
	}
}

// ListIssues returns the full current issue set.
func (s *IssueService) ListIssues(ctx context.Context) ([]domain.Issue, error) {
	issues, err := s.tracker.ListIssues(ctx)
	if err != nil {
		s.logFailure(ctx, "list issues", err)
		return nil, err
	}
	return issues, nil
}

// CloseIssue asks the tracker to close the issue.
func (s *IssueService) CloseIssue(ctx context.Context, iid int64) (*domain.Issue, error) {
	return s.setState(ctx, iid, domain.ActionClose)
}

// ReopenIssue asks the tracker to reopen the issue.
func (s *IssueService) ReopenIssue(ctx context.Context, iid int64) (*domain.Issue, error) {
	return s.setState(ctx, iid, domain.ActionReopen)
}

func (s *IssueService) setState(ctx context.Context, iid int64, action domain.Action) (*domain.Issue, error) {
	if iid <= 0 {
		return nil, apperrors.ErrInvalidIssueIID
	}

	issue, err := s.tracker.SetIssueState(ctx, iid, action)
	if err != nil {
		s.logFailure(ctx, "set issue state", err, "iid", iid, "action", action)
		return nil, err
	}
	return issue, nil
}

// AddComment validates and forwards a new comment.
func (s *IssueService) AddComment(ctx context.Context, params ports.AddCommentParams) (*domain.Comment, error) {
	if params.IssueIID <= 0 {
		return nil, apperrors.ErrInvalidIssueIID
	}
	if strings.TrimSpace(params.Body) == "" {
		return nil, apperrors.ErrCommentBodyRequired
	}
	if utf8.RuneCountInString(params.Body) > domain.MaxCommentBodyLength {
		return nil, apperrors.ErrCommentBodyTooLong
	}

	comment, err := s.tracker.AddComment(ctx, params.IssueIID, params.Body)
	if err != nil {
		s.logFailure(ctx, "add comment", err, "iid", params.IssueIID)
		return nil, err
	}
	return comment, nil
}

// ListComments returns every comment on the issue, bot notes included.
func (s *IssueService) ListComments(ctx context.Context, iid int64) ([]domain.Comment, error) {
	if iid <= 0 {
		return nil, apperrors.ErrInvalidIssueIID
	}

	comments, err := s.tracker.ListComments(ctx, iid)
	if err != nil {
		s.logFailure(ctx, "list comments", err, "iid", iid)
		return nil, err
	}
	return comments, nil
}

func (s *IssueService) logFailure(ctx context.Context, op string, err error, attrs ...any) {
	logger := logging.LoggerFromContext(ctx, s.logger)
	logger.Error("upstream call failed", append([]any{"op", op, "error", err}, attrs...)...)
}
