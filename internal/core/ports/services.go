package ports

import (
	"context"

	"github.com/lorrc/issue-relay/internal/core/domain"
)

// EventBroadcaster defines the port for fanning a serialized event out to
// every live connection.
type EventBroadcaster interface {
	Broadcast(payload []byte) error
}

// IssueTracker defines the port for the upstream issue tracker REST API.
type IssueTracker interface {
	ListIssues(ctx context.Context) ([]domain.Issue, error)
	SetIssueState(ctx context.Context, iid int64, action domain.Action) (*domain.Issue, error)
	AddComment(ctx context.Context, iid int64, body string) (*domain.Comment, error)
	ListComments(ctx context.Context, iid int64) ([]domain.Comment, error)
	Ping(ctx context.Context) error
}

// IngestParams defines the input for accepting a webhook notification.
type IngestParams struct {
	Payload         []byte
	PresentedSecret string
}

// IngestService defines the port for the webhook ingestion gateway.
type IngestService interface {
	Ingest(ctx context.Context, params IngestParams) error
}

// AddCommentParams defines the input for commenting on an issue.
type AddCommentParams struct {
	IssueIID int64
	Body     string
}

// IssueService defines the operations the relay proxies to the tracker.
type IssueService interface {
	ListIssues(ctx context.Context) ([]domain.Issue, error)
	CloseIssue(ctx context.Context, iid int64) (*domain.Issue, error)
	ReopenIssue(ctx context.Context, iid int64) (*domain.Issue, error)
	AddComment(ctx context.Context, params AddCommentParams) (*domain.Comment, error)
	ListComments(ctx context.Context, iid int64) ([]domain.Comment, error)
}
