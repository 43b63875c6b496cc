package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/lorrc/issue-relay/internal/core/domain"
	"github.com/lorrc/issue-relay/internal/core/ports"
)

var (
	_ ports.IssueTracker     = (*MockIssueTracker)(nil)
	_ ports.IssueService     = (*MockIssueService)(nil)
	_ ports.EventBroadcaster = (*MockEventBroadcaster)(nil)
)

// first returns the first stubbed return value as T, or T's zero value when
// the stub returned nil. The error is always the second value.
func first[T any](args mock.Arguments) (T, error) {
	var zero T
	v, ok := args.Get(0).(T)
	if !ok {
		return zero, args.Error(1)
	}
	return v, args.Error(1)
}

// MockIssueTracker stands in for the GitLab client.
type MockIssueTracker struct {
	mock.Mock
}

func NewMockIssueTracker() *MockIssueTracker {
	return &MockIssueTracker{}
}

func (m *MockIssueTracker) ListIssues(ctx context.Context) ([]domain.Issue, error) {
	return first[[]domain.Issue](m.Called(ctx))
}

func (m *MockIssueTracker) SetIssueState(ctx context.Context, iid int64, action domain.Action) (*domain.Issue, error) {
	return first[*domain.Issue](m.Called(ctx, iid, action))
}

func (m *MockIssueTracker) AddComment(ctx context.Context, iid int64, body string) (*domain.Comment, error) {
	return first[*domain.Comment](m.Called(ctx, iid, body))
}

func (m *MockIssueTracker) ListComments(ctx context.Context, iid int64) ([]domain.Comment, error) {
	return first[[]domain.Comment](m.Called(ctx, iid))
}

func (m *MockIssueTracker) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockIssueService stands in for the REST proxy's service layer.
type MockIssueService struct {
	mock.Mock
}

func NewMockIssueService() *MockIssueService {
	return &MockIssueService{}
}

func (m *MockIssueService) ListIssues(ctx context.Context) ([]domain.Issue, error) {
	return first[[]domain.Issue](m.Called(ctx))
}

func (m *MockIssueService) CloseIssue(ctx context.Context, iid int64) (*domain.Issue, error) {
	return first[*domain.Issue](m.Called(ctx, iid))
}

func (m *MockIssueService) ReopenIssue(ctx context.Context, iid int64) (*domain.Issue, error) {
	return first[*domain.Issue](m.Called(ctx, iid))
}

func (m *MockIssueService) AddComment(ctx context.Context, params ports.AddCommentParams) (*domain.Comment, error) {
	return first[*domain.Comment](m.Called(ctx, params))
}

func (m *MockIssueService) ListComments(ctx context.Context, iid int64) ([]domain.Comment, error) {
	return first[[]domain.Comment](m.Called(ctx, iid))
}

// MockEventBroadcaster records payloads handed to the stream.
type MockEventBroadcaster struct {
	mock.Mock
}

func NewMockEventBroadcaster() *MockEventBroadcaster {
	return &MockEventBroadcaster{}
}

func (m *MockEventBroadcaster) Broadcast(payload []byte) error {
	return m.Called(payload).Error(0)
}
