package viewer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lorrc/issue-relay/internal/core/domain"
	apperrors "github.com/lorrc/issue-relay/internal/core/errors"
)

// RelayAPI is the subset of the relay's REST proxy the viewer calls.
type RelayAPI interface {
	ListIssues(ctx context.Context) ([]domain.Issue, error)
	SetState(ctx context.Context, iid int64, action domain.Action) error
	AddComment(ctx context.Context, iid int64, text string) error
	ListComments(ctx context.Context, iid int64) ([]domain.Comment, error)
}

// RelayClient talks to the relay over HTTP.
type RelayClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ RelayAPI = (*RelayClient)(nil)

// NewRelayClient creates a client for the relay at baseURL. A nil
// httpClient gets one with the given timeout.
func NewRelayClient(baseURL string, httpClient *http.Client, timeout time.Duration, logger *slog.Logger) *RelayClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &RelayClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger.With("component", "relay_client"),
	}
}

// ListIssues fetches the full issue snapshot.
func (c *RelayClient) ListIssues(ctx context.Context) ([]domain.Issue, error) {
	var issues []domain.Issue
	if err := c.do(ctx, "list issues", http.MethodGet, "/api/issues", nil, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// SetState posts a close or reopen request.
func (c *RelayClient) SetState(ctx context.Context, iid int64, action domain.Action) error {
	path := fmt.Sprintf("/api/issues/%d/%s", iid, action)
	return c.do(ctx, "set state", http.MethodPost, path, nil, nil)
}

// AddComment posts a new comment.
func (c *RelayClient) AddComment(ctx context.Context, iid int64, text string) error {
	path := fmt.Sprintf("/api/issues/%d/comments", iid)
	body := map[string]string{"comment": text}
	return c.do(ctx, "add comment", http.MethodPost, path, body, nil)
}

// ListComments fetches every comment of the issue.
func (c *RelayClient) ListComments(ctx context.Context, iid int64) ([]domain.Comment, error) {
	var comments []domain.Comment
	path := fmt.Sprintf("/api/issues/%d/comments", iid)
	if err := c.do(ctx, "list comments", http.MethodGet, path, nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (c *RelayClient) do(ctx context.Context, op, method, path string, requestBody, result any) error {
	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if requestBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &apperrors.UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &apperrors.UpstreamError{Op: op, StatusCode: resp.StatusCode}
	}

	if result == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &apperrors.UpstreamError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}
