// Package gitlab is the secondary adapter for the GitLab issues REST API.
package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lorrc/issue-relay/internal/core/domain"
	apperrors "github.com/lorrc/issue-relay/internal/core/errors"
	"github.com/lorrc/issue-relay/internal/core/ports"
)

const (
	defaultBaseURL = "https://gitlab.com/api/v4"
	defaultTimeout = 10 * time.Second

	// perPage is the largest page size GitLab accepts.
	perPage = 100

	// maxPages bounds snapshot pagination.
	maxPages = 50

	// maxResponseBytes bounds a single decoded response.
	maxResponseBytes = 8 << 20
)

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL is the API root, e.g. "https://gitlab.example.com/api/v4".
	BaseURL string

	// ProjectID is the numeric id or URL path ("group/project") of the
	// project whose issues are relayed.
	ProjectID string

	// Token is sent as a bearer token on every request.
	Token string

	// HTTPClient is used for all requests. Defaults to a client with
	// Timeout applied.
	HTTPClient *http.Client

	// Timeout applies only when HTTPClient is nil.
	Timeout time.Duration

	Logger *slog.Logger
}

// Client is a minimal typed client for the project-scoped issues API.
type Client struct {
	baseURL     string
	projectPath string
	token       string
	httpClient  *http.Client
	logger      *slog.Logger
}

var _ ports.IssueTracker = (*Client)(nil)

// NewClient creates a client from the given configuration.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if u, err := url.Parse(baseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("gitlab: invalid base URL %q", cfg.BaseURL)
	}
	if cfg.ProjectID == "" {
		return nil, errors.New("gitlab: project id is required")
	}
	if cfg.Token == "" {
		return nil, errors.New("gitlab: access token is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:     baseURL,
		projectPath: "/projects/" + url.PathEscape(cfg.ProjectID),
		token:       cfg.Token,
		httpClient:  httpClient,
		logger:      logger.With("component", "gitlab_client"),
	}, nil
}

type stateEventRequest struct {
	StateEvent domain.Action `json:"state_event"`
}

type createNoteRequest struct {
	Body string `json:"body"`
}

// ListIssues returns every issue of the project, following pagination.
func (c *Client) ListIssues(ctx context.Context) ([]domain.Issue, error) {
	return paginate[domain.Issue](ctx, c, "list issues", c.projectPath+"/issues?")
}

// SetIssueState sends a state_event for the issue and returns the updated
// issue.
func (c *Client) SetIssueState(ctx context.Context, iid int64, action domain.Action) (*domain.Issue, error) {
	const op = "set issue state"
	if !action.IsMutation() {
		return nil, fmt.Errorf("gitlab: %s: unsupported action %q", op, action)
	}

	var issue domain.Issue
	path := fmt.Sprintf("%s/issues/%d", c.projectPath, iid)
	if _, err := c.do(ctx, op, http.MethodPut, path, stateEventRequest{StateEvent: action}, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// AddComment creates a note on the issue.
func (c *Client) AddComment(ctx context.Context, iid int64, body string) (*domain.Comment, error) {
	const op = "add comment"

	var comment domain.Comment
	path := fmt.Sprintf("%s/issues/%d/notes", c.projectPath, iid)
	if _, err := c.do(ctx, op, http.MethodPost, path, createNoteRequest{Body: body}, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListComments returns every note of the issue in tracker order,
// following pagination.
func (c *Client) ListComments(ctx context.Context, iid int64) ([]domain.Comment, error) {
	path := fmt.Sprintf("%s/issues/%d/notes?sort=asc&", c.projectPath, iid)
	return paginate[domain.Comment](ctx, c, "list comments", path)
}

// paginate fetches prefix with per_page and page appended, following
// X-Next-Page for at most maxPages pages. prefix must end in '?' or '&'.
func paginate[T any](ctx context.Context, c *Client, op, prefix string) ([]T, error) {
	items := make([]T, 0)
	page := 1
	for i := 0; i < maxPages && page > 0; i++ {
		path := fmt.Sprintf("%sper_page=%d&page=%d", prefix, perPage, page)

		var batch []T
		header, err := c.do(ctx, op, http.MethodGet, path, nil, &batch)
		if err != nil {
			return nil, err
		}
		items = append(items, batch...)
		page = nextPage(header)
	}
	return items, nil
}

// Ping checks that the project is reachable with the configured token.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, "ping", http.MethodGet, c.projectPath, nil, nil)
	return err
}

// do executes an authenticated request and decodes a 2xx JSON body into
// result. Non-2xx responses become *apperrors.UpstreamError.
func (c *Client) do(ctx context.Context, op, method, path string, requestBody, result any) (http.Header, error) {
	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("gitlab: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("gitlab: creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if requestBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &apperrors.UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &apperrors.UpstreamError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	c.logger.Debug("upstream request",
		"op", op,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		upstreamErr := &apperrors.UpstreamError{Op: op, StatusCode: resp.StatusCode}
		if resp.StatusCode == http.StatusNotFound {
			upstreamErr.Err = apperrors.ErrIssueNotFound
		} else if msg := apiMessage(body); msg != "" {
			upstreamErr.Err = errors.New(msg)
		}
		return nil, upstreamErr
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return nil, &apperrors.UpstreamError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
		}
	}

	return resp.Header, nil
}

// nextPage reads GitLab's X-Next-Page header. Zero means no further page.
func nextPage(header http.Header) int {
	next, err := strconv.Atoi(header.Get("X-Next-Page"))
	if err != nil || next <= 0 {
		return 0
	}
	return next
}

// apiMessage extracts GitLab's {"message": ...} or {"error": ...} body.
func apiMessage(body []byte) string {
	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if len(payload.Message) > 0 {
		var s string
		if json.Unmarshal(payload.Message, &s) == nil {
			return s
		}
		return string(payload.Message)
	}
	return payload.Error
}
