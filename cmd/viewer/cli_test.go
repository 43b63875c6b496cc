package main

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/issue-relay/internal/config"
)

type relayStub struct {
	mu       sync.Mutex
	requests []string
}

func (s *relayStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/api/issues":
		_, _ = io.WriteString(w, `[
			{"id":101,"iid":1,"state":"opened","title":"Broken login"},
			{"id":102,"iid":2,"state":"closed","title":"Typo"}
		]`)
	case r.Method == http.MethodGet:
		_, _ = io.WriteString(w, `[{"id":1,"body":"on it","author":{"name":"Ada"}}]`)
	default:
		_, _ = io.WriteString(w, `{"message":"ok"}`)
	}
}

func testConfig(serverURL string) *config.ViewerConfig {
	return &config.ViewerConfig{
		ServerURL:      serverURL,
		ReconnectDelay: time.Second,
		RequestTimeout: time.Second,
		BotAuthorName:  "GitLab Support Bot",
	}
}

func runCLI(t *testing.T, args ...string) (string, *relayStub, error) {
	t.Helper()
	stub := &relayStub{}
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)

	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app := newCLIApp(testConfig(server.URL), logger, &out)

	err := app.Run(append([]string{"issue-viewer"}, args...))
	return out.String(), stub, err
}

func TestCLIList(t *testing.T) {
	out, _, err := runCLI(t, "list")

	require.NoError(t, err)
	assert.Contains(t, out, "Open Issues")
	assert.Contains(t, out, "Broken login")
	assert.Contains(t, out, "Typo")
}

func TestCLIToggle(t *testing.T) {
	out, stub, err := runCLI(t, "toggle", "--id", "101")

	require.NoError(t, err)
	assert.Equal(t, []string{"GET /api/issues", "POST /api/issues/1/close"}, stub.requests)
	assert.Contains(t, out, "[Open]")
}

func TestCLIToggle_UnknownID(t *testing.T) {
	_, stub, err := runCLI(t, "toggle", "--id", "999")

	require.Error(t, err)
	assert.Equal(t, []string{"GET /api/issues"}, stub.requests)
}

func TestCLIComment(t *testing.T) {
	_, stub, err := runCLI(t, "comment", "--id", "102", "--text", "thanks")

	require.NoError(t, err)
	assert.Equal(t, []string{"GET /api/issues", "POST /api/issues/2/comments"}, stub.requests)
}

func TestCLIComments(t *testing.T) {
	out, _, err := runCLI(t, "comments", "--id", "101")

	require.NoError(t, err)
	assert.Contains(t, out, "--> on it")
}

func TestStreamURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:5050/ws", streamURL("http://localhost:5050"))
	assert.Equal(t, "wss://relay.example.com/ws", streamURL("https://relay.example.com"))
}
