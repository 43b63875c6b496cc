package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lorrc/issue-relay/internal/adapters/primary/validation"
	"github.com/lorrc/issue-relay/internal/core/domain"
	"github.com/lorrc/issue-relay/internal/core/ports"
	"github.com/lorrc/issue-relay/internal/infrastructure/logging"
)

type issueIIDKey struct{}

// IssueHandler proxies snapshot and state-change requests to the tracker.
type IssueHandler struct {
	issueService   ports.IssueService
	commentHandler *CommentHandler
	errorHandler   *ErrorHandler
	logger         *slog.Logger
}

func NewIssueHandler(
	issueService ports.IssueService,
	commentHandler *CommentHandler,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *IssueHandler {
	return &IssueHandler{
		issueService:   issueService,
		commentHandler: commentHandler,
		errorHandler:   errorHandler,
		logger:         logger.With("handler", "issue"),
	}
}

// RegisterRoutes mounts the issue endpoints relative to /api/issues. Every
// route under /{iid} sees an already validated iid.
func (h *IssueHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleListIssues)

	r.Route("/{iid}", func(r chi.Router) {
		r.Use(h.requireIssueIID)

		r.Post("/close", h.HandleCloseIssue)
		r.Post("/reopen", h.HandleReopenIssue)

		if h.commentHandler != nil {
			r.Route("/comments", h.commentHandler.RegisterRoutes)
		}
	})
}

// HandleListIssues handles GET /api/issues
func (h *IssueHandler) HandleListIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := h.issueService.ListIssues(r.Context())
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteList(w, issues)
}

// HandleCloseIssue handles POST /api/issues/{iid}/close
func (h *IssueHandler) HandleCloseIssue(w http.ResponseWriter, r *http.Request) {
	h.changeState(w, r, domain.ActionClose, h.issueService.CloseIssue)
}

// HandleReopenIssue handles POST /api/issues/{iid}/reopen
func (h *IssueHandler) HandleReopenIssue(w http.ResponseWriter, r *http.Request) {
	h.changeState(w, r, domain.ActionReopen, h.issueService.ReopenIssue)
}

func (h *IssueHandler) changeState(
	w http.ResponseWriter,
	r *http.Request,
	action domain.Action,
	apply func(ctx context.Context, iid int64) (*domain.Issue, error),
) {
	iid := issueIIDFrom(r.Context())

	issue, err := apply(r.Context(), iid)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	logging.LoggerFromContext(r.Context(), h.logger).Info("issue state changed",
		"iid", iid,
		"action", action,
		"state", issue.State,
	)

	WriteSuccess(w, issue)
}

// requireIssueIID rejects requests whose {iid} is not a positive integer
// and stores the parsed value for the handlers below it.
func (h *IssueHandler) requireIssueIID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := validation.NewValidator()
		iid := v.PositiveID("iid", chi.URLParam(r, "iid"))
		if err := v.Err(); err != nil {
			h.errorHandler.Handle(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), issueIIDKey{}, iid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func issueIIDFrom(ctx context.Context) int64 {
	iid, _ := ctx.Value(issueIIDKey{}).(int64)
	return iid
}
