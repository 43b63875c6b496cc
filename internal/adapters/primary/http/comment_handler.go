package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lorrc/issue-relay/internal/adapters/primary/validation"
	"github.com/lorrc/issue-relay/internal/core/domain"
	"github.com/lorrc/issue-relay/internal/core/ports"
	"github.com/lorrc/issue-relay/internal/infrastructure/logging"
)

// CommentHandler proxies note reads and writes for one issue. It is mounted
// below IssueHandler, which supplies the validated iid.
type CommentHandler struct {
	issueService ports.IssueService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

func NewCommentHandler(
	issueService ports.IssueService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *CommentHandler {
	return &CommentHandler{
		issueService: issueService,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "comment"),
	}
}

// RegisterRoutes mounts the endpoints relative to /api/issues/{iid}/comments.
func (h *CommentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.HandleCreateComment)
	r.Get("/", h.HandleListComments)
}

// CreateCommentRequest is the body of POST /api/issues/{iid}/comments.
type CreateCommentRequest struct {
	Comment string `json:"comment"`
}

func (r *CreateCommentRequest) Validate() error {
	v := validation.NewValidator()
	v.Required("comment", r.Comment).
		MaxLength("comment", r.Comment, domain.MaxCommentBodyLength)
	return v.Err()
}

// HandleCreateComment handles POST /api/issues/{iid}/comments
func (h *CommentHandler) HandleCreateComment(w http.ResponseWriter, r *http.Request) {
	iid := issueIIDFrom(r.Context())

	req, err := validation.DecodeAndValidate[CreateCommentRequest](w, r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	comment, err := h.issueService.AddComment(r.Context(), ports.AddCommentParams{
		IssueIID: iid,
		Body:     req.Comment,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	logging.LoggerFromContext(r.Context(), h.logger).Info("comment created",
		"iid", iid,
		"comment_id", comment.ID,
	)

	WriteCreated(w, comment)
}

// HandleListComments handles GET /api/issues/{iid}/comments
func (h *CommentHandler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.issueService.ListComments(r.Context(), issueIIDFrom(r.Context()))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteList(w, comments)
}
