package http

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/lorrc/issue-relay/internal/core/errors"
	"github.com/lorrc/issue-relay/internal/core/ports"
)

// maxWebhookBodyBytes bounds a single notification payload.
const maxWebhookBodyBytes = 1 << 20

// WebhookHandler accepts tracker notifications and hands them to the ingest
// service.
type WebhookHandler struct {
	ingestService ports.IngestService
	tokenHeader   string
	errorHandler  *ErrorHandler
	logger        *slog.Logger
}

// NewWebhookHandler creates a new webhook handler. tokenHeader names the
// request header carrying the shared secret.
func NewWebhookHandler(
	ingestService ports.IngestService,
	tokenHeader string,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		ingestService: ingestService,
		tokenHeader:   tokenHeader,
		errorHandler:  errorHandler,
		logger:        logger.With("handler", "webhook"),
	}
}

// RegisterRoutes registers the webhook endpoint relative to /webhook.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/gitlab", h.HandleGitLab)
}

// HandleGitLab handles POST /webhook/gitlab
func (h *WebhookHandler) HandleGitLab(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(err, "Invalid request body"))
		return
	}

	err = h.ingestService.Ingest(r.Context(), ports.IngestParams{
		Payload:         payload,
		PresentedSecret: r.Header.Get(h.tokenHeader),
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteSuccess(w, MessageResponse{Message: "Webhook received"})
}
