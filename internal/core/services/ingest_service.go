package services

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"

	apperrors "github.com/lorrc/issue-relay/internal/core/errors"
	"github.com/lorrc/issue-relay/internal/core/ports"
	"github.com/lorrc/issue-relay/internal/infrastructure/logging"
)

// IngestService is the webhook ingestion gateway. It filters notifications
// by shared secret and forwards accepted payloads verbatim to the fan-out.
type IngestService struct {
	secret      []byte
	broadcaster ports.EventBroadcaster
	logger      *slog.Logger
}

var _ ports.IngestService = (*IngestService)(nil)

// NewIngestService creates the gateway. An empty secret rejects everything.
func NewIngestService(
	secret string,
	broadcaster ports.EventBroadcaster,
	logger *slog.Logger,
) ports.IngestService {
	return &IngestService{
		secret:      []byte(secret),
		broadcaster: broadcaster,
		logger:      logger.With("component", "ingest_service"),
	}
}

// Ingest accepts the notification only if the presented secret matches.
// The payload is not validated here; viewers tolerate malformed events.
func (s *IngestService) Ingest(ctx context.Context, params ports.IngestParams) error {
	logger := logging.LoggerFromContext(ctx, s.logger)

	if !s.secretMatches(params.PresentedSecret) {
		logger.Warn("webhook rejected: secret mismatch")
		return apperrors.ErrUnauthorized
	}

	logger.Info("webhook accepted",
		"object_kind", peekObjectKind(params.Payload),
		"bytes", len(params.Payload),
	)

	return s.broadcaster.Broadcast(params.Payload)
}

func (s *IngestService) secretMatches(presented string) bool {
	if len(s.secret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(s.secret, []byte(presented)) == 1
}

// peekObjectKind extracts object_kind for logging only.
func peekObjectKind(payload []byte) string {
	var head struct {
		ObjectKind string `json:"object_kind"`
	}
	if err := json.Unmarshal(payload, &head); err != nil || head.ObjectKind == "" {
		return "unknown"
	}
	return head.ObjectKind
}
