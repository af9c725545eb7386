package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/upb/trailguard/internal/observability"
	"github.com/upb/trailguard/middleware"
	"github.com/upb/trailguard/models"
	"github.com/upb/trailguard/services/incident"
	"github.com/upb/trailguard/utils"
	"go.uber.org/zap"
)

// MaxEventBytes bounds a single ingested audit event
const MaxEventBytes = 1 << 20

// Acknowledgement messages for POST /api/v1/events
const (
	MessageRecorded = "Sensitive incident recorded"
	MessageIgnored  = "Non-sensitive event ignored"
)

// IncidentRecorder persists incidents for sensitive events
type IncidentRecorder interface {
	RecordIncident(ctx context.Context, event *models.AuditEvent) (*incident.Outcome, error)
}

// IngestHandler accepts audit events over HTTP
type IngestHandler struct {
	recorder IncidentRecorder
	metrics  observability.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewIngestHandler creates a new IngestHandler
func NewIngestHandler(recorder IncidentRecorder, metrics observability.Metrics, logger *zap.Logger) *IngestHandler {
	if metrics == nil {
		metrics = observability.NopMetrics{}
	}
	return &IngestHandler{
		recorder: recorder,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleIngest handles POST /api/v1/events
func (h *IngestHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxEventBytes))
	if err != nil {
		h.metrics.RecordIngest(observability.OutcomeRejected)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			_ = utils.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large", nil)
			return
		}
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	event, err := models.ParseAuditEvent(body, h.now())
	if err != nil {
		h.metrics.RecordIngest(observability.OutcomeRejected)
		h.logger.Warn("failed to parse audit event",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(event); err != nil {
		h.metrics.RecordIngest(observability.OutcomeRejected)
		h.logger.Warn("audit event validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	outcome, err := h.recorder.RecordIncident(ctx, event)
	if err != nil {
		h.metrics.RecordIngest(observability.OutcomeFailed)
		HandleServiceError(w, err, h.logger)
		return
	}

	if !outcome.Recorded() {
		h.metrics.RecordIngest(observability.OutcomeSkipped)
		if err := utils.WriteMessage(w, MessageIgnored, ""); err != nil {
			h.logger.Error("failed to write response", zap.String("request_id", requestID), zap.Error(err))
		}
		return
	}

	h.metrics.RecordIngest(observability.OutcomeRecorded)
	h.metrics.RecordIncident(outcome.Severity)

	if err := utils.WriteMessage(w, MessageRecorded, outcome.IncidentID); err != nil {
		h.logger.Error("failed to write response", zap.String("request_id", requestID), zap.Error(err))
	}
}
