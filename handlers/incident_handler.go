package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/upb/trailguard/internal/observability"
	"github.com/upb/trailguard/middleware"
	"github.com/upb/trailguard/services"
	"github.com/upb/trailguard/services/query"
	"github.com/upb/trailguard/utils"
	"go.uber.org/zap"
)

// IncidentQuerier runs severity queries
type IncidentQuerier interface {
	Query(ctx context.Context, p query.Params) (*query.Result, error)
}

// IncidentHandler serves incident queries
type IncidentHandler struct {
	engine  IncidentQuerier
	metrics observability.Metrics
	logger  *zap.Logger
}

// NewIncidentHandler creates a new IncidentHandler
func NewIncidentHandler(engine IncidentQuerier, metrics observability.Metrics, logger *zap.Logger) *IncidentHandler {
	if metrics == nil {
		metrics = observability.NopMetrics{}
	}
	return &IncidentHandler{
		engine:  engine,
		metrics: metrics,
		logger:  logger,
	}
}

// HandleList handles GET /api/v1/incidents
func (h *IncidentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)
	start := time.Now()

	q := r.URL.Query()
	params := query.Params{
		Severity:   q.Get("severity"),
		From:       q.Get("from"),
		Limit:      q.Get("limit"),
		NextToken:  q.Get("nextToken"),
		IncludeRaw: q.Get("includeRaw"),
	}

	result, err := h.engine.Query(ctx, params)
	if err != nil {
		h.metrics.RecordQuery(queryStatus(err), time.Since(start))
		if services.IsInvalidArgument(err) {
			h.logger.Info("rejected incident query",
				zap.String("request_id", requestID),
				zap.Any("details", services.GetErrorDetails(err)))
		}
		HandleServiceError(w, err, h.logger)
		return
	}
	h.metrics.RecordQuery("ok", time.Since(start))

	user := ""
	if claims := middleware.GetClaimsFromContext(ctx); claims != nil {
		user = claims.Sub
	}
	h.logger.Debug("incident query served",
		zap.String("request_id", requestID),
		zap.String("user", user),
		zap.String("severity", string(result.Severity)),
		zap.Int("count", result.Count))

	if err := utils.WriteOK(w, result); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

func queryStatus(err error) string {
	switch {
	case services.IsInvalidArgument(err):
		return "invalid"
	case services.IsStoreFailure(err):
		return "store_error"
	default:
		return "error"
	}
}
