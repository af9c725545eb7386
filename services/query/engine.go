package query

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/upb/trailguard/models"
	"github.com/upb/trailguard/repositories"
	"github.com/upb/trailguard/services"
	"go.uber.org/zap"
)

// ModeSeverityIndex is reported in every result; it names the access path
const ModeSeverityIndex = "severity-index"

const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// zoneless is accepted for `from` and read as UTC
const zoneless = "2006-01-02T15:04:05"

// Options tunes the engine
type Options struct {
	DefaultLimit int
	MaxLimit     int

	// ServerSideRange pushes `from` down to stores that support sort key ranges
	ServerSideRange bool
}

// DefaultOptions returns the limits used when nothing is configured
func DefaultOptions() Options {
	return Options{
		DefaultLimit:    DefaultLimit,
		MaxLimit:        MaxLimit,
		ServerSideRange: true,
	}
}

// Params are the raw, unvalidated inputs of a query, as they arrive on a
// query string. Empty means absent.
type Params struct {
	Severity   string
	From       string
	Limit      string
	NextToken  string
	IncludeRaw string
}

// Request is a validated query
type Request struct {
	Severity   models.Severity
	Limit      int
	IncludeRaw bool

	// From is an RFC3339 UTC lower bound on eventTime, "" for none
	From string

	StartKey repositories.Key
}

// Result is one page of incidents
type Result struct {
	Mode      string                   `json:"mode"`
	Severity  models.Severity          `json:"severity"`
	Count     int                      `json:"count"`
	Items     []models.IncidentSummary `json:"items"`
	NextToken string                   `json:"nextToken,omitempty"`
}

// Engine answers paginated severity queries against the incident store
type Engine struct {
	repo   repositories.IncidentRepository
	opts   Options
	logger *zap.Logger
}

// NewEngine creates a query engine. Zero limits fall back to the defaults and
// MaxLimit never exceeds the package cap.
func NewEngine(repo repositories.IncidentRepository, opts Options, logger *zap.Logger) *Engine {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.MaxLimit <= 0 || opts.MaxLimit > MaxLimit {
		opts.MaxLimit = MaxLimit
	}
	if opts.DefaultLimit > opts.MaxLimit {
		opts.DefaultLimit = opts.MaxLimit
	}
	return &Engine{
		repo:   repo,
		opts:   opts,
		logger: logger,
	}
}

// Query validates raw params and runs the query
func (e *Engine) Query(ctx context.Context, p Params) (*Result, error) {
	req, err := e.ParseParams(p)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, req)
}

// ParseParams validates raw params into a Request
func (e *Engine) ParseParams(p Params) (Request, error) {
	var req Request

	severity, err := models.ParseSeverity(p.Severity)
	if err != nil {
		return req, services.NewInvalidArgument("severity", "severity must be one of Critical, High, Medium, Low")
	}
	req.Severity = severity

	req.Limit = e.opts.DefaultLimit
	if p.Limit != "" {
		n, err := strconv.Atoi(strings.TrimSpace(p.Limit))
		if err != nil || n <= 0 {
			return req, services.NewInvalidArgument("limit", "limit must be a positive integer")
		}
		req.Limit = n
	}

	if p.IncludeRaw != "" {
		raw, err := strconv.ParseBool(strings.TrimSpace(p.IncludeRaw))
		if err != nil {
			return req, services.NewInvalidArgument("includeRaw", "includeRaw must be true or false")
		}
		req.IncludeRaw = raw
	}

	if p.From != "" {
		from, err := NormalizeFrom(p.From)
		if err != nil {
			return req, err
		}
		req.From = from
	}

	if p.NextToken != "" {
		key, err := DecodeToken(p.NextToken)
		if err != nil {
			return req, err
		}
		req.StartKey = key
	}

	return req, nil
}

// NormalizeFrom parses an RFC3339 or zone-less timestamp and returns it in
// the stored eventTime layout (UTC, whole seconds). Fractional seconds round
// up so that a string comparison against stored times stays exact.
func NormalizeFrom(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		t, err = time.ParseInLocation(zoneless, raw, time.UTC)
	}
	if err != nil {
		return "", services.NewInvalidArgument("from", "from must be an ISO 8601 timestamp")
	}

	t = t.UTC()
	if t.Nanosecond() > 0 {
		t = t.Truncate(time.Second).Add(time.Second)
	}
	return t.Format(models.CloudTrailTimeLayout), nil
}

// Run executes a validated request
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	if !req.Severity.IsValid() {
		return nil, services.NewInvalidArgument("severity", "severity must be one of Critical, High, Medium, Low")
	}
	if req.Limit <= 0 {
		return nil, services.NewInvalidArgument("limit", "limit must be a positive integer")
	}
	if len(req.StartKey) > 0 && req.StartKey[repositories.KeySeverity] != string(req.Severity) {
		return nil, services.NewInvalidArgument("nextToken", "nextToken does not belong to this severity")
	}

	limit := req.Limit
	if limit > e.opts.MaxLimit {
		limit = e.opts.MaxLimit
	}

	serverRange := req.From != "" && e.opts.ServerSideRange && e.repo.SupportsSortKeyRange()

	q := repositories.IncidentQuery{
		Severity:          req.Severity,
		Descending:        true,
		Limit:             limit,
		ExclusiveStartKey: req.StartKey,
	}
	if serverRange {
		q.LowerBound = req.From
	}

	page, err := e.repo.QueryBySeverity(ctx, q)
	if err != nil {
		e.logger.Error("incident query failed",
			zap.String("severity", string(req.Severity)),
			zap.Error(err))
		return nil, services.WrapStoreQuery(err)
	}

	items := page.Items
	lastKey := page.LastEvaluatedKey
	if req.From != "" && !serverRange {
		var exhausted bool
		items, exhausted = filterFrom(items, req.From)
		if exhausted {
			lastKey = nil
		}
	}

	result := &Result{
		Mode:     ModeSeverityIndex,
		Severity: req.Severity,
		Count:    len(items),
		Items:    make([]models.IncidentSummary, 0, len(items)),
	}
	for _, item := range items {
		result.Items = append(result.Items, item.Summary(req.IncludeRaw))
	}

	if len(lastKey) > 0 {
		token, err := EncodeToken(lastKey)
		if err != nil {
			return nil, services.WrapInternal("failed to encode continuation token", err)
		}
		result.NextToken = token
	}

	e.logger.Debug("incident query",
		zap.String("severity", string(req.Severity)),
		zap.Int("limit", limit),
		zap.String("from", req.From),
		zap.Bool("server_range", serverRange),
		zap.Int("count", result.Count),
		zap.Bool("has_next", result.NextToken != ""))

	return result, nil
}

// filterFrom drops items older than from. Items arrive newest first, so once
// one is dropped no later page can match and the caller stops paginating.
// Items with an unparseable eventTime are kept.
func filterFrom(items []*models.Incident, from string) ([]*models.Incident, bool) {
	bound, err := time.Parse(time.RFC3339, from)
	if err != nil {
		return items, false
	}

	kept := make([]*models.Incident, 0, len(items))
	exhausted := false
	for _, item := range items {
		t, err := time.Parse(time.RFC3339Nano, item.EventTime)
		if err == nil && t.Before(bound) {
			exhausted = true
			continue
		}
		kept = append(kept, item)
	}
	return kept, exhausted
}
