package incident

import (
	"context"

	"github.com/upb/trailguard/models"
	"github.com/upb/trailguard/repositories"
	"github.com/upb/trailguard/services"
	"github.com/upb/trailguard/services/identity"
	"go.uber.org/zap"
)

// Status is the result of recording one audit event
type Status string

const (
	// StatusRecorded means the event was sensitive and stored
	StatusRecorded Status = "recorded"
	// StatusSkipped means the event was not sensitive; nothing was stored
	StatusSkipped Status = "skipped"
)

// Outcome describes what RecordIncident did with an event
type Outcome struct {
	Status     Status
	IncidentID string
	Severity   models.Severity
}

// Recorded reports whether the event was stored
func (o *Outcome) Recorded() bool {
	return o.Status == StatusRecorded
}

// Classifier decides whether an event name is sensitive
type Classifier interface {
	Classify(eventName string) (bool, models.Severity)
}

// Writer turns sensitive audit events into stored incidents
type Writer struct {
	classifier Classifier
	repo       repositories.IncidentRepository
	logger     *zap.Logger
}

// NewWriter creates a new incident writer
func NewWriter(classifier Classifier, repo repositories.IncidentRepository, logger *zap.Logger) *Writer {
	return &Writer{
		classifier: classifier,
		repo:       repo,
		logger:     logger,
	}
}

// RecordIncident classifies the event and, when sensitive, upserts one
// incident keyed by (incidentId, eventTime). Non-sensitive events are
// skipped without touching the store. Store errors are returned as
// store_write_failure and are not retried.
func (w *Writer) RecordIncident(ctx context.Context, event *models.AuditEvent) (*Outcome, error) {
	sensitive, severity := w.classifier.Classify(event.EventName)
	if !sensitive {
		w.logger.Debug("non-sensitive event ignored",
			zap.String("event_name", event.EventName),
			zap.String("event_id", event.EventID))
		return &Outcome{Status: StatusSkipped, Severity: severity}, nil
	}

	id := identity.Derive(event.Actor, event.EventTime)
	incident := &models.Incident{
		IncidentID:      id.IncidentID,
		EventTime:       event.EventTime,
		EventID:         event.EventID,
		EventName:       event.EventName,
		Actor:           event.Actor,
		SourceIPAddress: event.SourceIPAddress,
		Severity:        severity,
		IsSensitive:     true,
		ActorHourKey:    id.ActorHourKey,
		RawEvent:        event.Payload,
	}

	if err := w.repo.Put(ctx, incident); err != nil {
		return nil, services.WrapStoreWrite(err).WithDetail("incident_id", incident.IncidentID)
	}

	w.logger.Info("sensitive incident recorded",
		zap.String("incident_id", incident.IncidentID),
		zap.String("event_name", incident.EventName),
		zap.String("severity", string(severity)),
		zap.String("actor", incident.Actor),
		zap.String("event_time", incident.EventTime),
		zap.String("event_id", incident.EventID))

	return &Outcome{
		Status:     StatusRecorded,
		IncidentID: incident.IncidentID,
		Severity:   severity,
	}, nil
}
