package repositories

import (
	"context"

	"github.com/upb/trailguard/models"
)

// Key attribute names shared by every backend's continuation key
const (
	KeyIncidentID = "incidentId"
	KeyEventTime  = "eventTime"
	KeySeverity   = "severity"
)

// Key is a store continuation key: the primary key plus index key of the
// last item a page returned. Backends produce and accept the same shape.
type Key map[string]string

// Valid reports whether the key carries every attribute a backend needs to
// resume a severity index query
func (k Key) Valid() bool {
	return k[KeyIncidentID] != "" && k[KeyEventTime] != "" && k[KeySeverity] != ""
}

// KeyFor builds the continuation key that resumes a query after incident
func KeyFor(incident *models.Incident) Key {
	return Key{
		KeyIncidentID: incident.IncidentID,
		KeyEventTime:  incident.EventTime,
		KeySeverity:   string(incident.Severity),
	}
}

// IncidentQuery describes one page of a severity index query
type IncidentQuery struct {
	Severity models.Severity

	// Descending orders by eventTime newest first
	Descending bool

	// Limit is the maximum number of items to evaluate
	Limit int

	// LowerBound, when set, keeps only items with eventTime >= LowerBound.
	// Only honoured by stores that report SupportsSortKeyRange.
	LowerBound string

	// ExclusiveStartKey resumes after the item it identifies
	ExclusiveStartKey Key
}

// IncidentPage is one page of query results
type IncidentPage struct {
	Items []*models.Incident

	// LastEvaluatedKey is nil when the query is exhausted
	LastEvaluatedKey Key
}

// IncidentRepository is the incident store: a key-value table keyed by
// (incidentId, eventTime) with a secondary index on (severity, eventTime)
type IncidentRepository interface {
	// Put writes the incident, replacing any item with the same primary key
	Put(ctx context.Context, incident *models.Incident) error

	// QueryBySeverity returns one page from the severity index
	QueryBySeverity(ctx context.Context, q IncidentQuery) (*IncidentPage, error)

	// SupportsSortKeyRange reports whether LowerBound is applied by the store
	SupportsSortKeyRange() bool
}

// HealthChecker is implemented by stores that can report readiness
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
