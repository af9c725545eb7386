package models

import "encoding/json"

// Incident is one sensitive audit event, grouped with others from the same
// actor and UTC hour by IncidentID. The store key is (IncidentID, EventTime).
type Incident struct {
	IncidentID      string          `json:"incidentId" db:"incident_id"`
	EventTime       string          `json:"eventTime" db:"event_time"`
	EventID         string          `json:"eventId" db:"event_id"`
	EventName       string          `json:"eventName" db:"event_name"`
	Actor           string          `json:"actor" db:"actor"`
	SourceIPAddress string          `json:"sourceIPAddress" db:"source_ip_address"`
	Severity        Severity        `json:"severity" db:"severity"`
	IsSensitive     bool            `json:"isSensitive" db:"is_sensitive"`
	ActorHourKey    string          `json:"actorHourKey" db:"actor_hour_key"`
	RawEvent        json.RawMessage `json:"rawEvent,omitempty" db:"raw_event"`
}

// TableName returns the table name for the Incident model
func (Incident) TableName() string {
	return "incidents"
}

// IncidentSummary is the public projection returned by the query API
type IncidentSummary struct {
	IncidentID      string          `json:"incidentId"`
	EventName       string          `json:"eventName"`
	Actor           string          `json:"actor"`
	SourceIPAddress string          `json:"sourceIPAddress"`
	EventTime       string          `json:"eventTime"`
	Severity        Severity        `json:"severity"`
	IsSensitive     bool            `json:"isSensitive"`
	RawEvent        json.RawMessage `json:"rawEvent,omitempty"`
}

// Summary projects the incident for API responses, dropping the raw payload
// unless includeRaw is set
func (i *Incident) Summary(includeRaw bool) IncidentSummary {
	s := IncidentSummary{
		IncidentID:      i.IncidentID,
		EventName:       i.EventName,
		Actor:           i.Actor,
		SourceIPAddress: i.SourceIPAddress,
		EventTime:       i.EventTime,
		Severity:        i.Severity,
		IsSensitive:     i.IsSensitive,
	}
	if includeRaw {
		s.RawEvent = i.RawEvent
	}
	return s
}
