package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Defaults applied when a CloudTrail record omits a field
const (
	UnknownValue   = "Unknown"
	UnknownEventID = "unknown-event-id"

	// CloudTrailTimeLayout is the layout CloudTrail uses for eventTime
	CloudTrailTimeLayout = "2006-01-02T15:04:05Z"
)

// AuditEvent is one CloudTrail record as seen by the ingest path
type AuditEvent struct {
	EventName       string          `json:"eventName" validate:"required,max=128"`
	Actor           string          `json:"actor" validate:"required,max=2048"`
	SourceIPAddress string          `json:"sourceIPAddress" validate:"required,max=256"`
	EventTime       string          `json:"eventTime" validate:"required,max=64"`
	EventID         string          `json:"eventId" validate:"required,max=128"`
	Payload         json.RawMessage `json:"payload"`
}

// ParseAuditEvent decodes an audit event delivered either as an EventBridge
// envelope ({"detail": {...}}) or as a bare CloudTrail record. Missing fields
// get the same defaults the event processor has always used; a missing
// eventTime is stamped with now.
func ParseAuditEvent(data []byte, now time.Time) (*AuditEvent, error) {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("audit event must be a JSON object: %w", err)
	}
	if body == nil {
		return nil, fmt.Errorf("audit event must be a JSON object")
	}

	payload := json.RawMessage(data)
	if raw, ok := body["detail"]; ok {
		var detail map[string]json.RawMessage
		if err := json.Unmarshal(raw, &detail); err != nil || detail == nil {
			return nil, fmt.Errorf("audit event detail must be a JSON object")
		}
		body = detail
		payload = raw
	}

	event := &AuditEvent{
		EventName:       stringField(body, "eventName", UnknownValue),
		SourceIPAddress: stringField(body, "sourceIPAddress", UnknownValue),
		EventTime:       stringField(body, "eventTime", now.UTC().Format(CloudTrailTimeLayout)),
		EventID:         stringField(body, "eventID", UnknownEventID),
		Actor:           UnknownValue,
		Payload:         compact(payload),
	}

	if raw, ok := body["userIdentity"]; ok {
		var identity map[string]json.RawMessage
		if err := json.Unmarshal(raw, &identity); err == nil {
			event.Actor = stringField(identity, "arn", UnknownValue)
		}
	}

	return event, nil
}

func stringField(obj map[string]json.RawMessage, key, fallback string) string {
	raw, ok := obj[key]
	if !ok {
		return fallback
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return fallback
	}
	return s
}

func compact(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
