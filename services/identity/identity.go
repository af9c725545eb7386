// Package identity derives the deterministic incident identifier that groups
// sensitive activity by actor and UTC hour.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const (
	// Delimiter separates actor and hour bucket in the actor-hour key.
	// ARNs never contain it.
	Delimiter = "|"

	// IDLength is the number of hex characters kept from the digest (80 bits)
	IDLength = 20

	hourLayout = "2006-01-02T15"
	hourPrefix = len(hourLayout)
)

// Identity is the derived grouping key of an incident
type Identity struct {
	IncidentID   string
	HourBucket   string
	ActorHourKey string
}

// Derive computes the incident identity for an actor and event time.
// It never fails: when eventTime is not an RFC 3339 timestamp its first 13
// characters are used as the hour bucket.
func Derive(actor, eventTime string) Identity {
	bucket := HourBucket(eventTime)
	key := actor + Delimiter + bucket
	sum := sha256.Sum256([]byte(key))

	return Identity{
		IncidentID:   hex.EncodeToString(sum[:])[:IDLength],
		HourBucket:   bucket,
		ActorHourKey: key,
	}
}

// HourBucket returns the UTC hour containing eventTime, e.g. 2026-02-13T08
func HourBucket(eventTime string) string {
	if t, err := time.Parse(time.RFC3339, eventTime); err == nil {
		return t.UTC().Format(hourLayout)
	}
	if len(eventTime) > hourPrefix {
		return eventTime[:hourPrefix]
	}
	return eventTime
}
