package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/upb/trailguard/models"
	"github.com/upb/trailguard/repositories"
	"go.uber.org/zap"
)

// IncidentRepository implements repositories.IncidentRepository on PostgreSQL
type IncidentRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewIncidentRepository creates a new incident repository
func NewIncidentRepository(db *DB, logger *zap.Logger) *IncidentRepository {
	return &IncidentRepository{
		db:     db,
		logger: logger,
	}
}

const upsertIncident = `
	INSERT INTO incidents (
		incident_id, event_time, event_id, event_name, actor,
		source_ip_address, severity, is_sensitive, actor_hour_key, raw_event
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
	)
	ON CONFLICT (incident_id, event_time) DO UPDATE SET
		event_id = EXCLUDED.event_id,
		event_name = EXCLUDED.event_name,
		actor = EXCLUDED.actor,
		source_ip_address = EXCLUDED.source_ip_address,
		severity = EXCLUDED.severity,
		is_sensitive = EXCLUDED.is_sensitive,
		actor_hour_key = EXCLUDED.actor_hour_key,
		raw_event = EXCLUDED.raw_event,
		recorded_at = CURRENT_TIMESTAMP
`

const selectIncidents = `
	SELECT incident_id, event_time, event_id, event_name, actor,
	       source_ip_address, severity, is_sensitive, actor_hour_key, raw_event
	FROM incidents
`

// Put upserts the incident; the latest write for a primary key wins
func (r *IncidentRepository) Put(ctx context.Context, incident *models.Incident) error {
	_, err := r.db.ExecContext(ctx, upsertIncident,
		incident.IncidentID,
		incident.EventTime,
		incident.EventID,
		incident.EventName,
		incident.Actor,
		incident.SourceIPAddress,
		string(incident.Severity),
		incident.IsSensitive,
		incident.ActorHourKey,
		jsonValue(incident.RawEvent),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert incident: %w", err)
	}

	r.logger.Debug("incident upserted",
		zap.String("incident_id", incident.IncidentID),
		zap.String("event_time", incident.EventTime))
	return nil
}

// QueryBySeverity reads one page using keyset pagination over
// (event_time, incident_id). One extra row is fetched to learn whether the
// page is the last.
func (r *IncidentRepository) QueryBySeverity(ctx context.Context, q repositories.IncidentQuery) (*repositories.IncidentPage, error) {
	query, args := buildSeverityQuery(q)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	items := make([]*models.Incident, 0, q.Limit+1)
	for rows.Next() {
		incident := &models.Incident{}
		var severity string
		var raw []byte
		if err := rows.Scan(
			&incident.IncidentID,
			&incident.EventTime,
			&incident.EventID,
			&incident.EventName,
			&incident.Actor,
			&incident.SourceIPAddress,
			&severity,
			&incident.IsSensitive,
			&incident.ActorHourKey,
			&raw,
		); err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		incident.Severity = models.Severity(severity)
		if len(raw) > 0 {
			incident.RawEvent = raw
		}
		items = append(items, incident)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating incidents: %w", err)
	}

	page := &repositories.IncidentPage{Items: items}
	if q.Limit > 0 && len(items) > q.Limit {
		page.Items = items[:q.Limit]
		page.LastEvaluatedKey = repositories.KeyFor(page.Items[q.Limit-1])
	}
	return page, nil
}

// SupportsSortKeyRange is true: event_time bounds are pushed into SQL
func (r *IncidentRepository) SupportsSortKeyRange() bool {
	return true
}

// HealthCheck pings the database
func (r *IncidentRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

func buildSeverityQuery(q repositories.IncidentQuery) (string, []interface{}) {
	var b strings.Builder
	b.WriteString(selectIncidents)
	b.WriteString("\tWHERE severity = $1")
	args := []interface{}{string(q.Severity)}

	if q.LowerBound != "" {
		args = append(args, q.LowerBound)
		fmt.Fprintf(&b, " AND event_time >= $%d", len(args))
	}

	cmp, dir := ">", "ASC"
	if q.Descending {
		cmp, dir = "<", "DESC"
	}

	if q.ExclusiveStartKey != nil {
		args = append(args,
			q.ExclusiveStartKey[repositories.KeyEventTime],
			q.ExclusiveStartKey[repositories.KeyIncidentID])
		fmt.Fprintf(&b, " AND (event_time, incident_id) %s ($%d, $%d)", cmp, len(args)-1, len(args))
	}

	fmt.Fprintf(&b, "\n\tORDER BY event_time %s, incident_id %s", dir, dir)
	if q.Limit > 0 {
		args = append(args, q.Limit+1)
		fmt.Fprintf(&b, "\n\tLIMIT $%d", len(args))
	}
	return b.String(), args
}

// jsonValue passes JSONB as text so lib/pq does not send it as bytea
func jsonValue(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
