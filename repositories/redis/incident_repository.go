// Package redis stores incidents in Redis. Each incident is a JSON string
// under its primary key; each severity has a sorted set whose members
// "<eventTime>|<incidentId>" all share score 0, so lexicographic range
// commands walk the index in eventTime order.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/upb/trailguard/config"
	"github.com/upb/trailguard/models"
	"github.com/upb/trailguard/repositories"
	"go.uber.org/zap"
)

const memberSeparator = "|"

// NewClient opens a client and verifies it with PING
func NewClient(cfg config.RedisConfig) (*goredis.Client, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = "127.0.0.1:6379"
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// IncidentRepository implements repositories.IncidentRepository on Redis
type IncidentRepository struct {
	client *goredis.Client
	prefix string
	logger *zap.Logger
}

// NewIncidentRepository creates a Redis-backed incident repository
func NewIncidentRepository(client *goredis.Client, keyPrefix string, logger *zap.Logger) *IncidentRepository {
	if strings.TrimSpace(keyPrefix) == "" {
		keyPrefix = "trailguard"
	}
	return &IncidentRepository{
		client: client,
		prefix: strings.TrimSpace(keyPrefix),
		logger: logger,
	}
}

// Put writes the item and moves its index entry to the incident's severity
// in one MULTI/EXEC block
func (r *IncidentRepository) Put(ctx context.Context, incident *models.Incident) error {
	data, err := json.Marshal(incident)
	if err != nil {
		return fmt.Errorf("encode incident: %w", err)
	}

	member := encodeMember(incident.EventTime, incident.IncidentID)
	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, r.itemKey(incident.IncidentID, incident.EventTime), data, 0)
		for _, severity := range models.Severities {
			if severity == incident.Severity {
				continue
			}
			pipe.ZRem(ctx, r.indexKey(severity), member)
		}
		pipe.ZAdd(ctx, r.indexKey(incident.Severity), goredis.Z{Score: 0, Member: member})
		return nil
	})
	if err != nil {
		return fmt.Errorf("write incident redis keys: %w", err)
	}

	r.logger.Debug("incident stored",
		zap.String("incident_id", incident.IncidentID),
		zap.String("event_time", incident.EventTime))
	return nil
}

// QueryBySeverity reads one page of index members, then the items they name
func (r *IncidentRepository) QueryBySeverity(ctx context.Context, q repositories.IncidentQuery) (*repositories.IncidentPage, error) {
	count := int64(0)
	if q.Limit > 0 {
		count = int64(q.Limit) + 1
	}

	members, err := r.rangeMembers(ctx, q, count)
	if err != nil {
		return nil, fmt.Errorf("read severity index: %w", err)
	}

	more := q.Limit > 0 && len(members) > q.Limit
	if more {
		members = members[:q.Limit]
	}

	page := &repositories.IncidentPage{Items: make([]*models.Incident, 0, len(members))}
	if len(members) == 0 {
		return page, nil
	}

	keys := make([]string, 0, len(members))
	for _, member := range members {
		eventTime, incidentID, ok := decodeMember(member)
		if !ok {
			continue
		}
		keys = append(keys, r.itemKey(incidentID, eventTime))
	}
	if len(keys) == 0 {
		return page, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read incident items: %w", err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			r.logger.Warn("severity index references missing item", zap.String("key", keys[i]))
			continue
		}
		incident := &models.Incident{}
		if err := json.Unmarshal([]byte(s), incident); err != nil {
			return nil, fmt.Errorf("decode incident %s: %w", keys[i], err)
		}
		page.Items = append(page.Items, incident)
	}

	if more {
		eventTime, incidentID, _ := decodeMember(members[len(members)-1])
		page.LastEvaluatedKey = repositories.Key{
			repositories.KeyIncidentID: incidentID,
			repositories.KeyEventTime:  eventTime,
			repositories.KeySeverity:   string(q.Severity),
		}
	}
	return page, nil
}

func (r *IncidentRepository) rangeMembers(ctx context.Context, q repositories.IncidentQuery, count int64) ([]string, error) {
	key := r.indexKey(q.Severity)

	var start string
	if q.ExclusiveStartKey != nil {
		start = "(" + encodeMember(q.ExclusiveStartKey[repositories.KeyEventTime], q.ExclusiveStartKey[repositories.KeyIncidentID])
	}

	if q.Descending {
		by := &goredis.ZRangeBy{Max: "+", Min: "-", Count: count}
		if start != "" {
			by.Max = start
		}
		if q.LowerBound != "" {
			by.Min = "[" + q.LowerBound
		}
		return r.client.ZRevRangeByLex(ctx, key, by).Result()
	}

	by := &goredis.ZRangeBy{Min: "-", Max: "+", Count: count}
	switch {
	case start != "":
		by.Min = start
	case q.LowerBound != "":
		by.Min = "[" + q.LowerBound
	}
	return r.client.ZRangeByLex(ctx, key, by).Result()
}

// SupportsSortKeyRange is true: lexicographic ranges bound eventTime
func (r *IncidentRepository) SupportsSortKeyRange() bool {
	return true
}

// HealthCheck pings Redis
func (r *IncidentRepository) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (r *IncidentRepository) Close() error {
	return r.client.Close()
}

func (r *IncidentRepository) itemKey(incidentID, eventTime string) string {
	return fmt.Sprintf("%s:incident:%s:%s", r.prefix, incidentID, eventTime)
}

func (r *IncidentRepository) indexKey(severity models.Severity) string {
	return fmt.Sprintf("%s:severity:%s", r.prefix, severity)
}

func encodeMember(eventTime, incidentID string) string {
	return eventTime + memberSeparator + incidentID
}

func decodeMember(member string) (string, string, bool) {
	eventTime, incidentID, ok := strings.Cut(member, memberSeparator)
	if !ok || eventTime == "" || incidentID == "" {
		return "", "", false
	}
	return eventTime, incidentID, true
}
