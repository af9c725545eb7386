// Package memory is an in-process incident store for development and tests
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/upb/trailguard/models"
	"github.com/upb/trailguard/repositories"
)

type primaryKey struct {
	incidentID string
	eventTime  string
}

// IncidentRepository keeps incidents in a map guarded by a RWMutex
type IncidentRepository struct {
	mu         sync.RWMutex
	items      map[primaryKey]*models.Incident
	rangeQuery bool
}

// Option configures the in-memory repository
type Option func(*IncidentRepository)

// WithoutSortKeyRange makes the repository ignore LowerBound, like a store
// that can only filter after reading
func WithoutSortKeyRange() Option {
	return func(r *IncidentRepository) {
		r.rangeQuery = false
	}
}

// NewIncidentRepository creates an empty in-memory repository
func NewIncidentRepository(opts ...Option) *IncidentRepository {
	r := &IncidentRepository{
		items:      make(map[primaryKey]*models.Incident),
		rangeQuery: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Put stores a copy of the incident
func (r *IncidentRepository) Put(ctx context.Context, incident *models.Incident) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := *incident
	r.mu.Lock()
	r.items[primaryKey{incident.IncidentID, incident.EventTime}] = &stored
	r.mu.Unlock()
	return nil
}

// QueryBySeverity scans the map, orders by (eventTime, incidentId) and pages
func (r *IncidentRepository) QueryBySeverity(ctx context.Context, q repositories.IncidentQuery) (*repositories.IncidentPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	matches := make([]*models.Incident, 0)
	for _, item := range r.items {
		if item.Severity != q.Severity {
			continue
		}
		if r.rangeQuery && q.LowerBound != "" && item.EventTime < q.LowerBound {
			continue
		}
		cp := *item
		matches = append(matches, &cp)
	}
	r.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if q.Descending {
			return before(matches[j], matches[i])
		}
		return before(matches[i], matches[j])
	})

	start := 0
	if q.ExclusiveStartKey != nil {
		// resume by position so a key whose item has since moved still works
		cursor := &models.Incident{
			IncidentID: q.ExclusiveStartKey[repositories.KeyIncidentID],
			EventTime:  q.ExclusiveStartKey[repositories.KeyEventTime],
		}
		start = sort.Search(len(matches), func(i int) bool {
			if q.Descending {
				return before(matches[i], cursor)
			}
			return before(cursor, matches[i])
		})
	}

	page := &repositories.IncidentPage{Items: matches[start:]}
	if q.Limit > 0 && len(page.Items) > q.Limit {
		page.Items = page.Items[:q.Limit]
		page.LastEvaluatedKey = repositories.KeyFor(page.Items[len(page.Items)-1])
	}
	return page, nil
}

// SupportsSortKeyRange reports whether LowerBound is honoured
func (r *IncidentRepository) SupportsSortKeyRange() bool {
	return r.rangeQuery
}

// HealthCheck always succeeds
func (r *IncidentRepository) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

// Len returns the number of stored items
func (r *IncidentRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

func before(a, b *models.Incident) bool {
	if a.EventTime != b.EventTime {
		return a.EventTime < b.EventTime
	}
	return a.IncidentID < b.IncidentID
}
