package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/trailguard/models"
	"github.com/upb/trailguard/repositories/memory"
	"github.com/upb/trailguard/services/query"
	"go.uber.org/zap"
)

func memoryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("AUTH_DISABLED", "true")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("METRICS_ENABLED", "false")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "trailguard "+Version)
}

func TestUnknownBackend(t *testing.T) {
	memoryEnv(t)
	_, err := execute(t, "--store", "cassandra", "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store backend")
}

func TestMigrate_NothingToDoForMemory(t *testing.T) {
	memoryEnv(t)
	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing to migrate for the memory backend")
}

func TestSeed_Store(t *testing.T) {
	memoryEnv(t)
	out, err := execute(t, "seed", "--sink", "store", "--count", "25", "--seed", "7", "--sensitive-ratio", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "generated 25 events")
}

func TestSeed_RejectsBadFlags(t *testing.T) {
	memoryEnv(t)

	_, err := execute(t, "seed", "--sink", "kafka")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown sink")

	_, err = execute(t, "seed", "--count", "0")
	require.Error(t, err)
}

func TestQuery_EmptyStore(t *testing.T) {
	memoryEnv(t)
	out, err := execute(t, "query", "--severity", "High")
	require.NoError(t, err)

	var res query.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, models.SeverityHigh, res.Severity)
	assert.Equal(t, 0, res.Count)
	assert.Equal(t, query.ModeSeverityIndex, res.Mode)
}

func TestQuery_InvalidSeverity(t *testing.T) {
	memoryEnv(t)
	_, err := execute(t, "query", "--severity", "urgent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "severity must be one of")
}

func TestQuery_SeverityRequired(t *testing.T) {
	memoryEnv(t)
	_, err := execute(t, "query")
	require.Error(t, err)
}

func TestBuildQueryParams(t *testing.T) {
	params, err := buildQueryParams(queryOptions{
		severity:   "Critical",
		from:       "2026-02-13 10:00:00",
		limit:      5,
		includeRaw: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Critical", params.Severity)
	assert.Equal(t, "5", params.Limit)
	assert.Equal(t, "true", params.IncludeRaw)
	assert.Equal(t, "2026-02-13T10:00:00Z", params.From)

	params, err = buildQueryParams(queryOptions{severity: "Low", from: "Feb 13, 2026"})
	require.NoError(t, err)
	assert.Equal(t, "2026-02-13T00:00:00Z", params.From)
	assert.Empty(t, params.Limit)

	_, err = buildQueryParams(queryOptions{severity: "Low", from: "not a date"})
	require.Error(t, err)
}

func TestRunPages_FollowsTokens(t *testing.T) {
	repo := memory.NewIncidentRepository()
	for i := 0; i < 7; i++ {
		require.NoError(t, repo.Put(context.Background(), &models.Incident{
			IncidentID: fmt.Sprintf("inc-%d", i),
			EventTime:  fmt.Sprintf("2026-02-13T08:%02d:00Z", i),
			EventName:  "DeleteTrail",
			Severity:   models.SeverityCritical,
		}))
	}
	engine := query.NewEngine(repo, query.DefaultOptions(), zap.NewNop())

	var out bytes.Buffer
	err := runPages(context.Background(), engine, query.Params{Severity: "Critical", Limit: "3"}, true, &out)
	require.NoError(t, err)

	dec := json.NewDecoder(&out)
	total, pages := 0, 0
	for dec.More() {
		var res query.Result
		require.NoError(t, dec.Decode(&res))
		total += res.Count
		pages++
	}
	assert.Equal(t, 7, total)
	assert.Equal(t, 3, pages)

	out.Reset()
	err = runPages(context.Background(), engine, query.Params{Severity: "Critical", Limit: "3"}, false, &out)
	require.NoError(t, err)
	var first query.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &first))
	assert.Equal(t, 3, first.Count)
	assert.NotEmpty(t, first.NextToken)
}
