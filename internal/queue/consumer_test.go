package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/trailguard/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const testKey = "trailguard:audit_events"

type captureSink struct {
	mu     sync.Mutex
	events []*models.AuditEvent
	onAdd  func()
	err    error
}

func (s *captureSink) SubmitBlocking(ctx context.Context, event *models.AuditEvent) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	if s.onAdd != nil {
		s.onAdd()
	}
	return nil
}

func TestNewConsumer_RequiresKey(t *testing.T) {
	client, _ := redismock.NewClientMock()
	_, err := NewConsumer(client, Config{}, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestConsumer_Pop(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c, err := NewConsumer(client, Config{Key: testKey, BlockTimeout: time.Second}, nil, zap.NewNop())
	require.NoError(t, err)

	mock.ExpectBLPop(time.Second, testKey).SetVal([]string{testKey, `{"eventName":"CreateUser"}`})
	mock.ExpectBLPop(time.Second, testKey).RedisNil()

	data, err := c.Pop(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"eventName":"CreateUser"}`, string(data))

	data, err = c.Pop(context.Background())
	require.NoError(t, err)
	assert.Nil(t, data)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumer_Push(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c, err := NewConsumer(client, Config{Key: testKey}, nil, zap.NewNop())
	require.NoError(t, err)

	mock.ExpectRPush(testKey, `{"a":1}`, `{"b":2}`).SetVal(2)

	require.NoError(t, c.Push(context.Background(), []byte(`{"a":1}`), []byte(`{"b":2}`)))
	require.NoError(t, c.Push(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumer_RunDropsMalformedAndSubmitsValid(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c, err := NewConsumer(client, Config{Key: testKey, BlockTimeout: time.Second}, nil, zap.NewNop())
	require.NoError(t, err)

	valid := `{"detail":{"eventName":"CreateAccessKey","eventTime":"2026-02-13T08:01:20Z","eventID":"ev-1","sourceIPAddress":"203.0.113.10","userIdentity":{"arn":"arn:aws:iam::123:user/bob"}}}`
	mock.ExpectBLPop(time.Second, testKey).SetVal([]string{testKey, `not json`})
	mock.ExpectBLPop(time.Second, testKey).RedisNil()
	mock.ExpectBLPop(time.Second, testKey).SetVal([]string{testKey, valid})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &captureSink{onAdd: cancel}

	require.NoError(t, c.Run(ctx, sink))

	require.Len(t, sink.events, 1)
	assert.Equal(t, "CreateAccessKey", sink.events[0].EventName)
	assert.Equal(t, "arn:aws:iam::123:user/bob", sink.events[0].Actor)
	assert.Equal(t, "ev-1", sink.events[0].EventID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumer_RunReturnsSinkError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c, err := NewConsumer(client, Config{Key: testKey, BlockTimeout: time.Second}, nil, zap.NewNop())
	require.NoError(t, err)

	mock.ExpectBLPop(time.Second, testKey).SetVal([]string{testKey, `{"eventName":"DeleteUser","eventID":"ev-9"}`})

	mock.ExpectLPush(testKey, `{"eventName":"DeleteUser","eventID":"ev-9"}`).SetVal(1)

	sink := &captureSink{err: errors.New("ingest service not running")}
	err = c.Run(context.Background(), sink)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ev-9")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// cancelSink mimics a full ingest buffer during shutdown
type cancelSink struct {
	cancel context.CancelFunc
}

func (s *cancelSink) SubmitBlocking(ctx context.Context, event *models.AuditEvent) error {
	s.cancel()
	<-ctx.Done()
	return ctx.Err()
}

func TestConsumer_RunRequeuesOnShutdown(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	client, mock := redismock.NewClientMock()
	c, err := NewConsumer(client, Config{Key: testKey, BlockTimeout: time.Second}, nil, zap.New(core))
	require.NoError(t, err)

	msg := `{"eventName":"CreateAccessKey","eventID":"ev-42"}`
	mock.ExpectBLPop(time.Second, testKey).SetVal([]string{testKey, msg})
	mock.ExpectLPush(testKey, msg).SetVal(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, c.Run(ctx, &cancelSink{cancel: cancel}))
	assert.NoError(t, mock.ExpectationsWereMet())

	entries := logs.FilterMessage("event not submitted, returned to queue").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "ev-42", entries[0].ContextMap()["event_id"])
}

func TestConsumer_RunLogsWhenRequeueFails(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	client, mock := redismock.NewClientMock()
	c, err := NewConsumer(client, Config{Key: testKey, BlockTimeout: time.Second}, nil, zap.New(core))
	require.NoError(t, err)

	msg := `{"eventName":"CreateUser","eventID":"ev-43"}`
	mock.ExpectBLPop(time.Second, testKey).SetVal([]string{testKey, msg})
	mock.ExpectLPush(testKey, msg).SetErr(errors.New("connection reset"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, c.Run(ctx, &cancelSink{cancel: cancel}))

	entries := logs.FilterMessage("event lost: requeue failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "ev-43", entries[0].ContextMap()["event_id"])
}

func TestConsumer_RunRetriesAfterPopError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c, err := NewConsumer(client, Config{Key: testKey, BlockTimeout: time.Second, RetryDelay: time.Millisecond}, nil, zap.NewNop())
	require.NoError(t, err)

	mock.ExpectBLPop(time.Second, testKey).SetErr(errors.New("connection refused"))
	mock.ExpectBLPop(time.Second, testKey).SetVal([]string{testKey, `{"eventName":"CreateUser"}`})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &captureSink{onAdd: cancel}

	require.NoError(t, c.Run(ctx, sink))
	assert.Len(t, sink.events, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
