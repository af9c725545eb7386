// Package queue reads audit events from a Redis list
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/upb/trailguard/internal/observability"
	"github.com/upb/trailguard/models"
	"go.uber.org/zap"
)

const (
	defaultBlockTimeout = 5 * time.Second
	requeueTimeout      = 2 * time.Second
)

// Config configures the Redis consumer.
type Config struct {
	Key          string
	BlockTimeout time.Duration

	// RetryDelay is the pause after a failed pop
	RetryDelay time.Duration
}

// Sink accepts parsed events
type Sink interface {
	SubmitBlocking(ctx context.Context, event *models.AuditEvent) error
}

// Consumer wraps a Redis list popper.
type Consumer struct {
	client       *goredis.Client
	key          string
	blockTimeout time.Duration
	retryDelay   time.Duration
	metrics      observability.Metrics
	logger       *zap.Logger
	now          func() time.Time
}

// NewConsumer creates a Redis consumer for list-based queues.
func NewConsumer(client *goredis.Client, cfg Config, metrics observability.Metrics, logger *zap.Logger) (*Consumer, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("redis key is required")
	}
	if cfg.BlockTimeout == 0 {
		cfg.BlockTimeout = defaultBlockTimeout
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if metrics == nil {
		metrics = observability.NopMetrics{}
	}

	return &Consumer{
		client:       client,
		key:          cfg.Key,
		blockTimeout: cfg.BlockTimeout,
		retryDelay:   cfg.RetryDelay,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
	}, nil
}

// Pop pops one message from the list. It returns nil, nil when the block
// timeout expires with nothing queued.
func (c *Consumer) Pop(ctx context.Context) ([]byte, error) {
	res, err := c.client.BLPop(ctx, c.blockTimeout, c.key).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, nil
	}
	return []byte(res[1]), nil
}

// Push appends raw messages to the tail of the list
func (c *Consumer) Push(ctx context.Context, payloads ...[]byte) error {
	if len(payloads) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(payloads))
	for _, p := range payloads {
		values = append(values, string(p))
	}
	return c.client.RPush(ctx, c.key, values...).Err()
}

// Run pops messages until ctx is cancelled, handing each parsed event to
// sink. Malformed messages are logged and dropped; the producer owns
// redelivery.
func (c *Consumer) Run(ctx context.Context, sink Sink) error {
	c.logger.Info("queue consumer started",
		zap.String("key", c.key),
		zap.Duration("block_timeout", c.blockTimeout))

	for {
		if ctx.Err() != nil {
			c.logger.Info("queue consumer stopped")
			return nil
		}

		data, err := c.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Error("queue pop failed", zap.String("key", c.key), zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(c.retryDelay):
			}
			continue
		}
		if data == nil {
			continue
		}

		event, err := models.ParseAuditEvent(data, c.now())
		if err != nil {
			c.metrics.RecordIngest(observability.OutcomeRejected)
			c.logger.Warn("dropping malformed queue message",
				zap.Int("bytes", len(data)),
				zap.Error(err))
			continue
		}

		if err := sink.SubmitBlocking(ctx, event); err != nil {
			c.requeue(data, event.EventID, err)
			if ctx.Err() != nil {
				continue
			}
			return fmt.Errorf("submit event %s: %w", event.EventID, err)
		}
	}
}

// requeue puts a popped message back at the head of the list so the next
// consumer sees it first. It uses its own context because the run context is
// usually already cancelled.
func (c *Consumer) requeue(data []byte, eventID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), requeueTimeout)
	defer cancel()

	if err := c.client.LPush(ctx, c.key, string(data)).Err(); err != nil {
		c.logger.Error("event lost: requeue failed",
			zap.String("event_id", eventID),
			zap.NamedError("submit_error", cause),
			zap.Error(err))
		return
	}
	c.logger.Warn("event not submitted, returned to queue",
		zap.String("event_id", eventID),
		zap.String("key", c.key),
		zap.Error(cause))
}

// Close closes the underlying client.
func (c *Consumer) Close() error {
	return c.client.Close()
}
