package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/upb/trailguard/internal/observability"
	"github.com/upb/trailguard/models"
	"github.com/upb/trailguard/services"
	"github.com/upb/trailguard/services/incident"
	"go.uber.org/zap"
)

// Recorder records one audit event
type Recorder interface {
	RecordIncident(ctx context.Context, event *models.AuditEvent) (*incident.Outcome, error)
}

// Service feeds audit events to the incident writer from a bounded buffer
// drained by a fixed set of workers
type Service struct {
	recorder     Recorder
	metrics      observability.Metrics
	logger       *zap.Logger
	eventChan    chan *models.AuditEvent
	workerCount  int
	bufferSize   int
	writeTimeout time.Duration
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
	started      bool
	stopped      bool
	mu           sync.Mutex

	processed atomic.Int64
	recorded  atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
}

// Config holds configuration for the Service
type Config struct {
	BufferSize   int           // Size of the event buffer channel
	WorkerCount  int           // Number of concurrent workers
	WriteTimeout time.Duration // Deadline for one store write
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:   1000,
		WorkerCount:  4,
		WriteTimeout: 5 * time.Second,
	}
}

// NewService creates a new ingest service. Zero fields fall back to DefaultConfig.
func NewService(recorder Recorder, metrics observability.Metrics, logger *zap.Logger, config Config) *Service {
	def := DefaultConfig()
	if config.WorkerCount <= 0 {
		config.WorkerCount = def.WorkerCount
	}
	if config.BufferSize < 0 {
		config.BufferSize = def.BufferSize
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = def.WriteTimeout
	}
	if metrics == nil {
		metrics = observability.NopMetrics{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		recorder:     recorder,
		metrics:      metrics,
		logger:       logger,
		eventChan:    make(chan *models.AuditEvent, config.BufferSize),
		workerCount:  config.WorkerCount,
		bufferSize:   config.BufferSize,
		writeTimeout: config.WriteTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start starts the background workers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("ingest service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started ingest service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop stops accepting events and waits for buffered ones to be written
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return services.ErrNotStarted
	}
	s.stopped = true
	close(s.eventChan)
	s.mu.Unlock()

	s.logger.Info("stopping ingest service", zap.Int("pending_events", len(s.eventChan)))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("ingest service stopped gracefully")
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("ingest service stop timeout after %v", timeout)
	}
}

// Submit queues an event without blocking. It fails with ErrQueueFull when
// the buffer has no room.
func (s *Service) Submit(event *models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.stopped {
		return services.ErrNotStarted
	}

	select {
	case s.eventChan <- event:
		return nil
	default:
		s.metrics.RecordIngest(observability.OutcomeDropped)
		s.logger.Warn("ingest buffer full, dropping event",
			zap.String("event_name", event.EventName),
			zap.String("event_id", event.EventID))
		return services.ErrQueueFull
	}
}

// SubmitBlocking waits until the event is queued or ctx is done
func (s *Service) SubmitBlocking(ctx context.Context, event *models.AuditEvent) error {
	for {
		s.mu.Lock()
		if !s.started || s.stopped {
			s.mu.Unlock()
			return services.ErrNotStarted
		}
		select {
		case s.eventChan <- event:
			s.mu.Unlock()
			return nil
		default:
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.ctx.Done():
			return services.ErrNotStarted
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (s *Service) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("ingest worker started", zap.Int("worker_id", id))

	for event := range s.eventChan {
		s.process(id, event)
	}

	s.logger.Debug("ingest worker stopped", zap.Int("worker_id", id))
}

func (s *Service) process(workerID int, event *models.AuditEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	s.processed.Add(1)
	outcome, err := s.recorder.RecordIncident(ctx, event)
	if err != nil {
		s.failed.Add(1)
		s.metrics.RecordIngest(observability.OutcomeFailed)
		s.logger.Error("failed to record incident",
			zap.Int("worker_id", workerID),
			zap.Error(err),
			zap.String("event_name", event.EventName),
			zap.String("event_id", event.EventID))
		return
	}

	if outcome.Recorded() {
		s.recorded.Add(1)
		s.metrics.RecordIngest(observability.OutcomeRecorded)
		s.metrics.RecordIncident(outcome.Severity)
		return
	}
	s.skipped.Add(1)
	s.metrics.RecordIngest(observability.OutcomeSkipped)
}

// Stats returns statistics about the ingest service
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started && !s.stopped,
		Processed:     s.processed.Load(),
		Recorded:      s.recorded.Load(),
		Skipped:       s.skipped.Load(),
		Failed:        s.failed.Load(),
	}
}

// Stats represents ingest service statistics
type Stats struct {
	BufferSize    int
	PendingEvents int
	WorkerCount   int
	Started       bool
	Processed     int64
	Recorded      int64
	Skipped       int64
	Failed        int64
}
