package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/blogem/licitacoes/metrics"
	"github.com/blogem/licitacoes/models"
	"github.com/blogem/licitacoes/repositories"
)

var (
	// ErrQueueFull is returned when an event is dropped because the write queue is full
	ErrQueueFull = errors.New("audit queue is full")
	// ErrRecorderClosed is returned for events submitted after shutdown began
	ErrRecorderClosed = errors.New("audit recorder is closed")
)

// AuditRecorder appends one immutable entry per mutation event
type AuditRecorder interface {
	Record(ctx context.Context, event models.AuditEvent) (*models.AuditLogEntry, error)
}

// AuditSink accepts mutation events without blocking the caller. Business
// services report through it; a returned error never affects their outcome.
type AuditSink interface {
	Enqueue(event models.AuditEvent) error
}

type auditRecorder struct {
	repo    repositories.AuditRepository
	metrics *metrics.Metrics
	logger  logrus.FieldLogger
}

// NewAuditRecorder creates the synchronous recorder
func NewAuditRecorder(repo repositories.AuditRepository, m *metrics.Metrics, logger logrus.FieldLogger) AuditRecorder {
	return &auditRecorder{repo: repo, metrics: m, logger: logger}
}

// Record validates the event and inserts it as a single row
func (r *auditRecorder) Record(ctx context.Context, event models.AuditEvent) (*models.AuditLogEntry, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}

	entry, err := r.repo.Create(ctx, &event)
	if err != nil {
		if r.metrics != nil {
			r.metrics.AuditFailuresTotal.WithLabelValues(string(event.Table), string(event.Operation)).Inc()
		}
		return nil, err
	}

	if r.metrics != nil {
		r.metrics.AuditRecordedTotal.WithLabelValues(string(event.Table), string(event.Operation)).Inc()
	}
	r.logger.WithFields(logrus.Fields{
		"audit_id":  entry.ID,
		"table":     entry.Table,
		"operation": entry.Operation,
	}).Debug("audit entry recorded")

	return entry, nil
}

// AsyncRecorder puts a bounded queue and a fixed set of workers in front of
// an AuditRecorder. When the queue is full new events are dropped and logged.
type AsyncRecorder struct {
	recorder AuditRecorder
	queue    chan models.AuditEvent
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsyncRecorder starts workers draining a queue of queueSize events.
// Each write gets its own timeout, detached from the request that produced it.
func NewAsyncRecorder(recorder AuditRecorder, queueSize, workers int, timeout time.Duration, m *metrics.Metrics, logger logrus.FieldLogger) *AsyncRecorder {
	if queueSize < 1 {
		queueSize = 1
	}
	if workers < 1 {
		workers = 1
	}

	a := &AsyncRecorder{
		recorder: recorder,
		queue:    make(chan models.AuditEvent, queueSize),
		timeout:  timeout,
		metrics:  m,
		logger:   logger,
	}

	for i := 0; i < workers; i++ {
		a.wg.Add(1)
		go a.worker()
	}
	return a
}

// Enqueue validates the event and queues it. Invalid events, a full queue
// and a closed recorder are reported as errors; none of them block.
func (a *AsyncRecorder) Enqueue(event models.AuditEvent) error {
	if err := event.Validate(); err != nil {
		a.logger.WithError(err).WithField("table", event.Table).Warn("invalid audit event rejected")
		return err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return ErrRecorderClosed
	}

	select {
	case a.queue <- event:
		a.setDepth()
		return nil
	default:
		if a.metrics != nil {
			a.metrics.AuditDroppedTotal.Inc()
		}
		a.logger.WithFields(logrus.Fields{
			"table":      event.Table,
			"operation":  event.Operation,
			"record_id":  event.RecordID,
			"actor_id":   event.Actor.ID,
			"request_id": event.RequestID,
		}).Error("audit queue full, event dropped")
		return ErrQueueFull
	}
}

func (a *AsyncRecorder) worker() {
	defer a.wg.Done()

	for event := range a.queue {
		a.setDepth()
		a.write(event)
	}
}

func (a *AsyncRecorder) write(event models.AuditEvent) {
	ctx := context.Background()
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	if _, err := a.recorder.Record(ctx, event); err != nil {
		a.logger.WithError(err).WithFields(logrus.Fields{
			"table":      event.Table,
			"operation":  event.Operation,
			"request_id": event.RequestID,
		}).Error("failed to record audit entry")
	}
}

func (a *AsyncRecorder) setDepth() {
	if a.metrics != nil {
		a.metrics.AuditQueueDepth.Set(float64(len(a.queue)))
	}
}

// Close stops accepting events and waits for queued ones to be written,
// or for ctx to end. It is safe to call more than once.
func (a *AsyncRecorder) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		a.logger.WithField("pending", len(a.queue)).Warn("audit queue not drained before shutdown")
		return ctx.Err()
	}
}
