package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/blogem/licitacoes/metrics"
	"github.com/blogem/licitacoes/repositories"
)

// RetentionResult reports one sweep
type RetentionResult struct {
	Cutoff  time.Time `json:"cutoff"`
	Deleted int64     `json:"deleted"`
}

// RetentionService purges audit entries older than the retention period
type RetentionService interface {
	Sweep(ctx context.Context) (*RetentionResult, error)
	Start(schedule string) error
	Stop() context.Context
}

type retentionService struct {
	auditRepo repositories.AuditRepository
	days      int
	timeout   time.Duration
	now       func() time.Time
	metrics   *metrics.Metrics
	logger    logrus.FieldLogger

	// sweeps never overlap, so a slow one cannot race the next tick
	mu   sync.Mutex
	cron *cron.Cron
}

// NewRetentionService creates a sweeper keeping days worth of entries
func NewRetentionService(auditRepo repositories.AuditRepository, days int, m *metrics.Metrics, logger logrus.FieldLogger) RetentionService {
	return &retentionService{
		auditRepo: auditRepo,
		days:      days,
		timeout:   5 * time.Minute,
		now:       time.Now,
		metrics:   m,
		logger:    logger,
	}
}

// Sweep deletes every entry created before now minus the retention period.
// Running it again right away deletes nothing more.
func (s *retentionService) Sweep(ctx context.Context) (*RetentionResult, error) {
	if s.days <= 0 {
		return nil, fmt.Errorf("retention period must be positive, got %d days", s.days)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().UTC().AddDate(0, 0, -s.days)
	deleted, err := s.auditRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("retention sweep failed: %w", err)
	}

	if s.metrics != nil {
		s.metrics.AuditRetentionDeleted.Add(float64(deleted))
	}
	s.logger.WithFields(logrus.Fields{
		"cutoff":  cutoff.Format(time.RFC3339),
		"deleted": deleted,
	}).Info("audit retention sweep completed")

	return &RetentionResult{Cutoff: cutoff, Deleted: deleted}, nil
}

// Start schedules the sweep with a standard five-field cron expression
func (s *retentionService) Start(schedule string) error {
	c := cron.New()

	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if _, err := s.Sweep(ctx); err != nil {
			s.logger.WithError(err).Error("scheduled retention sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}

	c.Start()
	s.cron = c
	s.logger.WithFields(logrus.Fields{
		"schedule": schedule,
		"days":     s.days,
	}).Info("audit retention scheduled")
	return nil
}

// Stop halts the scheduler. The returned context is done once a running
// sweep has finished.
func (s *retentionService) Stop() context.Context {
	if s.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return s.cron.Stop()
}
