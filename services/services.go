package services

import (
	"github.com/sirupsen/logrus"

	"github.com/blogem/licitacoes/changeset"
	"github.com/blogem/licitacoes/config"
	"github.com/blogem/licitacoes/metrics"
	"github.com/blogem/licitacoes/repositories"
)

// Services holds all service instances
type Services struct {
	Audit     AuditService
	Recorder  *AsyncRecorder
	Retention RetentionService
	Processo  ProcessoService
	Reference ReferenceService
	User      UserService
	Dashboard DashboardService
}

// Options carries what the services need besides repositories
type Options struct {
	Audit   config.AuditConfig
	Rules   *changeset.Rules
	Metrics *metrics.Metrics
	Logger  logrus.FieldLogger
}

// NewServices creates and initializes all service instances. The returned
// recorder owns worker goroutines; close it on shutdown.
func NewServices(repos *repositories.Repositories, opts Options) *Services {
	logger := opts.Logger
	recorder := NewAsyncRecorder(
		NewAuditRecorder(repos.Audit, opts.Metrics, logger.WithField("component", "audit-recorder")),
		opts.Audit.QueueSize,
		opts.Audit.Workers,
		opts.Audit.WriteTimeout,
		opts.Metrics,
		logger.WithField("component", "audit-queue"),
	)

	audit := NewAuditService(
		repos.Audit,
		repos.Reference,
		changeset.NewDiffer(opts.Rules),
		AuditServiceConfig{
			ExportMaxRows: opts.Audit.ExportMaxRows,
			Location:      opts.Audit.Location(),
		},
		opts.Metrics,
		logger.WithField("component", "audit-query"),
	)

	return &Services{
		Audit:     audit,
		Recorder:  recorder,
		Retention: NewRetentionService(repos.Audit, opts.Audit.RetentionDays, opts.Metrics, logger.WithField("component", "audit-retention")),
		Processo:  NewProcessoService(repos.Processo, recorder, logger),
		Reference: NewReferenceService(repos.Reference, recorder, logger),
		User:      NewUserService(repos.User, recorder, logger),
		Dashboard: NewDashboardService(audit, repos.Processo),
	}
}
