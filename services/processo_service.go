package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/blogem/licitacoes/models"
	"github.com/blogem/licitacoes/repositories"
	"github.com/blogem/licitacoes/userctx"
)

// ProcessoService interface defines bidding process business logic
type ProcessoService interface {
	GetAll(ctx context.Context) ([]models.Processo, error)
	GetByID(ctx context.Context, id int64) (*models.Processo, error)
	Create(ctx context.Context, form *models.ProcessoForm) (*models.Processo, error)
	Update(ctx context.Context, id int64, form *models.ProcessoForm) (*models.Processo, error)
	Delete(ctx context.Context, id int64) error
}

// processoService implements ProcessoService interface
type processoService struct {
	repo   repositories.ProcessoRepository
	audit  AuditSink
	logger logrus.FieldLogger
}

// NewProcessoService creates a new process service. Every mutation is
// reported to audit once it has succeeded.
func NewProcessoService(repo repositories.ProcessoRepository, audit AuditSink, logger logrus.FieldLogger) ProcessoService {
	return &processoService{repo: repo, audit: audit, logger: logger}
}

// GetAll retrieves all processes
func (s *processoService) GetAll(ctx context.Context) ([]models.Processo, error) {
	return s.repo.GetAll(ctx)
}

// GetByID retrieves a process by ID
func (s *processoService) GetByID(ctx context.Context, id int64) (*models.Processo, error) {
	if id <= 0 {
		return nil, models.ValidationErrors{{Field: "id", Message: fmt.Sprintf("invalid process ID: %d", id)}}
	}
	return s.repo.GetByID(ctx, id)
}

// Create creates a new process with validation
func (s *processoService) Create(ctx context.Context, form *models.ProcessoForm) (*models.Processo, error) {
	normalizeProcessoForm(form)
	if errs := form.Validate(); errs.HasErrors() {
		return nil, errs
	}

	p := &models.Processo{}
	form.Apply(p)

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create process: %w", err)
	}

	s.report(ctx, models.OperationInsert, p.ID, nil, p.Snapshot())
	return p, nil
}

// Update updates an existing process
func (s *processoService) Update(ctx context.Context, id int64, form *models.ProcessoForm) (*models.Processo, error) {
	normalizeProcessoForm(form)
	if errs := form.Validate(); errs.HasErrors() {
		return nil, errs
	}

	p, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	before := p.Snapshot()

	form.Apply(p)
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update process: %w", err)
	}

	s.report(ctx, models.OperationUpdate, p.ID, before, p.Snapshot())
	return p, nil
}

// Delete deletes a process
func (s *processoService) Delete(ctx context.Context, id int64) error {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete process: %w", err)
	}

	s.report(ctx, models.OperationDelete, id, p.Snapshot(), nil)
	return nil
}

func (s *processoService) report(ctx context.Context, op models.Operation, id int64, before, after *models.Snapshot) {
	event := userctx.NewEvent(ctx, models.TableProcessos, op, &id, before, after)
	if err := s.audit.Enqueue(event); err != nil {
		s.logger.WithError(err).WithField("processo_id", id).Warn("audit event not queued")
	}
}

func normalizeProcessoForm(form *models.ProcessoForm) {
	form.NumeroProcesso = strings.TrimSpace(form.NumeroProcesso)
	form.Objeto = strings.TrimSpace(form.Objeto)
	form.DataAbertura = strings.TrimSpace(form.DataAbertura)
}
