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

// ReferenceService manages the lookup tables foreign keys point at
type ReferenceService interface {
	List(ctx context.Context, kind models.ReferenceKind) ([]models.ReferenceItem, error)
	Create(ctx context.Context, kind models.ReferenceKind, form *models.ReferenceForm) (*models.ReferenceItem, error)
	Rename(ctx context.Context, kind models.ReferenceKind, id int64, form *models.ReferenceForm) (*models.ReferenceItem, error)
	Delete(ctx context.Context, kind models.ReferenceKind, id int64) error
}

type referenceService struct {
	repo   repositories.ReferenceRepository
	audit  AuditSink
	logger logrus.FieldLogger
}

// NewReferenceService creates a new reference service
func NewReferenceService(repo repositories.ReferenceRepository, audit AuditSink, logger logrus.FieldLogger) ReferenceService {
	return &referenceService{repo: repo, audit: audit, logger: logger}
}

func (s *referenceService) List(ctx context.Context, kind models.ReferenceKind) ([]models.ReferenceItem, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, kind)
}

func (s *referenceService) Create(ctx context.Context, kind models.ReferenceKind, form *models.ReferenceForm) (*models.ReferenceItem, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	form.Name = strings.TrimSpace(form.Name)
	if errs := form.Validate(); errs.HasErrors() {
		return nil, errs
	}

	item := &models.ReferenceItem{Name: form.Name}
	if err := s.repo.Create(ctx, kind, item); err != nil {
		return nil, err
	}

	s.report(ctx, kind, models.OperationInsert, item.ID, nil, item.Snapshot())
	return item, nil
}

// Rename changes the label. Audit entries that point at the row render the
// new label from then on.
func (s *referenceService) Rename(ctx context.Context, kind models.ReferenceKind, id int64, form *models.ReferenceForm) (*models.ReferenceItem, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	form.Name = strings.TrimSpace(form.Name)
	if errs := form.Validate(); errs.HasErrors() {
		return nil, errs
	}

	item, err := s.repo.GetByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	before := item.Snapshot()

	item.Name = form.Name
	if err := s.repo.Update(ctx, kind, item); err != nil {
		return nil, err
	}

	s.report(ctx, kind, models.OperationUpdate, id, before, item.Snapshot())
	return item, nil
}

func (s *referenceService) Delete(ctx context.Context, kind models.ReferenceKind, id int64) error {
	if err := validKind(kind); err != nil {
		return err
	}

	item, err := s.repo.GetByID(ctx, kind, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, kind, id); err != nil {
		return err
	}

	s.report(ctx, kind, models.OperationDelete, id, item.Snapshot(), nil)
	return nil
}

func (s *referenceService) report(ctx context.Context, kind models.ReferenceKind, op models.Operation, id int64, before, after *models.Snapshot) {
	event := userctx.NewEvent(ctx, kind.Table(), op, &id, before, after)
	if err := s.audit.Enqueue(event); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"kind": kind,
			"id":   id,
		}).Warn("audit event not queued")
	}
}

func validKind(kind models.ReferenceKind) error {
	if !kind.Valid() {
		return models.ValidationErrors{{Field: "kind", Message: fmt.Sprintf("unknown reference kind %q", kind)}}
	}
	return nil
}
