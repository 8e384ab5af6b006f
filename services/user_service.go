package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/blogem/licitacoes/models"
	"github.com/blogem/licitacoes/repositories"
	"github.com/blogem/licitacoes/userctx"
)

// UserService handles accounts created from identity provider logins
type UserService interface {
	Login(ctx context.Context, user *models.User) (*models.User, error)
}

type userService struct {
	repo   repositories.UserRepository
	audit  AuditSink
	logger logrus.FieldLogger
}

// NewUserService creates a new user service
func NewUserService(repo repositories.UserRepository, audit AuditSink, logger logrus.FieldLogger) UserService {
	return &userService{repo: repo, audit: audit, logger: logger}
}

// Login creates or refreshes the account and audits the change with the
// user as its own actor
func (s *userService) Login(ctx context.Context, user *models.User) (*models.User, error) {
	if user.Subject == "" {
		return nil, models.ValidationErrors{{Field: "subject", Message: "Subject is required"}}
	}

	before, err := s.repo.Upsert(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	ctx = userctx.SetActor(ctx, models.Actor{ID: user.Subject, Email: user.Email, DisplayName: user.DisplayName})

	id := user.ID
	event := userctx.NewEvent(ctx, models.TableUsers, models.OperationInsert, &id, nil, user.Snapshot())
	if before != nil {
		event = userctx.NewEvent(ctx, models.TableUsers, models.OperationUpdate, &id, before.Snapshot(), user.Snapshot())
	}
	if err := s.audit.Enqueue(event); err != nil {
		s.logger.WithError(err).WithField("subject", user.Subject).Warn("audit event not queued")
	}

	return user, nil
}
