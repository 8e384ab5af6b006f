// Package mocks holds testify mocks of the repository interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/blogem/licitacoes/models"
)

// newMock registers expectation checks on test cleanup
func newMock(m *mock.Mock, t interface {
	mock.TestingT
	Cleanup(func())
}) {
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
}

// MockAuditRepository mocks repositories.AuditRepository
type MockAuditRepository struct {
	mock.Mock
}

// NewMockAuditRepository creates a mock that asserts its expectations on cleanup
func NewMockAuditRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockAuditRepository {
	m := &MockAuditRepository{}
	newMock(&m.Mock, t)
	return m
}

func (m *MockAuditRepository) Create(ctx context.Context, event *models.AuditEvent) (*models.AuditLogEntry, error) {
	args := m.Called(ctx, event)
	entry, _ := args.Get(0).(*models.AuditLogEntry)
	return entry, args.Error(1)
}

func (m *MockAuditRepository) GetByID(ctx context.Context, id int64) (*models.AuditLogEntry, error) {
	args := m.Called(ctx, id)
	entry, _ := args.Get(0).(*models.AuditLogEntry)
	return entry, args.Error(1)
}

func (m *MockAuditRepository) List(ctx context.Context, filter models.AuditFilter, page models.Page) ([]models.AuditLogEntry, error) {
	args := m.Called(ctx, filter, page)
	entries, _ := args.Get(0).([]models.AuditLogEntry)
	return entries, args.Error(1)
}

func (m *MockAuditRepository) Count(ctx context.Context, filter models.AuditFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAuditRepository) Stats(ctx context.Context, filter models.AuditFilter, topActors int) (*models.AuditStats, error) {
	args := m.Called(ctx, filter, topActors)
	stats, _ := args.Get(0).(*models.AuditStats)
	return stats, args.Error(1)
}

// Iterate feeds the entries given to Return to fn, in order
func (m *MockAuditRepository) Iterate(ctx context.Context, filter models.AuditFilter, fn func(*models.AuditLogEntry) error) error {
	args := m.Called(ctx, filter, fn)
	entries, _ := args.Get(0).([]models.AuditLogEntry)
	for i := range entries {
		if err := fn(&entries[i]); err != nil {
			return err
		}
	}
	return args.Error(1)
}

func (m *MockAuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockReferenceRepository mocks repositories.ReferenceRepository
type MockReferenceRepository struct {
	mock.Mock
}

// NewMockReferenceRepository creates a mock that asserts its expectations on cleanup
func NewMockReferenceRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockReferenceRepository {
	m := &MockReferenceRepository{}
	newMock(&m.Mock, t)
	return m
}

func (m *MockReferenceRepository) LoadSet(ctx context.Context) (*models.ReferenceSet, error) {
	args := m.Called(ctx)
	set, _ := args.Get(0).(*models.ReferenceSet)
	return set, args.Error(1)
}

func (m *MockReferenceRepository) List(ctx context.Context, kind models.ReferenceKind) ([]models.ReferenceItem, error) {
	args := m.Called(ctx, kind)
	items, _ := args.Get(0).([]models.ReferenceItem)
	return items, args.Error(1)
}

func (m *MockReferenceRepository) GetByID(ctx context.Context, kind models.ReferenceKind, id int64) (*models.ReferenceItem, error) {
	args := m.Called(ctx, kind, id)
	item, _ := args.Get(0).(*models.ReferenceItem)
	return item, args.Error(1)
}

func (m *MockReferenceRepository) Create(ctx context.Context, kind models.ReferenceKind, item *models.ReferenceItem) error {
	return m.Called(ctx, kind, item).Error(0)
}

func (m *MockReferenceRepository) Update(ctx context.Context, kind models.ReferenceKind, item *models.ReferenceItem) error {
	return m.Called(ctx, kind, item).Error(0)
}

func (m *MockReferenceRepository) Delete(ctx context.Context, kind models.ReferenceKind, id int64) error {
	return m.Called(ctx, kind, id).Error(0)
}

// MockProcessoRepository mocks repositories.ProcessoRepository
type MockProcessoRepository struct {
	mock.Mock
}

// NewMockProcessoRepository creates a mock that asserts its expectations on cleanup
func NewMockProcessoRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockProcessoRepository {
	m := &MockProcessoRepository{}
	newMock(&m.Mock, t)
	return m
}

func (m *MockProcessoRepository) GetAll(ctx context.Context) ([]models.Processo, error) {
	args := m.Called(ctx)
	ps, _ := args.Get(0).([]models.Processo)
	return ps, args.Error(1)
}

func (m *MockProcessoRepository) GetByID(ctx context.Context, id int64) (*models.Processo, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.Processo)
	return p, args.Error(1)
}

func (m *MockProcessoRepository) Create(ctx context.Context, p *models.Processo) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockProcessoRepository) Update(ctx context.Context, p *models.Processo) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockProcessoRepository) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockProcessoRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockUserRepository mocks repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

// NewMockUserRepository creates a mock that asserts its expectations on cleanup
func NewMockUserRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockUserRepository {
	m := &MockUserRepository{}
	newMock(&m.Mock, t)
	return m
}

func (m *MockUserRepository) GetBySubject(ctx context.Context, subject string) (*models.User, error) {
	args := m.Called(ctx, subject)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *MockUserRepository) Upsert(ctx context.Context, user *models.User) (*models.User, error) {
	args := m.Called(ctx, user)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}
