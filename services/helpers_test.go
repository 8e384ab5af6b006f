package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blogem/licitacoes/database"
	"github.com/blogem/licitacoes/logging"
	"github.com/blogem/licitacoes/models"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.InitializeDatabase(filepath.Join(t.TempDir(), "test.db"), logging.Discard())
	require.NoError(t, err, "Failed to initialize test database")

	t.Cleanup(func() { db.Close() })
	return db
}

func int64Ptr(n int64) *int64 { return &n }

// fakeSink collects queued events
type fakeSink struct {
	mu     sync.Mutex
	events []models.AuditEvent
	err    error
}

func (f *fakeSink) Enqueue(event models.AuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeSink) Events() []models.AuditEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.AuditEvent(nil), f.events...)
}

// fakeRecorder records events, optionally blocking until released
type fakeRecorder struct {
	mu      sync.Mutex
	events  []models.AuditEvent
	started chan struct{}
	release chan struct{}
	err     error
}

func (f *fakeRecorder) Record(ctx context.Context, event models.AuditEvent) (*models.AuditLogEntry, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.events = append(f.events, event)
	return &models.AuditLogEntry{ID: int64(len(f.events)), Table: event.Table, Operation: event.Operation}, nil
}

func (f *fakeRecorder) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}
