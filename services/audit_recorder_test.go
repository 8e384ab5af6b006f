package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/blogem/licitacoes/logging"
	"github.com/blogem/licitacoes/metrics"
	"github.com/blogem/licitacoes/models"
	"github.com/blogem/licitacoes/repositories/mocks"
)

func insertEvent(id int64) models.AuditEvent {
	return models.AuditEvent{
		Table:     models.TableProcessos,
		Operation: models.OperationInsert,
		RecordID:  int64Ptr(id),
		After:     models.NewSnapshot().Set("id", models.Int(id)),
	}
}

func TestAuditRecorder_Record(t *testing.T) {
	repo := mocks.NewMockAuditRepository(t)
	m := metrics.New()
	recorder := NewAuditRecorder(repo, m, logging.Discard())

	event := insertEvent(1)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(e *models.AuditEvent) bool {
		return e.Table == models.TableProcessos && *e.RecordID == 1
	})).Return(&models.AuditLogEntry{ID: 7, Table: models.TableProcessos, Operation: models.OperationInsert}, nil).Once()

	entry, err := recorder.Record(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, int64(7), entry.ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditRecordedTotal.WithLabelValues("processos", "INSERT")))
}

func TestAuditRecorder_RejectsMalformedEvents(t *testing.T) {
	repo := mocks.NewMockAuditRepository(t)
	recorder := NewAuditRecorder(repo, nil, logging.Discard())

	event := insertEvent(1)
	event.Before = models.NewSnapshot()

	_, err := recorder.Record(context.Background(), event)
	var verrs models.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuditRecorder_PersistenceFailureIsReported(t *testing.T) {
	repo := mocks.NewMockAuditRepository(t)
	m := metrics.New()
	recorder := NewAuditRecorder(repo, m, logging.Discard())

	repo.On("Create", mock.Anything, mock.Anything).
		Return(nil, &models.PersistenceError{Op: "insert", Err: errors.New("disk full")}).Once()

	_, err := recorder.Record(context.Background(), insertEvent(1))
	var pe *models.PersistenceError
	assert.ErrorAs(t, err, &pe)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditFailuresTotal.WithLabelValues("processos", "INSERT")))
}

func TestAsyncRecorder_WritesQueuedEvents(t *testing.T) {
	fake := &fakeRecorder{}
	async := NewAsyncRecorder(fake, 16, 2, time.Second, nil, logging.Discard())

	for i := int64(1); i <= 10; i++ {
		require.NoError(t, async.Enqueue(insertEvent(i)))
	}

	require.NoError(t, async.Close(context.Background()))
	assert.Equal(t, 10, fake.Count())
	assert.ErrorIs(t, async.Enqueue(insertEvent(11)), ErrRecorderClosed)
	assert.NoError(t, async.Close(context.Background()), "closing twice is harmless")
}

func TestAsyncRecorder_DropsWhenFull(t *testing.T) {
	fake := &fakeRecorder{
		started: make(chan struct{}, 10),
		release: make(chan struct{}),
	}
	m := metrics.New()
	async := NewAsyncRecorder(fake, 1, 1, time.Second, m, logging.Discard())

	// The single worker takes the first event and blocks in Record.
	require.NoError(t, async.Enqueue(insertEvent(1)))
	<-fake.started

	// The second fills the queue; the third has nowhere to go.
	require.NoError(t, async.Enqueue(insertEvent(2)))
	assert.ErrorIs(t, async.Enqueue(insertEvent(3)), ErrQueueFull)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditDroppedTotal))

	close(fake.release)
	require.NoError(t, async.Close(context.Background()))
	assert.Equal(t, 2, fake.Count())
}

func TestAsyncRecorder_InvalidEventIsNotQueued(t *testing.T) {
	fake := &fakeRecorder{}
	async := NewAsyncRecorder(fake, 4, 1, time.Second, nil, logging.Discard())
	defer async.Close(context.Background())

	err := async.Enqueue(models.AuditEvent{Table: "contratos", Operation: models.OperationInsert, After: models.NewSnapshot()})
	var verrs models.ValidationErrors
	assert.ErrorAs(t, err, &verrs)
}

func TestAsyncRecorder_RecordFailureDoesNotStopWorkers(t *testing.T) {
	fake := &fakeRecorder{err: errors.New("database is locked")}
	async := NewAsyncRecorder(fake, 4, 1, time.Second, nil, logging.Discard())

	require.NoError(t, async.Enqueue(insertEvent(1)))
	require.NoError(t, async.Enqueue(insertEvent(2)))
	assert.NoError(t, async.Close(context.Background()))
}
