package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogem/licitacoes/changeset"
	"github.com/blogem/licitacoes/logging"
	"github.com/blogem/licitacoes/models"
	"github.com/blogem/licitacoes/repositories"
)

func newIntegrationServices(t *testing.T, maxRows int) (*repositories.Repositories, AuditRecorder, AuditService) {
	t.Helper()
	db := setupTestDB(t)
	repos := repositories.NewRepositories(db)
	recorder := NewAuditRecorder(repos.Audit, nil, logging.Discard())
	audit := NewAuditService(repos.Audit, repos.Reference, changeset.NewDiffer(nil),
		AuditServiceConfig{ExportMaxRows: maxRows}, nil, logging.Discard())
	return repos, recorder, audit
}

func TestStatusChangeRendersAsSituationName(t *testing.T) {
	_, recorder, audit := newIntegrationServices(t, 1000)
	ctx := context.Background()

	entry, err := recorder.Record(ctx, models.AuditEvent{
		Actor:     models.Actor{ID: "auth0|1", DisplayName: "Ana"},
		Table:     models.TableProcessos,
		Operation: models.OperationUpdate,
		RecordID:  int64Ptr(42),
		Before:    models.NewSnapshot().Set("situacao_id", models.Int(3)).Set("valor_estimado", models.Int(1000)),
		After:     models.NewSnapshot().Set("situacao_id", models.Int(5)).Set("valor_estimado", models.Int(1000)),
	})
	require.NoError(t, err)

	view, err := audit.Get(ctx, entry.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{"situacao_nome"}, view.Diff.Changed)
	assert.False(t, view.Diff.IsChanged("valor_estimado"))
	assert.Equal(t, "situacao_nome: Em andamento -> Homologado", view.Diff.Summary())
}

func TestRenamedReferenceRendersCurrentLabel(t *testing.T) {
	repos, recorder, audit := newIntegrationServices(t, 1000)
	ctx := context.Background()

	entry, err := recorder.Record(ctx, models.AuditEvent{
		Table:     models.TableProcessos,
		Operation: models.OperationUpdate,
		RecordID:  int64Ptr(1),
		Before:    models.NewSnapshot().Set("modalidade_id", models.Int(1)),
		After:     models.NewSnapshot().Set("modalidade_id", models.Int(2)),
	})
	require.NoError(t, err)

	require.NoError(t, repos.Reference.Update(ctx, models.ReferenceModality, &models.ReferenceItem{ID: 1, Name: "Pregão"}))

	view, err := audit.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "modalidade_nome: Pregão -> Pregão Presencial", view.Diff.Summary())
}

func TestExportFiltersDeletedUsers(t *testing.T) {
	repos, _, audit := newIntegrationServices(t, 1000)
	ctx := context.Background()

	tables := []models.AffectedTable{models.TableProcessos, models.TableSituacoes, models.TableUsers}
	ops := []models.Operation{models.OperationInsert, models.OperationUpdate}
	snapshot := func(i int) *models.Snapshot {
		return models.NewSnapshot().Set("id", models.Int(int64(i))).Set("nome", models.String(fmt.Sprintf("row %d", i)))
	}

	deletes := 0
	for i := 0; i < 1000; i++ {
		event := models.AuditEvent{
			Actor:    models.Actor{ID: fmt.Sprintf("u%d", i%5)},
			Table:    tables[i%len(tables)],
			RecordID: int64Ptr(int64(i)),
		}
		switch {
		case i%143 == 0 && deletes < 7:
			event.Table = models.TableUsers
			event.Operation = models.OperationDelete
			event.Before = snapshot(i)
			deletes++
		case i%2 == 0:
			// deletes on other tables must not match
			event.Table = models.TableProcessos
			event.Operation = models.OperationDelete
			event.Before = snapshot(i)
		default:
			event.Operation = ops[i%len(ops)]
			if event.Operation == models.OperationUpdate {
				event.Before = snapshot(i)
			}
			event.After = snapshot(i + 1)
		}
		_, err := repos.Audit.Create(ctx, &event)
		require.NoError(t, err)
	}
	require.Equal(t, 7, deletes)

	var buf bytes.Buffer
	rows, err := audit.Export(ctx, models.AuditFilter{Operation: models.OperationDelete, Table: models.TableUsers}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 7, rows)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 8)
	assert.Equal(t, ExportColumns, records[0])
	for _, r := range records[1:] {
		assert.Equal(t, "users", r[4])
		assert.Equal(t, "DELETE", r[5])
	}

	var limited bytes.Buffer
	small := NewAuditService(repos.Audit, repos.Reference, nil, AuditServiceConfig{ExportMaxRows: 6}, nil, logging.Discard())
	_, err = small.Export(ctx, models.AuditFilter{Operation: models.OperationDelete, Table: models.TableUsers}, &limited)
	var limitErr *models.ExportLimitError
	assert.ErrorAs(t, err, &limitErr)
	assert.Zero(t, limited.Len())
}

func TestListDateRangeIsInclusive(t *testing.T) {
	db := setupTestDB(t)
	repos := repositories.NewRepositories(db)
	audit := NewAuditService(repos.Audit, repos.Reference, nil, AuditServiceConfig{}, nil, logging.Discard())
	ctx := context.Background()

	stamps := []string{
		"2024-03-09T23:59:59.999999999Z",
		"2024-03-10T00:00:00.000000000Z",
		"2024-03-12T12:00:00.000000000Z",
		"2024-03-15T23:59:59.999999999Z",
		"2024-03-16T00:00:00.000000000Z",
	}
	for _, ts := range stamps {
		_, err := db.Exec(`INSERT INTO audit_logs (created_at, affected_table, operation, after_data) VALUES (?, 'processos', 'INSERT', '{}')`, ts)
		require.NoError(t, err)
	}

	start, err := models.ParseDateBound("2024-03-10", false)
	require.NoError(t, err)
	end, err := models.ParseDateBound("2024-03-15", true)
	require.NoError(t, err)

	page, err := audit.List(ctx, models.AuditFilter{Start: &start, End: &end}, models.NewPage(1, 50))
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	for _, e := range page.Entries {
		assert.False(t, e.Timestamp.Before(start))
		assert.False(t, e.Timestamp.After(end))
	}

	exact := time.Date(2024, 3, 12, 12, 0, 0, 0, time.UTC)
	page, err = audit.List(ctx, models.AuditFilter{Start: &exact, End: &exact}, models.NewPage(1, 50))
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}

func TestRetentionSweepIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repos := repositories.NewRepositories(db)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO audit_logs (created_at, affected_table, operation, after_data) VALUES
		('2020-01-01T00:00:00.000000000Z', 'processos', 'INSERT', '{}'),
		('2020-06-01T00:00:00.000000000Z', 'users', 'INSERT', '{}')`)
	require.NoError(t, err)
	_, err = repos.Audit.Create(ctx, &models.AuditEvent{
		Table: models.TableProcessos, Operation: models.OperationInsert, After: models.NewSnapshot(),
	})
	require.NoError(t, err)

	retention := NewRetentionService(repos.Audit, 30, nil, logging.Discard())

	first, err := retention.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), first.Deleted)

	countAfterFirst, err := repos.Audit.Count(ctx, models.AuditFilter{})
	require.NoError(t, err)

	second, err := retention.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.Deleted)

	countAfterSecond, err := repos.Audit.Count(ctx, models.AuditFilter{})
	require.NoError(t, err)
	assert.Equal(t, countAfterFirst, countAfterSecond)
	assert.Equal(t, int64(1), countAfterSecond)
}

func TestRetentionSchedule(t *testing.T) {
	retention := NewRetentionService(nil, 30, nil, logging.Discard())

	assert.Error(t, retention.Start("not a schedule"))
	require.NoError(t, retention.Start("0 3 * * *"))
	<-retention.Stop().Done()
}
