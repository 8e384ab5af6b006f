package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blogem/licitacoes/models"
)

// AuditRepository handles audit log persistence. Entries are append-only:
// there is no update, and deletion only happens through DeleteOlderThan.
type AuditRepository interface {
	Create(ctx context.Context, event *models.AuditEvent) (*models.AuditLogEntry, error)
	GetByID(ctx context.Context, id int64) (*models.AuditLogEntry, error)
	List(ctx context.Context, filter models.AuditFilter, page models.Page) ([]models.AuditLogEntry, error)
	Count(ctx context.Context, filter models.AuditFilter) (int64, error)
	Stats(ctx context.Context, filter models.AuditFilter, topActors int) (*models.AuditStats, error)
	Iterate(ctx context.Context, filter models.AuditFilter, fn func(*models.AuditLogEntry) error) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type sqliteAuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB) AuditRepository {
	return &sqliteAuditRepository{db: db}
}

const auditColumns = `
	id, created_at, actor_id, actor_email, actor_display_name,
	affected_table, operation, record_id, before_data, after_data,
	source_ip, user_agent, request_id`

// Create appends a new entry. The timestamp is assigned here and clamped to
// the newest existing one, so timestamps never decrease in id order even
// when the wall clock steps back.
func (r *sqliteAuditRepository) Create(ctx context.Context, event *models.AuditEvent) (*models.AuditLogEntry, error) {
	before, err := encodeSnapshot(event.Before)
	if err != nil {
		return nil, &models.PersistenceError{Op: "encode before", Err: err}
	}
	after, err := encodeSnapshot(event.After)
	if err != nil {
		return nil, &models.PersistenceError{Op: "encode after", Err: err}
	}

	query := `
		INSERT INTO audit_logs (
			created_at, actor_id, actor_email, actor_display_name,
			affected_table, operation, record_id, before_data, after_data,
			source_ip, user_agent, request_id
		) VALUES (
			MAX(?, COALESCE((SELECT MAX(created_at) FROM audit_logs), '')), ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?
		)
		RETURNING id, created_at
	`

	var id int64
	var createdAt string
	err = r.db.QueryRowContext(ctx, query,
		models.FormatTimestamp(time.Now()),
		nullString(event.Actor.ID),
		event.Actor.Email,
		event.Actor.DisplayName,
		string(event.Table),
		string(event.Operation),
		event.RecordID,
		before,
		after,
		event.SourceIP,
		event.UserAgent,
		event.RequestID,
	).Scan(&id, &createdAt)
	if err != nil {
		return nil, &models.PersistenceError{Op: "insert", Err: err}
	}

	ts, err := models.ParseTimestamp(createdAt)
	if err != nil {
		return nil, &models.PersistenceError{Op: "parse timestamp", Err: err}
	}

	return &models.AuditLogEntry{
		ID:        id,
		Timestamp: ts,
		Actor:     event.Actor,
		Table:     event.Table,
		Operation: event.Operation,
		RecordID:  event.RecordID,
		Before:    event.Before,
		After:     event.After,
		SourceIP:  event.SourceIP,
		UserAgent: event.UserAgent,
		RequestID: event.RequestID,
	}, nil
}

// GetByID retrieves one entry
func (r *sqliteAuditRepository) GetByID(ctx context.Context, id int64) (*models.AuditLogEntry, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE id = ?`

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("audit entry with ID %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit entry: %w", err)
	}
	return entry, nil
}

// List retrieves one page of entries, newest first
func (r *sqliteAuditRepository) List(ctx context.Context, filter models.AuditFilter, page models.Page) ([]models.AuditLogEntry, error) {
	where, args := buildAuditWhere(filter)
	query := `SELECT ` + auditColumns + ` FROM audit_logs ` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, page.Size, page.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]models.AuditLogEntry, 0, page.Size)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, *entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}

// Count returns the number of entries matching filter
func (r *sqliteAuditRepository) Count(ctx context.Context, filter models.AuditFilter) (int64, error) {
	where, args := buildAuditWhere(filter)

	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs `+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return count, nil
}

// Stats computes all aggregates over the same filtered window
func (r *sqliteAuditRepository) Stats(ctx context.Context, filter models.AuditFilter, topActors int) (*models.AuditStats, error) {
	where, args := buildAuditWhere(filter)

	stats := &models.AuditStats{
		ByOperation: make(map[models.Operation]int64),
		ByTable:     make(map[models.AffectedTable]int64),
		TopActors:   []models.ActorCount{},
		ByDay:       []models.DayCount{},
	}

	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs `+where, args...).Scan(&stats.Total)
	if err != nil {
		return nil, fmt.Errorf("failed to count audit entries: %w", err)
	}

	err = r.groupCount(ctx, `SELECT operation, COUNT(*) FROM audit_logs `+where+` GROUP BY operation`, args,
		func(key string, n int64) { stats.ByOperation[models.Operation(key)] = n })
	if err != nil {
		return nil, fmt.Errorf("failed to count by operation: %w", err)
	}

	err = r.groupCount(ctx, `SELECT affected_table, COUNT(*) FROM audit_logs `+where+` GROUP BY affected_table`, args,
		func(key string, n int64) { stats.ByTable[models.AffectedTable(key)] = n })
	if err != nil {
		return nil, fmt.Errorf("failed to count by table: %w", err)
	}

	err = r.groupCount(ctx, `SELECT substr(created_at, 1, 10) AS day, COUNT(*) FROM audit_logs `+where+` GROUP BY day ORDER BY day ASC`, args,
		func(key string, n int64) { stats.ByDay = append(stats.ByDay, models.DayCount{Day: key, Count: n}) })
	if err != nil {
		return nil, fmt.Errorf("failed to count by day: %w", err)
	}

	// With a single max() aggregate SQLite takes the bare columns from the
	// row holding the max, which gives the newest email and name per actor.
	actorWhere := where
	if actorWhere == "" {
		actorWhere = "WHERE actor_id IS NOT NULL"
	} else {
		actorWhere += " AND actor_id IS NOT NULL"
	}
	query := `
		SELECT actor_id, COUNT(*) AS total, actor_email, actor_display_name, MAX(id)
		FROM audit_logs ` + actorWhere + `
		GROUP BY actor_id
		ORDER BY total DESC, actor_id ASC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, append(append([]interface{}{}, args...), topActors)...)
	if err != nil {
		return nil, fmt.Errorf("failed to rank actors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ac models.ActorCount
		var lastID int64
		if err := rows.Scan(&ac.Actor.ID, &ac.Count, &ac.Actor.Email, &ac.Actor.DisplayName, &lastID); err != nil {
			return nil, fmt.Errorf("failed to scan actor ranking: %w", err)
		}
		stats.TopActors = append(stats.TopActors, ac)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating actor ranking: %w", err)
	}

	return stats, nil
}

func (r *sqliteAuditRepository) groupCount(ctx context.Context, query string, args []interface{}, add func(string, int64)) error {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		add(key, n)
	}
	return rows.Err()
}

// Iterate streams every matching entry, newest first, to fn without
// buffering the result set. It stops at the first error fn returns.
func (r *sqliteAuditRepository) Iterate(ctx context.Context, filter models.AuditFilter, fn func(*models.AuditLogEntry) error) error {
	where, args := buildAuditWhere(filter)
	query := `SELECT ` + auditColumns + ` FROM audit_logs ` + where + ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if err := fn(entry); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating audit entries: %w", err)
	}
	return nil
}

// DeleteOlderThan purges entries created strictly before cutoff
func (r *sqliteAuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < ?`, models.FormatTimestamp(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// buildAuditWhere renders the conjunctive filter as a WHERE clause
func buildAuditWhere(filter models.AuditFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if filter.ActorID != "" {
		conds = append(conds, "actor_id = ?")
		args = append(args, filter.ActorID)
	}
	if filter.Table != "" {
		conds = append(conds, "affected_table = ?")
		args = append(args, string(filter.Table))
	}
	if filter.Operation != "" {
		conds = append(conds, "operation = ?")
		args = append(args, string(filter.Operation))
	}
	if filter.RecordID != nil {
		conds = append(conds, "record_id = ?")
		args = append(args, *filter.RecordID)
	}
	if filter.Start != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, models.FormatTimestamp(*filter.Start))
	}
	if filter.End != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, models.FormatTimestamp(*filter.End))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*models.AuditLogEntry, error) {
	var entry models.AuditLogEntry
	var createdAt, table, operation string
	var actorID, before, after sql.NullString
	var recordID sql.NullInt64

	err := row.Scan(
		&entry.ID,
		&createdAt,
		&actorID,
		&entry.Actor.Email,
		&entry.Actor.DisplayName,
		&table,
		&operation,
		&recordID,
		&before,
		&after,
		&entry.SourceIP,
		&entry.UserAgent,
		&entry.RequestID,
	)
	if err != nil {
		return nil, err
	}

	entry.Timestamp, err = models.ParseTimestamp(createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp on entry %d: %w", entry.ID, err)
	}
	entry.Table = models.AffectedTable(table)
	entry.Operation = models.Operation(operation)

	// Convert NULL values
	if actorID.Valid {
		entry.Actor.ID = actorID.String
	}
	if recordID.Valid {
		id := recordID.Int64
		entry.RecordID = &id
	}
	if before.Valid {
		if entry.Before, err = models.ParseSnapshot([]byte(before.String)); err != nil {
			return nil, fmt.Errorf("invalid before snapshot on entry %d: %w", entry.ID, err)
		}
	}
	if after.Valid {
		if entry.After, err = models.ParseSnapshot([]byte(after.String)); err != nil {
			return nil, fmt.Errorf("invalid after snapshot on entry %d: %w", entry.ID, err)
		}
	}

	return &entry, nil
}

func encodeSnapshot(s *models.Snapshot) (sql.NullString, error) {
	if s == nil {
		return sql.NullString{}, nil
	}
	data, err := s.MarshalJSON()
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
