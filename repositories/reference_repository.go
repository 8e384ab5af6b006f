package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/blogem/licitacoes/models"
)

// ReferenceRepository handles the lookup tables (situações, modalidades,
// responsáveis, unidades gestoras)
type ReferenceRepository interface {
	LoadSet(ctx context.Context) (*models.ReferenceSet, error)
	List(ctx context.Context, kind models.ReferenceKind) ([]models.ReferenceItem, error)
	GetByID(ctx context.Context, kind models.ReferenceKind, id int64) (*models.ReferenceItem, error)
	Create(ctx context.Context, kind models.ReferenceKind, item *models.ReferenceItem) error
	Update(ctx context.Context, kind models.ReferenceKind, item *models.ReferenceItem) error
	Delete(ctx context.Context, kind models.ReferenceKind, id int64) error
}

type referenceRepository struct {
	db *sql.DB
}

// NewReferenceRepository creates a new reference repository
func NewReferenceRepository(db *sql.DB) ReferenceRepository {
	return &referenceRepository{db: db}
}

// table returns the SQL table for kind. Table names come from a fixed
// mapping, never from request input.
func table(kind models.ReferenceKind) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("unknown reference kind %q", kind)
	}
	return string(kind.Table()), nil
}

// LoadSet reads every lookup table into one point-in-time set
func (r *referenceRepository) LoadSet(ctx context.Context) (*models.ReferenceSet, error) {
	set := models.NewReferenceSet()
	for _, kind := range models.ReferenceKinds {
		items, err := r.List(ctx, kind)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			set.Add(kind, item.ID, item.Name)
		}
	}
	return set, nil
}

// List retrieves all rows of a lookup table
func (r *referenceRepository) List(ctx context.Context, kind models.ReferenceKind) ([]models.ReferenceItem, error) {
	t, err := table(kind)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id, nome, updated_at FROM `+t+` ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", t, err)
	}
	defer rows.Close()

	items := []models.ReferenceItem{}
	for rows.Next() {
		item, err := scanReference(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", t, err)
		}
		items = append(items, *item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", t, err)
	}

	return items, nil
}

// GetByID retrieves one row of a lookup table
func (r *referenceRepository) GetByID(ctx context.Context, kind models.ReferenceKind, id int64) (*models.ReferenceItem, error) {
	t, err := table(kind)
	if err != nil {
		return nil, err
	}

	item, err := scanReference(r.db.QueryRowContext(ctx, `SELECT id, nome, updated_at FROM `+t+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s with ID %d: %w", kind, id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", kind, err)
	}
	return item, nil
}

// Create inserts a new row and sets its ID
func (r *referenceRepository) Create(ctx context.Context, kind models.ReferenceKind, item *models.ReferenceItem) error {
	t, err := table(kind)
	if err != nil {
		return err
	}

	item.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO `+t+` (nome, updated_at) VALUES (?, ?)`,
		item.Name, models.FormatTimestamp(item.UpdatedAt))
	if err != nil {
		return execError(err, fmt.Sprintf("failed to create %s", kind))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	item.ID = id
	return nil
}

// Update renames an existing row
func (r *referenceRepository) Update(ctx context.Context, kind models.ReferenceKind, item *models.ReferenceItem) error {
	t, err := table(kind)
	if err != nil {
		return err
	}

	item.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE `+t+` SET nome = ?, updated_at = ? WHERE id = ?`,
		item.Name, models.FormatTimestamp(item.UpdatedAt), item.ID)
	if err != nil {
		return execError(err, fmt.Sprintf("failed to update %s", kind))
	}
	return checkAffected(result, fmt.Sprintf("%s with ID %d", kind, item.ID))
}

// Delete removes a row. Rows still referenced by a process are rejected by
// the foreign key constraint.
func (r *referenceRepository) Delete(ctx context.Context, kind models.ReferenceKind, id int64) error {
	t, err := table(kind)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM `+t+` WHERE id = ?`, id)
	if err != nil {
		return execError(err, fmt.Sprintf("failed to delete %s", kind))
	}
	return checkAffected(result, fmt.Sprintf("%s with ID %d", kind, id))
}

func scanReference(row rowScanner) (*models.ReferenceItem, error) {
	var item models.ReferenceItem
	var updatedAt string
	if err := row.Scan(&item.ID, &item.Name, &updatedAt); err != nil {
		return nil, err
	}
	ts, err := models.ParseTimestamp(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid updated_at %q: %w", updatedAt, err)
	}
	item.UpdatedAt = ts
	return &item, nil
}

// checkAffected turns a zero-row result into ErrNotFound
func checkAffected(result sql.Result, what string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	return nil
}

// execError wraps a failed statement. Constraint violations (duplicate
// numbers, rows still referenced) are marked with models.ErrConflict.
func execError(err error, msg string) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%s: %w: %w", msg, models.ErrConflict, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
