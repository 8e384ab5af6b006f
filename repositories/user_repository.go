package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/blogem/licitacoes/models"
)

// UserRepository persists the accounts created on login
type UserRepository interface {
	GetBySubject(ctx context.Context, subject string) (*models.User, error)
	Upsert(ctx context.Context, user *models.User) (before *models.User, err error)
}

type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

// GetBySubject looks a user up by identity provider subject
func (r *userRepository) GetBySubject(ctx context.Context, subject string) (*models.User, error) {
	query := `
		SELECT id, subject, email, display_name, last_login_at, updated_at
		FROM users
		WHERE subject = ?
	`

	var u models.User
	var lastLogin, updatedAt string
	err := r.db.QueryRowContext(ctx, query, subject).Scan(
		&u.ID, &u.Subject, &u.Email, &u.DisplayName, &lastLogin, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", subject, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if u.LastLoginAt, err = models.ParseTimestamp(lastLogin); err != nil {
		return nil, fmt.Errorf("invalid last_login_at %q: %w", lastLogin, err)
	}
	if u.UpdatedAt, err = models.ParseTimestamp(updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at %q: %w", updatedAt, err)
	}
	return &u, nil
}

// Upsert creates the user or refreshes its profile and login time. It
// returns the row as it was before the write, or nil when it was created.
func (r *userRepository) Upsert(ctx context.Context, user *models.User) (*models.User, error) {
	before, err := r.GetBySubject(ctx, user.Subject)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	user.LastLoginAt = now
	user.UpdatedAt = now

	if before == nil {
		result, err := r.db.ExecContext(ctx,
			`INSERT INTO users (subject, email, display_name, last_login_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			user.Subject, user.Email, user.DisplayName,
			models.FormatTimestamp(now), models.FormatTimestamp(now))
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		if user.ID, err = result.LastInsertId(); err != nil {
			return nil, fmt.Errorf("failed to get last insert ID: %w", err)
		}
		return nil, nil
	}

	user.ID = before.ID
	_, err = r.db.ExecContext(ctx,
		`UPDATE users SET email = ?, display_name = ?, last_login_at = ?, updated_at = ? WHERE id = ?`,
		user.Email, user.DisplayName, models.FormatTimestamp(now), models.FormatTimestamp(now), user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return before, nil
}
