package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations applies all pending embedded migrations
func RunMigrations(db *sql.DB, logger logrus.FieldLogger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// The migrator is not closed: closing it would close the shared *sql.DB.
	migrator, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to initialize migrator: %w", err)
	}
	migrator.Log = &migrateLogger{logger: logger}

	current, dirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in a dirty state at version %d", current)
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("migrations already up to date")
			return nil
		}
		return fmt.Errorf("migration up failed: %w", err)
	}

	version, _, _ := migrator.Version()
	logger.WithFields(logrus.Fields{
		"from_version": current,
		"to_version":   version,
	}).Info("migrations applied")

	return nil
}

// migrateLogger adapts golang-migrate's logger interface to logrus
type migrateLogger struct {
	logger logrus.FieldLogger
}

func (l *migrateLogger) Printf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}
