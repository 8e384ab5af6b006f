package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// dsnOptions enables foreign keys, WAL (readers never block the single
// writer) and a busy timeout so concurrent writers queue instead of failing
const dsnOptions = "_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"

// OpenDB opens the SQLite database at path and verifies the connection
func OpenDB(path string) (*sql.DB, error) {
	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&" + dsnOptions
	} else {
		dsn += "?" + dsnOptions
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}

// InitializeDatabase opens the database connection and runs migrations
func InitializeDatabase(path string, logger logrus.FieldLogger) (*sql.DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.WithField("path", path).Info("database initialized")
	return db, nil
}
