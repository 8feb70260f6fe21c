// Package state persists the project record (image and container ids) in a
// SQLite database under the project directory.
package state

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"simplej/internal/constants"
	"simplej/internal/errors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the persisted project state of one project directory
type Store struct {
	db   *sqlx.DB
	path string
}

// Path returns the state database location for a project
func Path(projectDir string) string {
	return filepath.Join(projectDir, constants.StateDirName, constants.StateFileName)
}

// Exists reports whether the project already has a state database
func Exists(projectDir string) bool {
	_, err := os.Stat(Path(projectDir))
	return err == nil
}

// dsn builds the connection string. _txlock=immediate makes every transaction
// take the write lock up front, so concurrent commands serialize on
// load-mutate-save instead of overwriting each other.
func dsn(path string) string {
	return fmt.Sprintf("%s?_busy_timeout=%d&_txlock=immediate&_foreign_keys=on",
		path, constants.StateBusyTimeout.Milliseconds())
}

// Open opens (creating if needed) the state database of projectDir and
// applies pending migrations.
func Open(ctx context.Context, projectDir string) (*Store, error) {
	path := Path(projectDir)

	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return nil, errors.StateWriteError(fmt.Errorf("failed to create state directory: %w", err))
	}

	db, err := sqlx.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, errors.StateReadError(fmt.Errorf("failed to open database: %w", err))
	}

	// One connection keeps the immediate-lock discipline per process simple
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.StateReadError(fmt.Errorf("failed to ping database: %w", err))
	}

	s := &Store{db: db, path: path}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *Store) Migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return errors.StateMigrationError(fmt.Errorf("failed to create migration source: %w", err))
	}

	dbInstance, err := sqlite3.WithInstance(s.db.DB, &sqlite3.Config{})
	if err != nil {
		return errors.StateMigrationError(fmt.Errorf("failed to create sqlite3 driver instance: %w", err))
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbInstance)
	if err != nil {
		return errors.StateMigrationError(fmt.Errorf("failed to create migrator: %w", err))
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.StateMigrationError(err)
	}

	return nil
}

// Location returns the database file path
func (s *Store) Location() string {
	return s.path
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// transaction executes fn within a transaction, committing only when fn succeeds
func (s *Store) transaction(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.StateWriteError(fmt.Errorf("failed to begin transaction: %w", err))
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("tx failed: %w, unable to rollback: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.StateWriteError(fmt.Errorf("failed to commit transaction: %w", err))
	}

	return nil
}
