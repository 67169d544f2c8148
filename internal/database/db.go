// Package database provides the embedded SQLite store: connection setup, migrations,
// and the data access layer (Store) for message events, full-text records, mention
// edges, identities, chat settings, and rolled-up totals.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/edgard/chatpulse/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

const driverName = "sqlite"

// Options tunes the connection handles opened by NewDB.
type Options struct {
	// ReaderConns caps the read-only pool. Values below 1 mean 1.
	ReaderConns int
	// BusyTimeout is how long a connection waits on a locked database.
	BusyTimeout time.Duration
}

// DB bundles the two handles open on one WAL-mode database file.
// Writer is limited to a single connection, so it is the only writer;
// Reader is a read-only pool used by aggregation queries.
type DB struct {
	Writer *sqlx.DB
	Reader *sqlx.DB
	Path   string
}

// NewDB opens the writer handle, applies migrations, and then opens the reader pool.
// dbPath should be a path to the SQLite database file.
func NewDB(dbPath string, opts Options) (*DB, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, errors.New("database path cannot be empty")
	}
	if opts.ReaderConns < 1 {
		opts.ReaderConns = 1
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 5 * time.Second
	}

	filePath := ExtractDBNameFromPath(dbPath)

	writer, err := sqlx.Connect(driverName, buildDSN(filePath, opts.BusyTimeout, false))
	if err != nil {
		return nil, fmt.Errorf("failed to connect writer: %w", err)
	}
	writer.SetMaxOpenConns(1)
	writer.SetMaxIdleConns(1)
	writer.SetConnMaxLifetime(0)

	if err := ApplyMigrations(writer.DB); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			slog.Error("Error closing database after migration failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	reader, err := sqlx.Connect(driverName, buildDSN(filePath, opts.BusyTimeout, true))
	if err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			slog.Error("Error closing writer after reader failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to connect reader pool: %w", err)
	}
	reader.SetMaxOpenConns(opts.ReaderConns)
	reader.SetMaxIdleConns(opts.ReaderConns)
	reader.SetConnMaxLifetime(5 * time.Minute)

	slog.Info("Database connected and migrations applied successfully",
		"path", filePath, "reader_conns", opts.ReaderConns)
	return &DB{Writer: writer, Reader: reader, Path: filePath}, nil
}

// CloseDB closes both handles.
func CloseDB(db *DB) {
	if db == nil {
		return
	}
	var errs []error
	if db.Reader != nil {
		errs = append(errs, db.Reader.Close())
	}
	if db.Writer != nil {
		errs = append(errs, db.Writer.Close())
	}
	if err := errors.Join(errs...); err != nil {
		slog.Error("Error closing database connection", "error", err)
		return
	}
	slog.Info("Database connection closed successfully.")
}

// ApplyMigrations runs the embedded migrations against db.
func ApplyMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("database connection is nil, cannot apply migrations")
	}

	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create embed source driver instance: %w", err)
	}

	dbDriver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite database driver: %w", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Debug("No database migrations to apply.")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := migrator.Version()
	if err == nil {
		slog.Info("Database migrations applied successfully.", "version", version, "dirty", dirty)
	}
	return nil
}

// ExtractDBNameFromPath extracts the database file path from a possibly URL-formatted path.
func ExtractDBNameFromPath(path string) string {
	path = strings.TrimPrefix(path, "file:")

	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}

	if decoded, err := url.PathUnescape(path); err == nil {
		return decoded
	}
	return path
}

// buildDSN sets the pragmas on every connection of the pool rather than on whichever
// connection happens to run a PRAGMA statement.
func buildDSN(path string, busyTimeout time.Duration, readOnly bool) string {
	params := url.Values{}
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "synchronous(NORMAL)")
	if readOnly {
		params.Add("_pragma", "query_only(1)")
	} else {
		params.Set("_txlock", "immediate")
	}
	return path + "?" + params.Encode()
}
