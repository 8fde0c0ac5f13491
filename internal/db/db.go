package db

import (
	"database/sql"
	"fmt"

	"eve-warehouse/internal/logger"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	sql *sql.DB
}

// Open opens (or creates) the SQLite database at path and runs migrations.
// ":memory:" gives a throwaway database.
func Open(path string) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return d, nil
}

// SqlDB exposes the underlying handle for stores living in other packages.
func (d *DB) SqlDB() *sql.DB {
	return d.sql
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// SchemaVersion returns the highest applied migration.
func (d *DB) SchemaVersion() int {
	version := 0
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	return version
}

func (d *DB) migrate() error {
	if _, err := d.sql.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("schema_version: %w", err)
	}
	version := d.SchemaVersion()

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS auth_session (
				id               INTEGER PRIMARY KEY CHECK (id = 1),
				character_id     INTEGER NOT NULL,
				character_name   TEXT NOT NULL,
				corporation_id   INTEGER NOT NULL DEFAULT 0,
				corporation_name TEXT NOT NULL DEFAULT '',
				access_token     TEXT NOT NULL,
				refresh_token    TEXT NOT NULL,
				expires_at       INTEGER NOT NULL
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Info("DB", "Applied migration v1")
	}
	return nil
}
