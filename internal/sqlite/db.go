package sqlite

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DB wraps a database connection and the placeholder style of its driver.
type DB struct {
	*sql.DB
	driver string
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	return Open(DriverSQLite, dataSourceName)
}

// Open connects with the named driver. Queries are written with ? placeholders
// and rebound for Postgres.
func Open(driver, dataSourceName string) (*DB, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// Every connection to :memory: is a separate database.
		if dataSourceName == ":memory:" || dataSourceName == "" {
			db.SetMaxOpenConns(1)
		}
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	} else if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &DB{DB: db, driver: driver}, nil
}

// Wrap adopts an existing connection, for drivers opened elsewhere.
func Wrap(db *sql.DB, driver string) *DB {
	return &DB{DB: db, driver: driver}
}

// Driver returns the driver name the connection was opened with.
func (db *DB) Driver() string { return db.driver }

// rebind rewrites ? placeholders to $n when the driver needs it.
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const schema = `
CREATE TABLE IF NOT EXISTS objects (
    handle TEXT PRIMARY KEY,
    namespace TEXT NOT NULL,
    gramps_id TEXT NOT NULL,
    change_time BIGINT NOT NULL,
    data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_objects_namespace_id ON objects(namespace, gramps_id);

CREATE TABLE IF NOT EXISTS refs (
    from_handle TEXT NOT NULL,
    to_handle TEXT NOT NULL,
    PRIMARY KEY (from_handle, to_handle)
);
CREATE INDEX IF NOT EXISTS idx_refs_to ON refs(to_handle);

CREATE TABLE IF NOT EXISTS tags (
    handle TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    color TEXT NOT NULL DEFAULT '',
    priority INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS bookmarks (
    namespace TEXT NOT NULL,
    handle TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (namespace, handle)
);

CREATE TABLE IF NOT EXISTS metadata (
    name TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// RunMigrations creates the schema. It is idempotent.
func (db *DB) RunMigrations() error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
