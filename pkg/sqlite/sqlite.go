// Package sqlite opens the CGO-free SQLite database used for local runs and
// repository tests. Queries are written with '?' placeholders and rebound by
// sqlx, so the same repositories serve postgres and sqlite.
package sqlite

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const DriverName = "sqlite"

// times are written in a layout that sorts like CURRENT_TIMESTAMP
const dsnParams = "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite"

func init() {
	sqlx.BindDriver(DriverName, sqlx.QUESTION)
}

// Open opens path (":memory:" works) and creates the schema.
func Open(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open(DriverName, path+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// single writer; also keeps ":memory:" on one connection
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createTables(db *sqlx.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS user_activity(
	  id         INTEGER PRIMARY KEY AUTOINCREMENT,
	  user_id    TEXT,
	  session_id TEXT     NOT NULL,
	  event_type TEXT     NOT NULL CHECK (event_type <> ''),
	  event_data TEXT     CHECK (event_data IS NULL OR json_valid(event_data)),
	  page_url   TEXT     NOT NULL,
	  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_user_activity_created ON user_activity(created_at);
	CREATE INDEX IF NOT EXISTS idx_user_activity_type    ON user_activity(event_type);
	CREATE INDEX IF NOT EXISTS idx_user_activity_session ON user_activity(session_id);

	CREATE TABLE IF NOT EXISTS profiles(
	  id        TEXT PRIMARY KEY,
	  full_name TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS orders(
	  id          TEXT PRIMARY KEY,
	  user_id     TEXT,
	  status      TEXT     NOT NULL DEFAULT 'pending',
	  subtotal    REAL     NOT NULL DEFAULT 0,
	  total       REAL     NOT NULL DEFAULT 0,
	  order_items TEXT     NOT NULL DEFAULT '[]',
	  created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS activity_summary(
	  id              INTEGER PRIMARY KEY AUTOINCREMENT,
	  date            DATE    NOT NULL,
	  hour            INTEGER NOT NULL,
	  event_type      TEXT    NOT NULL,
	  total_events    INTEGER NOT NULL DEFAULT 0,
	  unique_sessions INTEGER NOT NULL DEFAULT 0,
	  unique_users    INTEGER NOT NULL DEFAULT 0,
	  total_time_ms   INTEGER NOT NULL DEFAULT 0,
	  updated_at      DATETIME NOT NULL,
	  UNIQUE (date, hour, event_type)
	);
	`)
	if err != nil {
		return fmt.Errorf("failed to create database tables: %w", err)
	}
	return nil
}
