// Package store owns the shared sqlite database: opening, pragmas and the
// full schema. Component packages hold the returned *sql.DB and run their
// operations as single transactions against it.
package store

import (
	"database/sql"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// a single writer at a time keeps "one transaction per operation" honest
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate applies the schema. Safe to call on an existing database.
func Migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// Day formats a timestamp as the calendar-day key used by assigned_tasks
// and task_history rows.
func Day(t time.Time) string {
	return t.Format("2006-01-02")
}
