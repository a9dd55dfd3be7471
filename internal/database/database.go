package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

type DB struct {
	*sql.DB
	dialect string
}

// New opens the roster store. A postgres:// URL selects the Postgres
// driver; anything else is treated as a SQLite file path (an optional
// sqlite:// prefix is stripped).
func New(databaseURL string) (*DB, error) {
	driver, dsn := driverFor(databaseURL)

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close() // Ignore close error, we're already returning ping error
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db, dialect: driver}, nil
}

func driverFor(databaseURL string) (driver, dsn string) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		return "postgres", databaseURL
	}
	dsn = strings.TrimPrefix(databaseURL, "sqlite://")
	dsn = strings.TrimPrefix(dsn, "sqlite3://")
	return "sqlite3", dsn
}

func (db *DB) Migrate() error {
	if err := goose.SetDialect(db.dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db.DB, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
