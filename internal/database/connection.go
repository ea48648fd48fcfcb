package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config selects the database backend
type Config struct {
	Driver string // sqlite3 or postgres
	DSN    string // file path for sqlite3, connection URL for postgres
}

// Connect opens the database and makes sure the schema exists
func Connect(cfg Config) (*sqlx.DB, error) {
	driver := cfg.Driver
	if driver == "" || driver == "sqlite" {
		driver = DriverSQLite
	}

	dsn := cfg.DSN
	if driver == DriverSQLite {
		if dsn == "" {
			dsn = filepath.Join("data", "cardsched.db")
		}
		// Create data directory if it doesn't exist
		if !strings.HasPrefix(dsn, ":memory:") && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		// SQLite doesn't support multiple writers
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := InitializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// InitializeSchema creates the tables if they don't exist
func InitializeSchema(db *sqlx.DB) error {
	idType, tsType := "INTEGER PRIMARY KEY AUTOINCREMENT", "TIMESTAMP"
	if db.DriverName() == DriverPostgres {
		idType, tsType = "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ"
	}

	tables := []struct {
		name string
		ddl  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id %[1]s,
				telegram_id BIGINT NOT NULL DEFAULT 0,
				username TEXT NOT NULL DEFAULT '',
				notification_enabled BOOLEAN NOT NULL DEFAULT true,
				notification_hour INTEGER NOT NULL DEFAULT 9,
				cards_per_day INTEGER NOT NULL DEFAULT 20,
				created_at %[2]s NOT NULL,
				updated_at %[2]s NOT NULL
			)`},
		{"decks", `
			CREATE TABLE IF NOT EXISTS decks (
				id %[1]s,
				owner_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				name TEXT NOT NULL,
				created_at %[2]s NOT NULL,
				UNIQUE(owner_id, name)
			)`},
		{"cards", `
			CREATE TABLE IF NOT EXISTS cards (
				id %[1]s,
				owner_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				deck_id BIGINT NOT NULL REFERENCES decks(id) ON DELETE CASCADE,
				front TEXT NOT NULL,
				back TEXT NOT NULL,
				stability DOUBLE PRECISION NOT NULL,
				difficulty DOUBLE PRECISION NOT NULL,
				due %[2]s NOT NULL,
				last_review_at %[2]s,
				reps INTEGER NOT NULL DEFAULT 0,
				lapses INTEGER NOT NULL DEFAULT 0,
				version BIGINT NOT NULL DEFAULT 1,
				created_at %[2]s NOT NULL,
				updated_at %[2]s NOT NULL
			)`},
		{"cards_owner_due index", `CREATE INDEX IF NOT EXISTS cards_owner_due ON cards(owner_id, due)`},
		{"review_logs", `
			CREATE TABLE IF NOT EXISTS review_logs (
				id %[1]s,
				card_id BIGINT NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
				owner_id BIGINT NOT NULL,
				rating INTEGER NOT NULL,
				reviewed_at %[2]s NOT NULL,
				elapsed_days DOUBLE PRECISION NOT NULL,
				previous_stability DOUBLE PRECISION NOT NULL,
				new_stability DOUBLE PRECISION NOT NULL,
				previous_difficulty DOUBLE PRECISION NOT NULL,
				new_difficulty DOUBLE PRECISION NOT NULL,
				previous_due %[2]s NOT NULL,
				new_due %[2]s NOT NULL,
				interval_days INTEGER NOT NULL
			)`},
		{"review_logs_card index", `CREATE INDEX IF NOT EXISTS review_logs_card ON review_logs(card_id, reviewed_at)`},
	}

	for _, t := range tables {
		ddl := t.ddl
		if strings.Contains(ddl, "%[") {
			ddl = fmt.Sprintf(ddl, idType, tsType)
		}
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("failed to create %s: %w", t.name, err)
		}
	}
	return nil
}

// WithTransaction runs fn inside a transaction, committing on success
func WithTransaction(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// insertID runs an INSERT and returns the new row id on either driver
func insertID(ctx context.Context, q sqlx.ExtContext, query string, args ...interface{}) (int64, error) {
	if q.DriverName() == DriverPostgres {
		var id int64
		err := q.QueryRowxContext(ctx, q.Rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}

	result, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}
