package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"transcriptd/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    source_url TEXT NOT NULL DEFAULT '',
    original_filename TEXT NOT NULL DEFAULT '',
    stored_filename TEXT NOT NULL DEFAULT '',
    title TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'queued',
    model TEXT NOT NULL DEFAULT 'small',
    language TEXT NOT NULL DEFAULT 'auto',
    error TEXT NOT NULL DEFAULT '',
    fallback_reason TEXT NOT NULL DEFAULT '',
    attempts INTEGER NOT NULL DEFAULT 0,
    not_before DATETIME NOT NULL,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);

CREATE TABLE IF NOT EXISTS transcripts (
    job_id TEXT PRIMARY KEY REFERENCES jobs(id) ON DELETE CASCADE,
    segments TEXT NOT NULL,
    full_text TEXT NOT NULL,
    edited_text TEXT NOT NULL DEFAULT '',
    language TEXT NOT NULL DEFAULT '',
    duration REAL NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL,
    last_edited_at DATETIME
);
`

type DBConfig struct {
	MaxConnections     int
	MaxIdleConnections int
}

func DefaultDBConfig() DBConfig {
	return DBConfig{
		MaxConnections:     10,
		MaxIdleConnections: 5,
	}
}

func InitDB(dbPath string, cfg DBConfig) (*sql.DB, error) {
	const op = "sqlite.InitDB"

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.Internal(op, err, "failed to create database directory")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Internal(op, err, "failed to open database")
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)

	if err := configurePragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := execSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func configurePragmas(db *sql.DB) error {
	const op = "sqlite.configurePragmas"

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return errors.Internal(op, err, fmt.Sprintf("failed to set pragma: %s", pragma))
		}
	}

	return nil
}

func execSchema(db *sql.DB) error {
	const op = "sqlite.execSchema"

	tx, err := db.Begin()
	if err != nil {
		return errors.Internal(op, err, "failed to begin transaction")
	}
	defer tx.Rollback()

	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			return errors.Internal(op, err, fmt.Sprintf("failed to execute schema statement: %s", stmt))
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Internal(op, err, "failed to commit schema transaction")
	}

	return nil
}

type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// TxFn is a function that will be called with a transaction.
type TxFn func(tx Executor) error

// WithTransaction wraps fn with proper rollback/commit logic.
func WithTransaction(ctx context.Context, db *sql.DB, fn TxFn) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
