// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql. Writes run inside explicit batch transactions; SQLite's
// INSERT OR IGNORE / INSERT OR REPLACE map directly onto the pipeline's two
// insertion policies.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// SQLite driver; replace with your preferred driver if desired.
	_ "modernc.org/sqlite" // alternative: github.com/mattn/go-sqlite3

	"faersload/internal/storage"
)

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewRepository opens a SQLite connection using the provided DSN.
//
// DSN is passed directly to database/sql; for example:
//
//	"file:faers.db?cache=shared&_fk=1"
//	"faers.db"
func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	// One writer; database/sql pooling would only add lock contention.
	db.SetMaxOpenConns(1)
	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON;")

	return &Repository{db: db}, nil
}

// EnsureSchema applies the fixed relation DDL (CREATE TABLE IF NOT EXISTS).
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("sqlite: ensure schema: %w", err)
	}
	return nil
}

// InsertIgnore writes one row with INSERT OR IGNORE and reports whether the
// row landed or an existing row with the same key suppressed it.
func (r *Repository) InsertIgnore(ctx context.Context, table string, columns []string, values []any) (storage.Outcome, error) {
	stmt := insertSQL("INSERT OR IGNORE", table, columns)
	res, err := r.exec(ctx, stmt, values...)
	if err != nil {
		return storage.OutcomeInserted, fmt.Errorf("sqlite: insert %s: %w", table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.OutcomeDuplicate, nil
	}
	return storage.OutcomeInserted, nil
}

// Upsert fully replaces any existing row with the same primary key. SQLite's
// OR REPLACE conflicts on the table's declared key, so keyColumns is not
// consulted here; it is part of the interface for backends that need an
// explicit conflict target.
func (r *Repository) Upsert(ctx context.Context, table string, keyColumns, columns []string, values []any) error {
	stmt := insertSQL("INSERT OR REPLACE", table, columns)
	if _, err := r.exec(ctx, stmt, values...); err != nil {
		return fmt.Errorf("sqlite: upsert %s: %w", table, err)
	}
	return nil
}

// Begin opens the batch transaction subsequent writes run in.
func (r *Repository) Begin(ctx context.Context) error {
	if r.tx != nil {
		return fmt.Errorf("sqlite: transaction already open")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	r.tx = tx
	return nil
}

// Commit closes the current batch transaction. Committing with no open
// transaction is a no-op so the driver's final flush is unconditional.
func (r *Repository) Commit(ctx context.Context) error {
	if r.tx == nil {
		return nil
	}
	err := r.tx.Commit()
	r.tx = nil
	if err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// DrugCatalog reads back the persisted catalog for registry hydration.
func (r *Repository) DrugCatalog(ctx context.Context) ([]storage.CatalogEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT drug_id, identity_key FROM drug_catalog ORDER BY drug_id")
	if err != nil {
		return nil, fmt.Errorf("sqlite: read drug_catalog: %w", err)
	}
	defer rows.Close()

	var out []storage.CatalogEntry
	for rows.Next() {
		var e storage.CatalogEntry
		if err := rows.Scan(&e.ID, &e.Key); err != nil {
			return nil, fmt.Errorf("sqlite: scan drug_catalog: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate drug_catalog: %w", err)
	}
	return out, nil
}

// Close rolls back any uncommitted batch and closes the database. Losing the
// most recent uncommitted batch is acceptable: writes are idempotent and the
// run can safely be repeated.
func (r *Repository) Close() {
	if r.tx != nil {
		_ = r.tx.Rollback()
		r.tx = nil
	}
	_ = r.db.Close()
}

func (r *Repository) exec(ctx context.Context, stmt string, args ...any) (sql.Result, error) {
	if r.tx != nil {
		return r.tx.ExecContext(ctx, stmt, args...)
	}
	return r.db.ExecContext(ctx, stmt, args...)
}

// insertSQL builds "<verb> INTO <table> (<cols>) VALUES (?, ?, ...)".
func insertSQL(verb, table string, columns []string) string {
	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	return fmt.Sprintf(
		"%s INTO %s (%s) VALUES (%s)",
		verb,
		table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)
}

var _ storage.Repository = (*Repository)(nil)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, cfg.DSN)
	})
}
