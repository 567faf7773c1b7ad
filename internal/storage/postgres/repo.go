// Package postgres implements a Postgres-backed storage.Repository using pgx
// v5. Insert-or-ignore maps to ON CONFLICT DO NOTHING and upsert to ON
// CONFLICT ... DO UPDATE, both against the relations' natural keys.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"faersload/internal/storage"
)

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool   *pgxpool.Pool
	schema string
	tx     pgx.Tx
}

// NewRepository connects a pgxpool to the given DSN. schema qualifies all
// relation names; empty means the search_path default.
func NewRepository(ctx context.Context, dsn, schema string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repository{pool: pool, schema: schema}, nil
}

// EnsureSchema applies the fixed relation DDL.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if r.schema != "" {
		stmt := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgIdent(r.schema))
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: create schema: %w", err)
		}
	}
	if _, err := r.pool.Exec(ctx, renderDDL(r.schema)); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}

// InsertIgnore writes one row with ON CONFLICT DO NOTHING.
func (r *Repository) InsertIgnore(ctx context.Context, table string, columns []string, values []any) (storage.Outcome, error) {
	stmt := r.insertSQL(table, columns) + " ON CONFLICT DO NOTHING"
	tag, err := r.exec(ctx, stmt, values...)
	if err != nil {
		return storage.OutcomeInserted, fmt.Errorf("postgres: insert %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.OutcomeDuplicate, nil
	}
	return storage.OutcomeInserted, nil
}

// Upsert writes one row, replacing any existing row that conflicts on
// keyColumns. When every column is part of the key there is nothing to
// update and the conflict degrades to DO NOTHING.
func (r *Repository) Upsert(ctx context.Context, table string, keyColumns, columns []string, values []any) error {
	stmt := r.upsertSQL(table, keyColumns, columns)
	if _, err := r.exec(ctx, stmt, values...); err != nil {
		return fmt.Errorf("postgres: upsert %s: %w", table, err)
	}
	return nil
}

// Begin opens the batch transaction subsequent writes run in.
func (r *Repository) Begin(ctx context.Context) error {
	if r.tx != nil {
		return fmt.Errorf("postgres: transaction already open")
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	r.tx = tx
	return nil
}

// Commit closes the current batch transaction; no-op when none is open.
func (r *Repository) Commit(ctx context.Context) error {
	if r.tx == nil {
		return nil
	}
	err := r.tx.Commit(ctx)
	r.tx = nil
	if err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// DrugCatalog reads back the persisted catalog for registry hydration.
func (r *Repository) DrugCatalog(ctx context.Context) ([]storage.CatalogEntry, error) {
	stmt := fmt.Sprintf(
		"SELECT drug_id, identity_key FROM %s ORDER BY drug_id",
		r.fqn(storage.TableDrugCatalog),
	)
	rows, err := r.pool.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("postgres: read drug_catalog: %w", err)
	}
	defer rows.Close()

	var out []storage.CatalogEntry
	for rows.Next() {
		var e storage.CatalogEntry
		if err := rows.Scan(&e.ID, &e.Key); err != nil {
			return nil, fmt.Errorf("postgres: scan drug_catalog: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate drug_catalog: %w", err)
	}
	return out, nil
}

// Close rolls back any open batch and releases the pool.
func (r *Repository) Close() {
	if r.tx != nil {
		_ = r.tx.Rollback(context.Background())
		r.tx = nil
	}
	r.pool.Close()
}

func (r *Repository) exec(ctx context.Context, stmt string, args ...any) (pgconn.CommandTag, error) {
	if r.tx != nil {
		return r.tx.Exec(ctx, stmt, args...)
	}
	return r.pool.Exec(ctx, stmt, args...)
}

func (r *Repository) insertSQL(table string, columns []string) string {
	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		r.fqn(table),
		strings.Join(mapIdent(columns), ", "),
		strings.Join(placeholders, ", "),
	)
}

func (r *Repository) upsertSQL(table string, keyColumns, columns []string) string {
	assigns := updateColumns(nonKey(columns, keyColumns))
	if len(assigns) == 0 {
		return fmt.Sprintf(
			"%s ON CONFLICT (%s) DO NOTHING",
			r.insertSQL(table, columns),
			strings.Join(mapIdent(keyColumns), ", "),
		)
	}
	return fmt.Sprintf(
		"%s ON CONFLICT (%s) DO UPDATE SET %s",
		r.insertSQL(table, columns),
		strings.Join(mapIdent(keyColumns), ", "),
		strings.Join(assigns, ", "),
	)
}

func (r *Repository) fqn(table string) string {
	if r.schema == "" {
		return pgIdent(table)
	}
	return pgIdent(r.schema) + "." + pgIdent(table)
}

// pgIdent double-quotes an identifier, escaping embedded quotes.
func pgIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}

// updateColumns generates "col = EXCLUDED.col" assignments for an upsert.
func updateColumns(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = fmt.Sprintf("%s = EXCLUDED.%s", pgIdent(c), pgIdent(c))
	}
	return out
}

// nonKey filters keyColumns out of columns so the DO UPDATE clause never
// assigns to the conflict target itself.
func nonKey(columns, keyColumns []string) []string {
	keys := make(map[string]struct{}, len(keyColumns))
	for _, k := range keyColumns {
		keys[k] = struct{}{}
	}
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if _, ok := keys[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

var _ storage.Repository = (*Repository)(nil)

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, cfg.DSN, cfg.Namespace)
	})
}
