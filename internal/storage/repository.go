// Package storage contains the storage-agnostic persistence contracts for the
// ingestion pipeline. Concrete backends (sqlite, postgres, mongo) live in
// subpackages and register themselves with the factory in their init
// functions; callers select a backend purely by configuration.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Outcome classifies a single insert-or-ignore write.
type Outcome int

const (
	// OutcomeInserted means the row was written.
	OutcomeInserted Outcome = iota
	// OutcomeDuplicate means the row already existed and the write was
	// ignored. Expected under re-runs; never fatal.
	OutcomeDuplicate
)

// CatalogEntry is one persisted drug catalog row, read back during registry
// hydration.
type CatalogEntry struct {
	ID  int64
	Key string
}

// Repository is the capability set the pipeline needs from a store. All row
// writes go through InsertIgnore or Upsert; schema creation and transactional
// batching are explicit. Implementations are used from a single goroutine.
type Repository interface {
	// EnsureSchema creates the target relations if absent.
	EnsureSchema(ctx context.Context) error

	// InsertIgnore writes one row, tolerating an existing row with the same
	// natural key. values is aligned with columns.
	InsertIgnore(ctx context.Context, table string, columns []string, values []any) (Outcome, error)

	// Upsert writes one row, fully replacing an existing row with the same
	// key. keyColumns is the conflict target.
	Upsert(ctx context.Context, table string, keyColumns, columns []string, values []any) error

	// Begin opens a batch transaction; Commit closes it. Backends without
	// transactions implement these as no-ops.
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error

	// DrugCatalog reads back all persisted catalog entries so a resumed run
	// continues the same surrogate id space.
	DrugCatalog(ctx context.Context) ([]CatalogEntry, error)

	Close()
}

// Config selects and parameterizes a backend.
type Config struct {
	// Kind selects the registered backend: "sqlite", "postgres", "mongo".
	Kind string

	// DSN is the backend connection string (file path, pgx DSN, mongo URI).
	DSN string

	// Namespace is the database/schema the relations live in. Backends that
	// encode the namespace in the DSN may ignore it.
	Namespace string
}

// Factory constructs a Repository for one backend kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for a backend kind. It is
// called from backend packages' init functions.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Repository for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no storage backend registered for kind=%q (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
