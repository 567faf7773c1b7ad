// Package mongo implements a document-store storage.Repository using the
// official MongoDB driver. Each relation becomes a collection; a row's
// natural key becomes a compound _id sub-document, which makes insert-or-
// ignore a plain InsertOne with duplicate-key tolerance and upsert a
// ReplaceOne. Batch transactions are no-ops: every write is individually
// durable, and idempotent keys make re-runs safe.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"faersload/internal/storage"
)

// Repository is a MongoDB-backed implementation of storage.Repository.
type Repository struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewRepository connects to the given URI and selects the database named by
// namespace.
func NewRepository(ctx context.Context, uri, namespace string) (*Repository, error) {
	if namespace == "" {
		namespace = "openfda"
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	return &Repository{client: client, db: client.Database(namespace)}, nil
}

// EnsureSchema is a no-op: collections are created on first write and the
// compound _id carries the uniqueness constraint.
func (r *Repository) EnsureSchema(ctx context.Context) error { return nil }

// InsertIgnore inserts one document, treating a duplicate _id as the
// already-exists case.
func (r *Repository) InsertIgnore(ctx context.Context, table string, columns []string, values []any) (storage.Outcome, error) {
	doc, err := r.document(table, columns, values)
	if err != nil {
		return storage.OutcomeInserted, err
	}
	if _, err := r.db.Collection(table).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.OutcomeDuplicate, nil
		}
		return storage.OutcomeInserted, fmt.Errorf("mongo: insert %s: %w", table, err)
	}
	return storage.OutcomeInserted, nil
}

// Upsert replaces any existing document with the same _id.
func (r *Repository) Upsert(ctx context.Context, table string, keyColumns, columns []string, values []any) error {
	doc, err := r.document(table, columns, values)
	if err != nil {
		return err
	}
	_, err = r.db.Collection(table).ReplaceOne(
		ctx,
		bson.D{{Key: "_id", Value: doc[0].Value}},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongo: upsert %s: %w", table, err)
	}
	return nil
}

// Begin and Commit are no-ops; see the package comment.
func (r *Repository) Begin(ctx context.Context) error  { return nil }
func (r *Repository) Commit(ctx context.Context) error { return nil }

// DrugCatalog reads back the persisted catalog for registry hydration.
func (r *Repository) DrugCatalog(ctx context.Context) ([]storage.CatalogEntry, error) {
	cur, err := r.db.Collection(storage.TableDrugCatalog).Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("mongo: read drug_catalog: %w", err)
	}
	defer cur.Close(ctx)

	var out []storage.CatalogEntry
	for cur.Next(ctx) {
		var doc struct {
			DrugID      int64  `bson:"drug_id"`
			IdentityKey string `bson:"identity_key"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: decode drug_catalog: %w", err)
		}
		out = append(out, storage.CatalogEntry{ID: doc.DrugID, Key: doc.IdentityKey})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongo: iterate drug_catalog: %w", err)
	}
	return out, nil
}

// Close disconnects the client.
func (r *Repository) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = r.client.Disconnect(ctx)
}

// document builds the bson document for one row, with _id first. The _id is
// a sub-document of the relation's natural key columns, so logical identity
// matches the relational backends exactly.
func (r *Repository) document(table string, columns []string, values []any) (bson.D, error) {
	if len(columns) != len(values) {
		return nil, fmt.Errorf("mongo: %s: %d columns vs %d values", table, len(columns), len(values))
	}
	keyCols, ok := storage.Keys[table]
	if !ok {
		return nil, fmt.Errorf("mongo: no key definition for table %q", table)
	}

	byName := make(map[string]any, len(columns))
	for i, c := range columns {
		byName[c] = values[i]
	}

	id := make(bson.D, 0, len(keyCols))
	for _, k := range keyCols {
		v, ok := byName[k]
		if !ok {
			return nil, fmt.Errorf("mongo: %s: key column %q missing from row", table, k)
		}
		id = append(id, bson.E{Key: k, Value: v})
	}

	doc := make(bson.D, 0, len(columns)+1)
	doc = append(doc, bson.E{Key: "_id", Value: id})
	for i, c := range columns {
		doc = append(doc, bson.E{Key: c, Value: values[i]})
	}
	return doc, nil
}

var _ storage.Repository = (*Repository)(nil)

func init() {
	storage.Register("mongo", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, cfg.DSN, cfg.Namespace)
	})
}
