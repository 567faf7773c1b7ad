// Package registry deduplicates drug entities across the whole run. Drug
// descriptions recur across reports (and within one report); the registry
// assigns each distinct identity a stable numeric id and emits the catalog,
// substance and openfda-variant rows exactly once per distinct content.
package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"

	"faersload/internal/storage"
	"faersload/pkg/records"
)

// Sink receives the rows the registry decides to materialize. The pipeline
// backs it with the current storage transaction so first-creation writes
// commit atomically with the report that introduced the drug.
type Sink interface {
	CatalogRow(ctx context.Context, id int64, identityKey, medicinalProduct string) error
	SubstanceRow(ctx context.Context, id int64, name string) error
	VariantRow(ctx context.Context, id int64, v Variant) error
}

// Variant is one distinct openfda metadata object observed for a drug,
// content-addressed by a hash of its canonical serialization. Fields holds
// the flattened column values; multi-valued source fields are joined.
type Variant struct {
	Hash   string
	Fields map[string]string
}

// variantColumns fixes the flattening order for openfda objects. Source field
// names and column names coincide.
var variantColumns = []string{
	"application_number",
	"brand_name",
	"generic_name",
	"manufacturer_name",
	"nui",
	"package_ndc",
	"pharm_class_cs",
	"pharm_class_epc",
	"pharm_class_moa",
	"pharm_class_pe",
	"product_ndc",
	"product_type",
	"route",
	"rxcui",
	"spl_id",
	"spl_set_id",
	"substance_name",
	"unii",
}

// VariantColumns returns the flattening order, for sinks that need to emit
// variant fields as positional columns.
func VariantColumns() []string {
	return variantColumns
}

// Registry holds the in-memory identity map for one run.
type Registry struct {
	sink     Sink
	byKey    map[string]int64
	variants map[int64]map[string]struct{}
	nextID   int64
}

// New returns an empty registry writing through sink.
func New(sink Sink) *Registry {
	return &Registry{
		sink:     sink,
		byKey:    map[string]int64{},
		variants: map[int64]map[string]struct{}{},
		nextID:   1,
	}
}

// Hydrate preloads identities persisted by earlier runs so re-runs reuse the
// ids already on disk. Id assignment resumes above the highest seen id.
// Previously written variants are not reloaded; re-emitting one is absorbed
// by the storage layer's duplicate tolerance.
func (r *Registry) Hydrate(entries []storage.CatalogEntry) {
	for _, e := range entries {
		r.byKey[e.Key] = e.ID
		if e.ID >= r.nextID {
			r.nextID = e.ID + 1
		}
	}
}

// Len reports the number of distinct drugs known to the registry.
func (r *Registry) Len() int { return len(r.byKey) }

// GetOrCreate resolves drug to its stable id, creating it (and writing the
// catalog and substance rows) on first sight. A record with no usable product
// name is unregistrable and yields id 0 with no error; callers skip those.
// New openfda variants are written whether or not the drug itself is new.
func (r *Registry) GetOrCreate(ctx context.Context, drug records.Record) (int64, error) {
	key := IdentityKey(drug)
	if key == "" {
		return 0, nil
	}

	id, ok := r.byKey[key]
	if !ok {
		id = r.nextID
		r.nextID++

		name := canonical(drug.String("medicinalproduct"))
		if err := r.sink.CatalogRow(ctx, id, key, name); err != nil {
			return 0, fmt.Errorf("catalog drug %d: %w", id, err)
		}
		for _, sub := range substanceNames(drug) {
			if err := r.sink.SubstanceRow(ctx, id, sub); err != nil {
				return 0, fmt.Errorf("substance for drug %d: %w", id, err)
			}
		}
		r.byKey[key] = id
	}

	if v, ok := variantOf(drug); ok {
		seen := r.variants[id]
		if seen == nil {
			seen = map[string]struct{}{}
			r.variants[id] = seen
		}
		if _, dup := seen[v.Hash]; !dup {
			if err := r.sink.VariantRow(ctx, id, v); err != nil {
				return 0, fmt.Errorf("variant for drug %d: %w", id, err)
			}
			seen[v.Hash] = struct{}{}
		}
	}

	return id, nil
}

// variantOf flattens the record's openfda object, if any, into a Variant.
// An openfda object with none of the known fields populated is ignored.
func variantOf(drug records.Record) (Variant, bool) {
	fda := drug.Map("openfda")
	if fda == nil {
		return Variant{}, false
	}

	fields := map[string]string{}
	var canon strings.Builder
	for _, col := range variantColumns {
		joined := joinValues(fda.Value(col))
		if joined == "" {
			continue
		}
		fields[col] = joined
		canon.WriteString(col)
		canon.WriteByte('=')
		canon.WriteString(joined)
		canon.WriteByte('\n')
	}
	if len(fields) == 0 {
		return Variant{}, false
	}

	return Variant{
		Hash:   fmt.Sprintf("%016x", xxh3.HashString(canon.String())),
		Fields: fields,
	}, true
}

// joinValues renders an openfda field value, usually a list of strings, as a
// single comma-separated string. Non-string elements are dropped.
func joinValues(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, elem := range val {
			if s, ok := elem.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}
