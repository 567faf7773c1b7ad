// Package records defines the weakly-typed record tree produced by the
// streaming source and consumed at the normalize/decompose boundary.
//
// A Record is an arbitrarily nested mapping decoded from JSON. Nothing about
// its shape is guaranteed: any key may be absent, and any value may be a
// scalar, a list, or a nested mapping regardless of what the schema suggests.
// The accessors here perform only minimal shape coercion and return zero
// values when a key is absent or of an unexpected type, so callers never need
// to type-assert defensively at every site.
package records

// Record is one decoded input record (or a nested sub-mapping of one).
type Record map[string]any

// Value returns the raw value for key, or nil when absent.
func (r Record) Value(key string) any {
	if r == nil {
		return nil
	}
	return r[key]
}

// Map returns the nested Record for key, or nil when the value is absent or
// not a mapping.
func (r Record) Map(key string) Record {
	if v, ok := r[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return Record(m)
		}
	}
	return nil
}

// Slice returns the list value for key, or nil when the value is absent or
// not a list.
func (r Record) Slice(key string) []any {
	if v, ok := r[key]; ok {
		if s, ok := v.([]any); ok {
			return s
		}
	}
	return nil
}

// Maps returns the list value for key with every non-mapping element dropped.
// Malformed entries inside a repeated group are skipped individually rather
// than failing the whole group.
func (r Record) Maps(key string) []Record {
	raw := r.Slice(key)
	if raw == nil {
		return nil
	}
	out := make([]Record, 0, len(raw))
	for _, elem := range raw {
		if m, ok := elem.(map[string]any); ok {
			out = append(out, Record(m))
		}
	}
	return out
}

// String returns the string value for key, or "" when absent or not a string.
func (r Record) String(key string) string {
	if v, ok := r[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Has reports whether key is present at all, regardless of its value. The
// distinction matters for optional satellite rows: an absent field must not
// synthesize a row, while an explicit null still counts as present.
func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}
