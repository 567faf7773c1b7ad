// Package normalize contains the pure, total field coercions applied to raw
// record values before decomposition. Every function in this package accepts
// any input shape and never panics or returns an error.
//
// Two contracts coexist on purpose:
//
//   - Int / Float are best-effort: on failure they return the original value
//     unchanged, so the caller keeps whatever the source carried.
//   - IntStrict / FloatStrict return nil on failure. Decomposition paths use
//     only the strict variants, because storage columns are typed and a
//     best-effort passthrough would leak raw strings into integer columns.
package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Int returns the int64 parse of a numeric-looking value, or the original
// value unchanged when it does not parse.
func Int(v any) any {
	if n, ok := parseInt(v); ok {
		return n
	}
	return v
}

// IntStrict returns the int64 parse of a numeric-looking value, or nil.
func IntStrict(v any) any {
	if n, ok := parseInt(v); ok {
		return n
	}
	return nil
}

// Float returns the float64 parse of a numeric-looking value, or the original
// value unchanged when it does not parse.
func Float(v any) any {
	if f, ok := parseFloat(v); ok {
		return f
	}
	return v
}

// FloatStrict returns the float64 parse of a numeric-looking value, or nil.
func FloatStrict(v any) any {
	if f, ok := parseFloat(v); ok {
		return f
	}
	return nil
}

// String returns the trimmed string form of v, or nil when v is not a string
// or trims to empty. Numbers are not stringified: a column declared as text
// should not silently absorb mistyped numeric input.
func String(v any) any {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

// Text is like String but preserves the value verbatim, including interior
// whitespace and empty strings. Used for narrative fields where the source
// text is the payload.
func Text(v any) any {
	if s, ok := v.(string); ok {
		return s
	}
	return nil
}

func parseInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		// "12.0" style numbers: accept when the float is integral.
		if f, err := t.Float64(); err == nil && f == float64(int64(f)) {
			return int64(f), true
		}
		return 0, false
	case float64:
		if t == float64(int64(t)) {
			return int64(t), true
		}
		return 0, false
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func parseFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f, true
		}
		return 0, false
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
		return 0, false
	default:
		return 0, false
	}
}
