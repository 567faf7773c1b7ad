package decompose

import "faersload/pkg/records"

// EstimateSize approximates the serialized byte size of a raw record without
// re-encoding it. Used to divert oversized records before any decomposition
// state (registry ids in particular) is touched, so a diverted record leaves
// no trace. The estimate deliberately overcounts a little; the threshold it
// is compared against is a safety margin, not an exact wire limit.
func EstimateSize(rec records.Record) int {
	return sizeOf(map[string]any(rec))
}

func sizeOf(v any) int {
	switch t := v.(type) {
	case nil:
		return 4
	case bool:
		return 5
	case string:
		return len(t) + 2
	case map[string]any:
		n := 2
		for k, elem := range t {
			n += len(k) + 4 + sizeOf(elem)
		}
		return n
	case []any:
		n := 2
		for _, elem := range t {
			n += sizeOf(elem) + 1
		}
		return n
	default:
		// numbers, json.Number, anything else scalar
		return 20
	}
}
