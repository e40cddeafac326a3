package merge

import (
	"fmt"
	"reflect"
	"strconv"
)

// valuesEqual reports whether two field values are the same after numeric
// normalization, so 100000 (int) and 100000.0 (JSON round-trip) do not count
// as a displacement.
func valuesEqual(a, b any) bool {
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case fmt.Stringer:
		f, err := strconv.ParseFloat(t.String(), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
