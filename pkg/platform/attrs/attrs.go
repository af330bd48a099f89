// Package attrs reads slog-style key/value argument lists.
package attrs

import (
	"fmt"
	"math"
	"strconv"
)

// ExtractString returns the string value for key from a [k1, v1, k2, v2, ...]
// slice, or "" when the key is absent or not a string.
func ExtractString(attrs []any, key string) string {
	for i := 0; i < len(attrs)-1; i += 2 {
		k, ok := attrs[i].(string)
		if !ok || k != key {
			continue
		}
		if v, ok := attrs[i+1].(string); ok {
			return v
		}
	}
	return ""
}

// Details flattens the pairs into a string map, skipping the listed keys and
// empty values. Floats are rendered without exponent; infinities as "inf".
func Details(attrs []any, skip ...string) map[string]string {
	skipped := make(map[string]struct{}, len(skip))
	for _, k := range skip {
		skipped[k] = struct{}{}
	}

	out := make(map[string]string)
	for i := 0; i < len(attrs)-1; i += 2 {
		k, ok := attrs[i].(string)
		if !ok {
			continue
		}
		if _, ok := skipped[k]; ok {
			continue
		}
		if v := render(attrs[i+1]); v != "" {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func render(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if math.IsInf(t, 0) {
			return "inf"
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
