// Package strings holds small helpers for list-valued settings.
package strings

import (
	"strings"
)

// DedupeAndTrim trims each element and drops empty and repeated entries,
// keeping first-seen order.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// SplitList parses a comma-separated setting such as KAFKA_BROKERS.
// A blank value yields nil so callers can test len() for "not configured".
func SplitList(raw string) []string {
	values := DedupeAndTrim(strings.Split(raw, ","))
	if len(values) == 0 {
		return nil
	}
	return values
}
