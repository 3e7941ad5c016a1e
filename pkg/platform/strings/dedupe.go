// Package strings provides string list helpers shared by config parsing and
// adapter selection.
package strings

import (
	"strings"
)

// SplitList splits a comma separated value into lowercased, trimmed, unique
// items. Order of first occurrence is preserved.
//
// Example:
//
//	SplitList(" DuckDuckGo, public,ddg,,Public ")
//	// Returns: []string{"duckduckgo", "public", "ddg"}
func SplitList(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	return DedupeAndTrimLower(strings.Split(csv, ","))
}

// DedupeAndTrimLower removes duplicates and blank entries, trimming and
// lowercasing each element. Order is preserved.
func DedupeAndTrimLower(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		normalized := strings.ToLower(strings.TrimSpace(v))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		result = append(result, normalized)
	}

	return result
}
