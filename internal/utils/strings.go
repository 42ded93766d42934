// Package utils holds small helpers shared by the HTTP handlers.
package utils

import "strings"

// ParseList splits a comma-separated query value into trimmed, non-empty,
// distinct items in first-seen order. normalize, when non-nil, is applied to
// each item before the duplicate check. Returns nil when nothing remains.
func ParseList(s string, normalize func(string) string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var result []string
	seen := make(map[string]bool)
	for _, v := range strings.Split(s, ",") {
		item := strings.TrimSpace(v)
		if normalize != nil {
			item = normalize(item)
		}
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		result = append(result, item)
	}
	return result
}
