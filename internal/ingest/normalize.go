// Package ingest reads raw source files into record batches. Column
// names are normalized on the way in so downstream rules can address
// columns by a stable snake_case name regardless of source formatting.
package ingest

import (
	"regexp"
	"strings"
)

var (
	invalidColRe  = regexp.MustCompile(`[^a-z0-9_]+`)
	collapseColRe = regexp.MustCompile(`_+`)
)

// NormalizeColumnName converts a raw header cell into a snake_case
// column name: trimmed, lowercased, with runs of spaces, punctuation and
// other separators collapsed into single underscores.
func NormalizeColumnName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = invalidColRe.ReplaceAllString(s, "_")
	s = collapseColRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// NormalizeHeader normalizes every column in a header row. Empty or
// duplicate names keep their position; the reader indexes by position
// and surfaces the collision to the caller.
func NormalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = NormalizeColumnName(h)
	}
	return out
}
