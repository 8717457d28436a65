package domain

import "sort"

// HighlightCategory is always drawn in the emphasis color.
const HighlightCategory = "Food at home"

const highlightColor = "#DC2626"

var palette = []string{
	"#2563EB",
	"#DC2626",
	"#16A34A",
	"#EA580C",
	"#9333EA",
	"#0891B2",
	"#CA8A04",
	"#DB2777",
	"#059669",
	"#7C3AED",
	"#BE123C",
	"#0369A1",
	"#B91C1C",
	"#0D9488",
	"#C026D3",
	"#1D4ED8",
	"#15803D",
	"#A855F7",
	"#EF4444",
	"#10B981",
}

// ColorMap assigns colors to categories by their sorted position so every
// output draws a category the same way.
func ColorMap(categories []string) map[string]string {
	sorted := append([]string(nil), categories...)
	sort.Strings(sorted)
	out := make(map[string]string, len(sorted))
	for i, c := range sorted {
		if c == HighlightCategory {
			out[c] = highlightColor
			continue
		}
		out[c] = palette[i%len(palette)]
	}
	return out
}

// Categories returns the distinct non-empty categories in rows, sorted.
func Categories(rows []MergedRecord) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range rows {
		if r.Category == "" {
			continue
		}
		if _, ok := seen[r.Category]; ok {
			continue
		}
		seen[r.Category] = struct{}{}
		out = append(out, r.Category)
	}
	sort.Strings(out)
	return out
}
