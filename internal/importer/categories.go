package importer

import "strings"

// SplitCategories parses a free-text comma-separated category cell into a
// list of names: tokens are trimmed, tokens empty after trimming are dropped,
// and duplicates within the cell are removed keeping the first occurrence.
// Name comparison is case-sensitive; "food" and "Food" are distinct.
func SplitCategories(s string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, token := range strings.Split(s, ",") {
		name := strings.TrimSpace(token)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
