package authz

import (
	"sort"
	"strings"
)

// Group is a presentation bucket of permission names sharing a prefix.
type Group struct {
	Prefix string
	Names  []string
}

// GroupPermissions buckets names by the text before the first underscore.
// Names without an underscore fall into the "general" group. Groups and names are sorted.
func GroupPermissions(names []string) []Group {
	buckets := make(map[string][]string)
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		prefix := "general"
		if idx := strings.Index(name, "_"); idx > 0 {
			prefix = name[:idx]
		}
		buckets[prefix] = append(buckets[prefix], name)
	}
	out := make([]Group, 0, len(buckets))
	for prefix, list := range buckets {
		sort.Strings(list)
		out = append(out, Group{Prefix: prefix, Names: list})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Prefix < out[j].Prefix })
	return out
}
