package ir

import (
	"slices"
	"strings"
)

// Context group setting separators: "web,de,fr;intranet,intranet-de".
const (
	groupSeparator = ";"
	keySeparator   = ","
)

// ContextGroups maps every configured context key to its group, the ordered
// set of keys (itself included) it may exchange linked replicas with.
type ContextGroups map[string][]string

// ParseContextGroups builds the context-key-to-group mapping from the flat
// setting. It never fails: blank keys are skipped and a key listed in more
// than one group belongs to the last one.
func ParseContextGroups(setting string) ContextGroups {
	groups := ContextGroups{}
	for _, group := range splitGroups(setting) {
		for _, key := range group {
			groups[key] = group
		}
	}
	return groups
}

// Group returns the group of ns, or nil when ns is not configured.
func (g ContextGroups) Group(ns string) []string {
	group, ok := g[NormalizeNamespace(ns)]
	if !ok {
		return nil
	}
	return slices.Clone(group)
}

// InGroup reports whether other belongs to the group of ns.
func (g ContextGroups) InGroup(ns, other string) bool {
	return slices.Contains(g[NormalizeNamespace(ns)], NormalizeNamespace(other))
}

// Keys returns all configured context keys, sorted.
func (g ContextGroups) Keys() []string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// RemoveContextKey drops ns from a context group setting. Only whole keys
// are removed ("de" never touches "dev"), groups left empty disappear and
// whitespace is dropped. changed reports whether ns was present.
func RemoveContextKey(setting, ns string) (updated string, changed bool) {
	ns = NormalizeNamespace(ns)
	groups := splitGroups(setting)
	kept := make([][]string, 0, len(groups))
	for _, group := range groups {
		remaining := make([]string, 0, len(group))
		for _, key := range group {
			if key == ns {
				changed = true
				continue
			}
			remaining = append(remaining, key)
		}
		if len(remaining) > 0 {
			kept = append(kept, remaining)
		}
	}
	if !changed {
		return setting, false
	}
	return joinGroups(kept), true
}

// FormatContextGroups normalizes a setting string: whitespace and blank keys
// are removed, duplicate keys inside a group collapse.
func FormatContextGroups(setting string) string {
	return joinGroups(splitGroups(setting))
}

func splitGroups(setting string) [][]string {
	var groups [][]string
	if strings.TrimSpace(setting) == "" {
		return groups
	}
	for _, rawGroup := range strings.Split(setting, groupSeparator) {
		var group []string
		for _, rawKey := range strings.Split(rawGroup, keySeparator) {
			key := NormalizeNamespace(rawKey)
			if key == "" || slices.Contains(group, key) {
				continue
			}
			group = append(group, key)
		}
		if len(group) > 0 {
			groups = append(groups, group)
		}
	}
	return groups
}

func joinGroups(groups [][]string) string {
	parts := make([]string, 0, len(groups))
	for _, group := range groups {
		parts = append(parts, strings.Join(group, keySeparator))
	}
	return strings.Join(parts, groupSeparator)
}
