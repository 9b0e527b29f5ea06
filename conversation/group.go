package conversation

import (
	"strings"

	"clementus360/clinic-assistant/types"
)

// CategoryGroup is one named bucket of sessions.
type CategoryGroup struct {
	Name     string
	Sessions []types.Session
}

// Grouping partitions a session list by category.
type Grouping struct {
	Categories    []CategoryGroup // in order of first occurrence
	Uncategorized []types.Session
}

// GroupByCategory buckets sessions by category in one pass, ignoring
// surrounding whitespace in category names. Buckets appear in
// first-occurrence order and each keeps the relative order of its sessions,
// so the same input always yields the same grouping.
func GroupByCategory(sessions []types.Session) Grouping {
	var grouping Grouping
	index := make(map[string]int)

	for _, session := range sessions {
		if session.Uncategorized() {
			grouping.Uncategorized = append(grouping.Uncategorized, session)
			continue
		}
		name := strings.TrimSpace(session.Category)
		i, ok := index[name]
		if !ok {
			i = len(grouping.Categories)
			index[name] = i
			grouping.Categories = append(grouping.Categories, CategoryGroup{Name: name})
		}
		grouping.Categories[i].Sessions = append(grouping.Categories[i].Sessions, session)
	}

	return grouping
}

// Group returns the bucket for name, if present.
func (g Grouping) Group(name string) (CategoryGroup, bool) {
	for _, group := range g.Categories {
		if group.Name == name {
			return group, true
		}
	}
	return CategoryGroup{}, false
}
