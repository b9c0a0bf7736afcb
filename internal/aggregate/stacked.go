package aggregate

import (
	"cmp"
	"slices"

	"github.com/j-veylop/audit-dashboard-tui/internal/models"
)

// Segment is one part of a stacked group.
type Segment struct {
	Label string
	Count int
}

// Stack is a top-level group broken down into segments.
type Stack struct {
	Label    string
	Segments []Segment
	Total    int
}

// StackOptions configures Stacked. Segments named in Priority sort first, in
// that order; the rest follow by count and label.
type StackOptions struct {
	GroupLabel   func(string) string
	SegmentLabel func(string) string
	Priority     []string
	TopN         int
}

// Stacked groups rows by groupField and, within each group, by segmentField.
// Groups are sorted by total descending, then label, and capped to TopN.
func Stacked(rows []models.LogicalRow, groupField, segmentField string, opts StackOptions) []Stack {
	groups := make(map[string]map[string]int)
	for _, row := range rows {
		g := labelOf(row, groupField, opts.GroupLabel)
		s := labelOf(row, segmentField, opts.SegmentLabel)
		if groups[g] == nil {
			groups[g] = make(map[string]int)
		}
		groups[g][s]++
	}

	rank := make(map[string]int, len(opts.Priority))
	for i, p := range opts.Priority {
		if _, dup := rank[p]; !dup {
			rank[p] = i
		}
	}
	rankOf := func(label string) int {
		if r, ok := rank[label]; ok {
			return r
		}
		return len(opts.Priority)
	}

	stacks := make([]Stack, 0, len(groups))
	for label, segs := range groups {
		st := Stack{Label: label, Segments: make([]Segment, 0, len(segs))}
		for s, n := range segs {
			st.Segments = append(st.Segments, Segment{Label: s, Count: n})
			st.Total += n
		}
		slices.SortFunc(st.Segments, func(a, b Segment) int {
			if c := cmp.Compare(rankOf(a.Label), rankOf(b.Label)); c != 0 {
				return c
			}
			if c := cmp.Compare(b.Count, a.Count); c != 0 {
				return c
			}
			return cmp.Compare(a.Label, b.Label)
		})
		stacks = append(stacks, st)
	}

	slices.SortFunc(stacks, func(a, b Stack) int {
		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return capTo(stacks, opts.TopN)
}
