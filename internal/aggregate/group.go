package aggregate

import (
	"cmp"
	"regexp"
	"slices"
	"strings"

	"github.com/j-veylop/audit-dashboard-tui/internal/models"
)

// DefaultTopN caps grouped output when no explicit limit is given.
const DefaultTopN = 8

// BlankLabel groups rows whose field is empty.
const BlankLabel = "(blank)"

var (
	closedRe = regexp.MustCompile(`(?i)closed|done`)
	openRe   = regexp.MustCompile(`(?i)open`)
)

// Bucket is one group of a grouped count.
type Bucket struct {
	Label string
	Count int
}

// CountOptions configures GroupCount. TopN of zero means DefaultTopN, a
// negative TopN disables the cap.
type CountOptions struct {
	Label func(string) string
	TopN  int
}

// Average is one group of a grouped average. Count is the number of rows that
// contributed a numeric value.
type Average struct {
	Label   string
	Average float64
	Count   int
}

// NormalizeStatus collapses status synonyms: anything mentioning closed or
// done becomes "Closed", anything mentioning open becomes "Open".
func NormalizeStatus(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return ""
	case closedRe.MatchString(s):
		return "Closed"
	case openRe.MatchString(s):
		return "Open"
	default:
		return s
	}
}

func labelOf(row models.LogicalRow, field string, fn func(string) string) string {
	label := strings.TrimSpace(row.String(field))
	if fn != nil {
		label = strings.TrimSpace(fn(label))
	}
	if label == "" {
		return BlankLabel
	}
	return label
}

func limit(topN int) int {
	if topN == 0 {
		return DefaultTopN
	}
	return topN
}

func capTo[T any](items []T, topN int) []T {
	if n := limit(topN); n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

// GroupCount counts rows per label of field, sorted by count descending and
// then label ascending.
func GroupCount(rows []models.LogicalRow, field string, opts CountOptions) []Bucket {
	counts := make(map[string]int)
	for _, row := range rows {
		counts[labelOf(row, field, opts.Label)]++
	}

	buckets := make([]Bucket, 0, len(counts))
	for label, n := range counts {
		buckets = append(buckets, Bucket{Label: label, Count: n})
	}
	slices.SortFunc(buckets, func(a, b Bucket) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return capTo(buckets, opts.TopN)
}

// GroupAverage averages valueField per label of groupField. Values that fail
// numeric coercion are left out of the average; groups without any numeric
// value are omitted. Output is sorted by average descending, then label.
func GroupAverage(rows []models.LogicalRow, groupField, valueField string, topN int) []Average {
	type acc struct {
		sum float64
		n   int
	}
	groups := make(map[string]*acc)
	for _, row := range rows {
		v, ok := ToNumber(row.Get(valueField))
		if !ok {
			continue
		}
		label := labelOf(row, groupField, nil)
		a := groups[label]
		if a == nil {
			a = &acc{}
			groups[label] = a
		}
		a.sum += v
		a.n++
	}

	out := make([]Average, 0, len(groups))
	for label, a := range groups {
		out = append(out, Average{Label: label, Average: a.sum / float64(a.n), Count: a.n})
	}
	slices.SortFunc(out, func(a, b Average) int {
		if c := cmp.Compare(b.Average, a.Average); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return capTo(out, topN)
}
