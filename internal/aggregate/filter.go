// Package aggregate computes the dashboard view models over logical rows.
//
// Every function is a pure transform of its inputs: rows, filter criteria and,
// where calendar days matter, the current time. Nothing here is persisted.
package aggregate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/j-veylop/audit-dashboard-tui/internal/models"
)

// MaxEqualityFilters is the number of categorical filters a Filter may carry.
const MaxEqualityFilters = 3

// ErrTooManyFilters is returned by Filter.Validate.
var ErrTooManyFilters = errors.New("too many equality filters")

// SearchFields are the fields matched by free-text search.
var SearchFields = []string{
	models.FieldTitle,
	models.FieldArea,
	models.FieldSubArea,
	models.Field5S,
	models.Field5SCategory,
	models.Field5SItem,
	models.FieldAuditor,
	models.FieldAuditee,
	models.FieldApprovers,
}

// Filter selects rows by a case-insensitive substring over SearchFields and by
// case-insensitive equality on categorical fields. Empty criteria match all.
type Filter struct {
	Equals map[string]string
	Search string
}

// Validate checks the number of active equality filters.
func (f Filter) Validate() error {
	if n := len(f.active()); n > MaxEqualityFilters {
		return fmt.Errorf("%w: %d > %d", ErrTooManyFilters, n, MaxEqualityFilters)
	}
	return nil
}

// IsZero reports whether the filter matches every row.
func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.Search) == "" && len(f.active()) == 0
}

func (f Filter) active() map[string]string {
	out := make(map[string]string, len(f.Equals))
	for field, want := range f.Equals {
		if want = strings.TrimSpace(want); want != "" {
			out[field] = want
		}
	}
	return out
}

// Match reports whether a row satisfies the filter.
func (f Filter) Match(row models.LogicalRow) bool {
	for field, want := range f.Equals {
		want = strings.TrimSpace(want)
		if want == "" {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(row.String(field)), want) {
			return false
		}
	}

	needle := strings.ToLower(strings.TrimSpace(f.Search))
	if needle == "" {
		return true
	}
	return strings.Contains(haystack(row), needle)
}

func haystack(row models.LogicalRow) string {
	parts := make([]string, 0, len(SearchFields))
	for _, field := range SearchFields {
		if s := row.String(field); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// Apply returns the rows matching the filter, in input order.
func Apply(rows []models.LogicalRow, f Filter) []models.LogicalRow {
	if f.IsZero() {
		out := make([]models.LogicalRow, len(rows))
		copy(out, rows)
		return out
	}
	out := make([]models.LogicalRow, 0, len(rows))
	for _, row := range rows {
		if f.Match(row) {
			out = append(out, row)
		}
	}
	return out
}
