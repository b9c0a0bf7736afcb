package aggregate

import (
	"strings"
	"time"

	"github.com/j-veylop/audit-dashboard-tui/internal/models"
)

// TrendDays is the length of every trend series.
const TrendDays = 14

// Direction anchors a trend series at today.
type Direction int

const (
	// Backward ends the series at today (history).
	Backward Direction = iota
	// Forward starts the series at today (due dates).
	Forward
)

// DayCount is one day of a trend series. Date is local midnight.
type DayCount struct {
	Date  time.Time
	Count int
}

var dateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02/01/2006",
}

// ParseDate reads a date-like value in loc. Date-only strings are taken as
// local calendar dates, never as UTC midnight. Timestamps with a zone are
// converted into loc.
func ParseDate(v any, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.In(loc), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		if len(s) == len(time.DateOnly) {
			if d, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
				return d, true
			}
		}
		if d, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return d.In(loc), true
		}
		for _, layout := range dateLayouts {
			if d, err := time.ParseInLocation(layout, s, loc); err == nil {
				return d, true
			}
		}
	}
	return time.Time{}, false
}

// Day truncates t to midnight of its calendar day in t's location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Trend14 counts rows per local calendar day of field over a dense 14 day
// window anchored at now. Days without rows are zero.
func Trend14(rows []models.LogicalRow, field string, now time.Time, dir Direction) []DayCount {
	today := Day(now)
	start := today
	if dir == Backward {
		start = today.AddDate(0, 0, -(TrendDays - 1))
	}

	series := make([]DayCount, TrendDays)
	index := make(map[string]int, TrendDays)
	for i := range series {
		d := start.AddDate(0, 0, i)
		series[i].Date = d
		index[d.Format(time.DateOnly)] = i
	}

	for _, row := range rows {
		d, ok := ParseDate(row.Get(field), now.Location())
		if !ok {
			continue
		}
		if i, ok := index[d.Format(time.DateOnly)]; ok {
			series[i].Count++
		}
	}
	return series
}

// Counts returns the bare counts of a series, oldest first.
func Counts(series []DayCount) []float64 {
	out := make([]float64, len(series))
	for i, d := range series {
		out[i] = float64(d.Count)
	}
	return out
}
