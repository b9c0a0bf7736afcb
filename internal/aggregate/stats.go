package aggregate

import (
	"cmp"
	"encoding/json"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/j-veylop/audit-dashboard-tui/internal/models"
)

// Tone is the display emphasis of a value.
type Tone string

// Tones.
const (
	ToneNeutral Tone = "neutral"
	ToneGood    Tone = "good"
	ToneWarn    Tone = "warn"
	ToneBad     Tone = "bad"
)

var isoDateRe = regexp.MustCompile(`(?i)^\d{4}-\d{2}-\d{2}(t\d{2}:\d{2}:\d{2}(\.\d+)?z?)?$`)

// Stats is the headline card of the dashboard.
type Stats struct {
	Total    int
	Open     int
	Closed   int
	AvgScore float64
	HasScore bool
}

// Summarize counts open and closed audits and averages the audit score over
// the rows that carry a numeric score.
func Summarize(rows []models.LogicalRow) Stats {
	var st Stats
	var sum float64
	var n int
	for _, row := range rows {
		st.Total++
		switch NormalizeStatus(row.String(models.FieldAuditStatus)) {
		case "":
		case "Closed":
			st.Closed++
		default:
			st.Open++
		}
		if v, ok := ToNumber(row.Get(models.FieldAuditScore)); ok {
			sum += v
			n++
		}
	}
	if n > 0 {
		st.AvgScore = sum / float64(n)
		st.HasScore = true
	}
	return st
}

// AvgScoreText renders the average score with two decimals, or "-".
func (s Stats) AvgScoreText() string {
	if !s.HasScore {
		return "-"
	}
	return strconv.FormatFloat(s.AvgScore, 'f', 2, 64)
}

// Distinct returns the sorted non-empty values of field.
func Distinct(rows []models.LogicalRow, field string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, row := range rows {
		v := strings.TrimSpace(row.String(field))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b string) int {
		if c := cmp.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return out
}

// ScoreTone grades an audit score: 4 and up is good, 3 and up is a warning.
func ScoreTone(score float64) Tone {
	switch {
	case score >= 4:
		return ToneGood
	case score >= 3:
		return ToneWarn
	default:
		return ToneBad
	}
}

// StatusTone grades an audit status.
func StatusTone(status string) Tone {
	switch NormalizeStatus(status) {
	case "":
		return ToneNeutral
	case "Closed":
		return ToneGood
	case "Open":
		return ToneBad
	default:
		return ToneWarn
	}
}

// FormatValue renders a field value for display in the local time zone.
func FormatValue(v any) string {
	return FormatValueIn(v, time.Local)
}

// FormatValueIn renders a field value for display. Empty values become "-",
// booleans Yes/No, ISO dates are shown as local dates.
func FormatValueIn(v any, loc *time.Location) string {
	switch t := v.(type) {
	case nil:
		return "-"
	case bool:
		if t {
			return "Yes"
		}
		return "No"
	case string:
		if t == "" {
			return "-"
		}
		if isoDateRe.MatchString(t) {
			if d, ok := ParseDate(t, loc); ok {
				if len(t) == len(time.DateOnly) {
					return d.Format("02 Jan 2006")
				}
				return d.Format("02 Jan 2006 15:04")
			}
		}
		return t
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return "-"
		}
		return string(b)
	default:
		if s := models.ValueString(t); s != "" {
			return s
		}
		return "-"
	}
}
