package aggregate

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	wholeNumberRe    = regexp.MustCompile(`^[+-]?\d+(?:[.,]\d+)*$`)
	embeddedNumberRe = regexp.MustCompile(`-?\d+(?:[.,]\d+)*`)
)

// ToNumber coerces a field value to a float. It accepts numbers, numeric
// strings in dot or comma decimal notation ("4,5", "1.234,56", "1,234.56"),
// free text with an embedded number ("Score: 3", first match wins), and
// slices or objects wrapping a scalar under "value".
func ToNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(t)
	case float32:
		return finite(float64(t))
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return finite(f)
	case string:
		return parseNumber(t)
	case []any:
		if len(t) == 0 {
			return 0, false
		}
		return ToNumber(t[0])
	case map[string]any:
		inner, ok := t["value"]
		if !ok {
			return 0, false
		}
		return ToNumber(inner)
	default:
		return 0, false
	}
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if !wholeNumberRe.MatchString(s) {
		s = embeddedNumberRe.FindString(s)
		if s == "" {
			return 0, false
		}
	}
	f, err := strconv.ParseFloat(canonicalDecimal(s), 64)
	if err != nil {
		return 0, false
	}
	return finite(f)
}

// canonicalDecimal rewrites a locale formatted number to Go syntax. When both
// separators occur the last one is the decimal mark. A lone comma is a decimal
// mark, repeated commas or dots are thousands separators.
func canonicalDecimal(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			return strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 {
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	default:
		return s
	}
}
