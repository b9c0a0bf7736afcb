// Package normalize translates backend list records into logical rows.
//
// Backend storage keys are escaped (a space becomes _x0020_), auto-suffixed when
// a list has duplicate column names (field_1, Status0, Status1) and differ in
// case and punctuation from the display names users know. Resolution tries, in
// order: normalized-name match, explicit aliases, numeric-suffix match, exact key.
package normalize

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/j-veylop/audit-dashboard-tui/internal/models"
)

var escapeRe = regexp.MustCompile(`_x([0-9A-Fa-f]{4})_`)

// DecodeKey replaces every _xHHHH_ sequence with the character it encodes.
func DecodeKey(key string) string {
	if !strings.Contains(key, "_x") {
		return key
	}
	return escapeRe.ReplaceAllStringFunc(key, func(m string) string {
		cp, err := strconv.ParseUint(m[2:6], 16, 32)
		if err != nil {
			return m
		}
		return string(rune(cp))
	})
}

// NormalizeKey decodes a key, lowercases it and drops everything that is not
// an ASCII letter or digit.
func NormalizeKey(key string) string {
	decoded := strings.ToLower(DecodeKey(key))
	var b strings.Builder
	b.Grow(len(decoded))
	for _, r := range decoded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsMeaningful reports whether a value carries data: not nil, and not blank
// when it is a string.
func IsMeaningful(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	default:
		return true
	}
}

// Resolve returns the value stored under the logical name, or "" if no key
// matches. It never panics, whatever the input.
func Resolve(fields map[string]any, name string, aliases []string) any {
	if len(fields) == 0 {
		return ""
	}
	return newKeyIndex(fields).resolve(fields, name, aliases)
}

// keyIndex holds the storage keys of one record in a stable order together
// with their normalized forms.
type keyIndex struct {
	keys []string
	norm []string
}

func newKeyIndex(fields map[string]any) keyIndex {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	norm := make([]string, len(keys))
	for i, k := range keys {
		norm[i] = NormalizeKey(k)
	}
	return keyIndex{keys: keys, norm: norm}
}

func (ix keyIndex) resolve(fields map[string]any, name string, aliases []string) any {
	desired := NormalizeKey(name)

	for i, n := range ix.norm {
		if n == desired {
			return valueOrEmpty(fields[ix.keys[i]])
		}
	}

	for _, alias := range aliases {
		if v, ok := fields[alias]; ok && IsMeaningful(v) {
			return v
		}
	}

	if desired != "" {
		if key, ok := ix.suffixMatch(desired); ok {
			return valueOrEmpty(fields[key])
		}
	}

	if v, ok := fields[name]; ok {
		return valueOrEmpty(v)
	}
	return ""
}

// suffixMatch finds the key whose normalized form is desired followed only by
// digits, preferring the shortest suffix and then the smallest number.
func (ix keyIndex) suffixMatch(desired string) (string, bool) {
	best := -1
	bestSuffix := ""
	for i, n := range ix.norm {
		if len(n) <= len(desired) || !strings.HasPrefix(n, desired) {
			continue
		}
		suffix := n[len(desired):]
		if !isDigits(suffix) {
			continue
		}
		if best == -1 || len(suffix) < len(bestSuffix) ||
			(len(suffix) == len(bestSuffix) && suffix < bestSuffix) {
			best = i
			bestSuffix = suffix
		}
	}
	if best == -1 {
		return "", false
	}
	return ix.keys[best], true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func valueOrEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}

// MapItem resolves one raw record to a logical row.
func MapItem(item models.RawListItem, fieldMap models.FieldMap) models.LogicalRow {
	if len(item.Fields) == 0 {
		return models.NewLogicalRow(item.ID, "", nil)
	}

	ix := newKeyIndex(item.Fields)
	values := make(map[string]any, len(models.AuditFields))
	for _, f := range models.AuditFields {
		values[f] = ix.resolve(item.Fields, f, fieldMap.Aliases(f))
	}
	title := models.ValueString(ix.resolve(item.Fields, models.FieldTitle, fieldMap.Aliases(models.FieldTitle)))

	return models.NewLogicalRow(item.ID, title, values)
}

// MapItems translates ingested items. Raw records are resolved through the
// field map, rows that are already logical pass through unchanged.
func MapItems(items []models.ListItem, fieldMap models.FieldMap) []models.LogicalRow {
	rows := make([]models.LogicalRow, 0, len(items))
	for _, item := range items {
		switch item.Kind() {
		case models.KindRow:
			row, _ := item.Row()
			rows = append(rows, row)
		case models.KindRaw:
			raw, _ := item.Raw()
			rows = append(rows, MapItem(raw, fieldMap))
		}
	}
	return rows
}

// MapRaw is MapItems for a slice of backend records.
func MapRaw(items []models.RawListItem, fieldMap models.FieldMap) []models.LogicalRow {
	wrapped := make([]models.ListItem, len(items))
	for i, item := range items {
		wrapped[i] = models.RawItem(item)
	}
	return MapItems(wrapped, fieldMap)
}
