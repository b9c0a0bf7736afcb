package models

import (
	"encoding/json"
	"maps"
	"strconv"
)

// Logical field names of an audit list row.
const (
	FieldTitle            = "Title"
	FieldArea             = "Area"
	FieldSubArea          = "Sub Area"
	Field5S               = "5S"
	Field5SCategory       = "5S Category"
	Field5SItem           = "5S Item"
	FieldAuditScore       = "Audit Score"
	FieldAuditStatus      = "Audit Status"
	FieldAuditRemark      = "Audit Remark"
	FieldAuditDate        = "Audit Date"
	FieldAuditor          = "Auditor"
	FieldAuditee          = "Auditee"
	FieldApprovers        = "Approvers"
	FieldFollowUpPlanDate = "Follow Up Plan Date"
	FieldFollowUpDate     = "Follow Up Date"
	FieldFollowUpScore    = "Follow Up Score"
	FieldFollowUpRemark   = "Follow Up Remark"
	FieldFollowUpStatus   = "Follow Up Status"
	FieldReferencePhoto   = "Reference Photo"
	FieldCreatedBy        = "Created By"
	FieldModifiedBy       = "Modified By"
)

// AuditFields is the fixed set of logical fields every row is resolved against.
var AuditFields = []string{
	FieldArea,
	FieldSubArea,
	Field5S,
	Field5SCategory,
	Field5SItem,
	FieldAuditScore,
	FieldAuditStatus,
	FieldAuditRemark,
	FieldAuditDate,
	FieldAuditor,
	FieldAuditee,
	FieldApprovers,
	FieldFollowUpPlanDate,
	FieldFollowUpDate,
	FieldFollowUpScore,
	FieldFollowUpRemark,
	FieldFollowUpStatus,
	FieldReferencePhoto,
	FieldCreatedBy,
	FieldModifiedBy,
}

// RawListItem is a list record as returned by the record source.
// Field keys are backend storage keys and may carry _xHHHH_ escapes.
type RawListItem struct {
	Fields map[string]any `json:"fields"`
	ID     string         `json:"id"`
}

// LogicalRow is a record resolved to the logical field set. It is immutable:
// the constructor copies its input and accessors never expose internal maps.
type LogicalRow struct {
	values map[string]any
	id     string
	title  string
}

// NewLogicalRow creates a row from resolved values.
func NewLogicalRow(id, title string, values map[string]any) LogicalRow {
	cp := make(map[string]any, len(values))
	maps.Copy(cp, values)
	return LogicalRow{id: id, title: title, values: cp}
}

// ID returns the stable record id.
func (r LogicalRow) ID() string { return r.id }

// Title returns the record title.
func (r LogicalRow) Title() string { return r.title }

// Get returns the value of a logical field, or "" when it was not resolved.
func (r LogicalRow) Get(field string) any {
	switch field {
	case FieldTitle:
		return r.title
	case "id":
		return r.id
	}
	if v, ok := r.values[field]; ok && v != nil {
		return v
	}
	return ""
}

// String returns the field value rendered as plain text.
func (r LogicalRow) String(field string) string {
	return ValueString(r.Get(field))
}

// Fields returns a copy of the resolved values.
func (r LogicalRow) Fields() map[string]any {
	cp := make(map[string]any, len(r.values))
	maps.Copy(cp, r.values)
	return cp
}

// ValueString renders a field value as text. Nil becomes "".
func ValueString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// ItemKind discriminates ListItem.
type ItemKind int

const (
	// KindRaw is a backend record that still needs normalization.
	KindRaw ItemKind = iota
	// KindRow is an already normalized logical row.
	KindRow
)

// String returns the display name of the kind.
func (k ItemKind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindRow:
		return "row"
	default:
		return "unknown"
	}
}

// ListItem is either a RawListItem or a LogicalRow.
type ListItem struct {
	raw *RawListItem
	row *LogicalRow
}

// RawItem wraps a backend record.
func RawItem(item RawListItem) ListItem {
	return ListItem{raw: &item}
}

// RowItem wraps an already normalized row.
func RowItem(row LogicalRow) ListItem {
	return ListItem{row: &row}
}

// Kind reports which variant the item holds.
func (i ListItem) Kind() ItemKind {
	if i.row != nil {
		return KindRow
	}
	return KindRaw
}

// Raw returns the raw variant.
func (i ListItem) Raw() (RawListItem, bool) {
	if i.raw == nil {
		return RawListItem{}, false
	}
	return *i.raw, true
}

// Row returns the row variant.
func (i ListItem) Row() (LogicalRow, bool) {
	if i.row == nil {
		return LogicalRow{}, false
	}
	return *i.row, true
}

// FieldMap maps a logical field name to backend storage keys that are tried
// directly when normalized matching fails. Several logical names may point at
// the same key.
type FieldMap map[string][]string

// Aliases returns the alias keys for a logical field.
func (m FieldMap) Aliases(field string) []string {
	if m == nil {
		return nil
	}
	return m[field]
}
