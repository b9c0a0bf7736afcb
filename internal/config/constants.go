package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/j-veylop/audit-dashboard-tui/internal/models"
)

// Record list the dashboard reads when no other list is configured.
const (
	DefaultSiteHostname = "senzofab-my.sharepoint.com"
	DefaultSitePath     = "personal/dashboard_monitoring_senzo_id"
	DefaultListID       = "61DB5FBD-355D-4C4F-B38D-8A45CD546A60"
)

// defaultFieldMap maps logical fields to storage keys of the default list.
// Audit Score and Audit Remark both point at field_7 as provided by the list
// owner; a field map file can correct this.
var defaultFieldMap = map[string]string{
	models.FieldSubArea:          "field_1",
	models.Field5S:               "field_2",
	models.FieldAuditScore:       "field_7",
	models.FieldAuditRemark:      "field_7",
	models.FieldFollowUpPlanDate: "Follow_x0020_Up_x0020_Plan_x0020",
	models.FieldFollowUpDate:     "field_10",
	models.FieldFollowUpScore:    "field_12",
	models.FieldFollowUpRemark:   "field_13",
	models.FieldReferencePhoto:   "Reference_x0020_Photo",
	models.FieldAuditDate:        "field_17",
	models.FieldCreatedBy:        "Author",
	models.FieldModifiedBy:       "Editor",
}

// DefaultFieldMap returns a fresh copy of the built-in alias table.
func DefaultFieldMap() models.FieldMap {
	out := make(models.FieldMap, len(defaultFieldMap))
	for field, key := range defaultFieldMap {
		out[field] = []string{key}
	}
	return out
}

// ParseFieldMap decodes a JSON alias table. Each value is a storage key or a
// list of keys tried in order:
//
//	{"Sub Area": "field_1", "Audit Score": ["field_7", "Score"]}
func ParseFieldMap(data []byte) (models.FieldMap, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse field map: %w", err)
	}

	out := make(models.FieldMap, len(raw))
	for field, msg := range raw {
		var single string
		if err := json.Unmarshal(msg, &single); err == nil {
			if single = strings.TrimSpace(single); single != "" {
				out[field] = []string{single}
			}
			continue
		}
		var list []string
		if err := json.Unmarshal(msg, &list); err != nil {
			return nil, fmt.Errorf("field map entry %q must be a string or a list of strings", field)
		}
		keys := slices.DeleteFunc(list, func(k string) bool { return strings.TrimSpace(k) == "" })
		if len(keys) > 0 {
			out[field] = keys
		}
	}
	return out, nil
}

// LoadFieldMap reads a field map file and lays it over the defaults. Entries
// in the file replace the default aliases of the same field.
func LoadFieldMap(path string) (models.FieldMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	override, err := ParseFieldMap(data)
	if err != nil {
		return nil, err
	}
	merged := DefaultFieldMap()
	maps.Copy(merged, override)
	return merged, nil
}

// MarshalFieldMap encodes a field map in the file format, single keys as
// plain strings.
func MarshalFieldMap(m models.FieldMap) ([]byte, error) {
	out := make(map[string]any, len(m))
	for field, keys := range m {
		if len(keys) == 1 {
			out[field] = keys[0]
		} else {
			out[field] = keys
		}
	}
	return json.MarshalIndent(out, "", "  ")
}
