package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Metadata holds the branch-dependent descriptive fields of an item.
type Metadata map[string]any

// String returns the trimmed textual value of key, or "" when absent.
func (m Metadata) String(key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, strings.TrimSpace(fmt.Sprint(p)))
		}
		return strings.Join(parts, ", ")
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// Has reports whether key carries a non-empty value.
func (m Metadata) Has(key string) bool {
	return m.String(key) != ""
}

// Year returns the numeric year field, or 0 when absent or malformed.
func (m Metadata) Year() int {
	y, err := strconv.Atoi(m.String("year"))
	if err != nil {
		return 0
	}
	return y
}

// Title returns item_name, falling back to thesis_title.
func (m Metadata) Title() string {
	if name := m.String("item_name"); name != "" {
		return name
	}
	return m.String("thesis_title")
}

// FieldIssue names one metadata field that failed validation.
type FieldIssue struct {
	Field   string
	Message string
}

var yearPattern = regexp.MustCompile(`^\d{4}$`)

// ValidateMetadata checks md against the required fields of branch. With
// strict set, the extended equipment fields of ECEIS are enforced too.
func ValidateMetadata(branch BranchCode, md Metadata, strict bool) []FieldIssue {
	if md == nil {
		return []FieldIssue{{Field: "metadata", Message: "metadata is required"}}
	}

	var issues []FieldIssue
	require := func(fields ...string) {
		for _, f := range fields {
			if !md.Has(f) {
				issues = append(issues, FieldIssue{Field: f, Message: fmt.Sprintf("%s requires %s", branch, f)})
			}
		}
	}

	switch branch {
	case BranchACEIS:
		require("item_name", "item_type")
	case BranchECEIS:
		require("item_name", "item_type")
		if strict {
			require("serial_number", "analog_digital", "condition")
			if md.Has("analog_digital") {
				switch strings.ToLower(md.String("analog_digital")) {
				case "analog", "digital":
				default:
					issues = append(issues, FieldIssue{Field: "analog_digital", Message: "analog_digital must be analog or digital"})
				}
			}
		}
	case BranchCPEIS:
		if md.Title() == "" {
			issues = append(issues, FieldIssue{Field: "item_name", Message: "CPEIS requires item_name or thesis_title"})
		}
		require("authors", "year")
		if md.Has("year") && !yearPattern.MatchString(md.String("year")) {
			issues = append(issues, FieldIssue{Field: "year", Message: "year must be a 4-digit year"})
		}
	default:
		issues = append(issues, FieldIssue{Field: "branch", Message: "unsupported branch"})
	}
	return issues
}
