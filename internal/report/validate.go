package report

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// ValidationError lists the fields that block a manual save or submit
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "report incomplete: " + strings.Join(parts, "; ")
}

// Unlocked reports whether enough has been chosen for the form to be edited
// and autosaved: both a setting type and a form type.
func (r *ReportData) Unlocked() bool {
	return r.SettingType != "" && r.FormType != ""
}

// Validate checks the required selections. The field messages are also
// kept on the report so the UI can show them inline.
func (r *ReportData) Validate() error {
	fields := make(map[string]string)

	if r.HomeID == "" {
		fields["homeId"] = "Select a home"
	}
	if r.VisitDate == "" {
		fields["visitDate"] = "Enter the visit date"
	}
	if r.SettingType == "" {
		fields["settingType"] = "Select a setting type"
	} else if !r.SettingType.Valid() {
		fields["settingType"] = "Unknown setting type"
	}
	if r.FormType == "" {
		fields["formType"] = "Select a form type"
	} else if !r.FormType.Valid() {
		fields["formType"] = "Unknown form type"
	}

	if len(fields) == 0 {
		r.ValidationErrors = nil
		return nil
	}
	r.ValidationErrors = fields
	return &ValidationError{Fields: fields}
}

// ChecklistCompletion returns the percentage of checked documents, rounded.
// An empty checklist is 0%.
func (r *ReportData) ChecklistCompletion() int {
	total := len(r.DocumentChecklist)
	if total == 0 {
		return 0
	}
	checked := 0
	for _, d := range r.DocumentChecklist {
		if d.Checked {
			checked++
		}
	}
	return int(math.Round(float64(checked) / float64(total) * 100))
}

// ChecklistCounts returns checked and total document counts
func (r *ReportData) ChecklistCounts() (checked, total int) {
	for _, d := range r.DocumentChecklist {
		if d.Checked {
			checked++
		}
	}
	return checked, len(r.DocumentChecklist)
}
