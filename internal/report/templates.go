package report

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var templatesYAML []byte

// SectionTemplate describes one section a setting type starts with
type SectionTemplate struct {
	ID       string `yaml:"id" json:"id"`
	Title    string `yaml:"title" json:"title"`
	Guidance string `yaml:"guidance" json:"guidance,omitempty"`
}

// SettingTemplate is the static template set for one setting type
type SettingTemplate struct {
	Type      SettingType       `yaml:"type" json:"type"`
	Label     string            `yaml:"label" json:"label"`
	Sections  []SectionTemplate `yaml:"sections" json:"sections"`
	Documents []string          `yaml:"documents" json:"documents"`
}

type templateFile struct {
	Settings []SettingTemplate `yaml:"settings"`
}

var (
	settingOrder []SettingType
	settingIndex map[SettingType]SettingTemplate
)

func init() {
	templates, err := parseTemplates(templatesYAML)
	if err != nil {
		panic(fmt.Sprintf("report: embedded templates: %v", err))
	}
	settingIndex = make(map[SettingType]SettingTemplate, len(templates))
	for _, t := range templates {
		settingOrder = append(settingOrder, t.Type)
		settingIndex[t.Type] = t
	}
}

func parseTemplates(raw []byte) ([]SettingTemplate, error) {
	var file templateFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, err
	}

	seen := make(map[SettingType]bool)
	for _, t := range file.Settings {
		if t.Type == "" {
			return nil, fmt.Errorf("setting without type")
		}
		if seen[t.Type] {
			return nil, fmt.Errorf("duplicate setting %q", t.Type)
		}
		seen[t.Type] = true

		ids := make(map[string]bool)
		for _, s := range t.Sections {
			if s.ID == "" || ids[s.ID] {
				return nil, fmt.Errorf("setting %q: empty or duplicate section id %q", t.Type, s.ID)
			}
			ids[s.ID] = true
		}
	}
	return file.Settings, nil
}

// SettingTypes lists the known setting types in display order
func SettingTypes() []SettingType {
	out := make([]SettingType, len(settingOrder))
	copy(out, settingOrder)
	return out
}

// Valid reports whether a template set exists for the setting type
func (t SettingType) Valid() bool {
	_, ok := settingIndex[t]
	return ok
}

// Label returns the human readable name of the setting type
func (t SettingType) Label() string {
	if tpl, ok := settingIndex[t]; ok {
		return tpl.Label
	}
	return string(t)
}

// TemplateFor returns the full template set for a setting type
func TemplateFor(t SettingType) (SettingTemplate, error) {
	tpl, ok := settingIndex[t]
	if !ok {
		return SettingTemplate{}, fmt.Errorf("%w: %q", ErrUnknownSettingType, t)
	}
	out := tpl
	out.Sections = SectionTemplates(t)
	out.Documents = DocumentTemplates(t)
	return out, nil
}

// SectionTemplates returns the ordered section templates for a setting type.
// Unknown types yield nil.
func SectionTemplates(t SettingType) []SectionTemplate {
	tpl, ok := settingIndex[t]
	if !ok {
		return nil
	}
	out := make([]SectionTemplate, len(tpl.Sections))
	copy(out, tpl.Sections)
	return out
}

// DocumentTemplates returns the document checklist names for a setting type.
// Unknown types yield nil.
func DocumentTemplates(t SettingType) []string {
	tpl, ok := settingIndex[t]
	if !ok {
		return nil
	}
	out := make([]string, len(tpl.Documents))
	copy(out, tpl.Documents)
	return out
}
