// Package specialty provides the static catalogue of portfolio specialties:
// entry types, capability taxonomies and the section templates used to judge
// whether a conversation contains enough material for an entry.
package specialty

import (
	"fmt"
	"slices"
)

// EntryType is a classifiable category of portfolio entry.
type EntryType struct {
	Code        string   `yaml:"code" json:"code"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Signals     []string `yaml:"signals,omitempty" json:"signals,omitempty"`
}

// Capability is an entry in a specialty's tagging taxonomy.
type Capability struct {
	Code        string `yaml:"code" json:"code"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// Section is one content block of a template.
type Section struct {
	ID          string `yaml:"id" json:"id"`
	Label       string `yaml:"label" json:"label"`
	Required    bool   `yaml:"required" json:"required"`
	Description string `yaml:"description" json:"description"`
	PromptHint  string `yaml:"prompt_hint" json:"promptHint"`

	// ExtractionQuestion is the default follow-up question for the section.
	// Sections without one are never assessed for coverage.
	ExtractionQuestion *string `yaml:"extraction_question,omitempty" json:"extractionQuestion,omitempty"`

	// Weight ranks missing sections when choosing follow-up questions.
	Weight float64 `yaml:"weight" json:"weight"`
}

// Assessable reports whether the section takes part in completeness checks.
func (s Section) Assessable() bool {
	return s.Required && s.ExtractionQuestion != nil && *s.ExtractionQuestion != ""
}

// WordCountRange bounds the length of the generated reflection.
type WordCountRange struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

// Template is the ordered section structure for one or more entry types.
type Template struct {
	ID             string         `yaml:"-" json:"id"`
	Name           string         `yaml:"name" json:"name"`
	WordCountRange WordCountRange `yaml:"word_count_range" json:"wordCountRange"`
	Sections       []Section      `yaml:"sections" json:"sections"`
}

// AssessableSections returns the required sections that carry an extraction
// question, in template order.
func (t *Template) AssessableSections() []Section {
	var out []Section
	for _, s := range t.Sections {
		if s.Assessable() {
			out = append(out, s)
		}
	}
	return out
}

// Section looks up a section by id.
func (t *Template) Section(id string) (Section, bool) {
	for _, s := range t.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

// Config is the full catalogue for one specialty.
type Config struct {
	Specialty   string `yaml:"specialty" json:"specialty"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	EntryTypes   []EntryType  `yaml:"entry_types" json:"entryTypes"`
	Capabilities []Capability `yaml:"capabilities" json:"capabilities"`

	Templates map[string]*Template `yaml:"templates" json:"templates"`

	// EntryTypeTemplates maps entry-type codes to template ids.
	EntryTypeTemplates map[string]string `yaml:"entry_type_templates" json:"entryTypeTemplates"`
}

// Template resolves the template for an entry type. A missing mapping is a
// catalogue defect and is reported as a ConfigurationError.
func (c *Config) Template(entryType string) (*Template, error) {
	id, ok := c.EntryTypeTemplates[entryType]
	if !ok {
		return nil, &ConfigurationError{
			Specialty: c.Specialty,
			EntryType: entryType,
			Reason:    "no template mapped for entry type",
		}
	}
	tmpl, ok := c.Templates[id]
	if !ok {
		return nil, &ConfigurationError{
			Specialty: c.Specialty,
			EntryType: entryType,
			Reason:    fmt.Sprintf("template %q not defined", id),
		}
	}
	return tmpl, nil
}

// IsEntryType reports whether code is a known entry type.
func (c *Config) IsEntryType(code string) bool {
	_, ok := c.EntryType(code)
	return ok
}

// EntryType looks up an entry type by code.
func (c *Config) EntryType(code string) (EntryType, bool) {
	i := slices.IndexFunc(c.EntryTypes, func(e EntryType) bool { return e.Code == code })
	if i < 0 {
		return EntryType{}, false
	}
	return c.EntryTypes[i], true
}

// Capability looks up a taxonomy entry by code.
func (c *Config) Capability(code string) (Capability, bool) {
	i := slices.IndexFunc(c.Capabilities, func(cap Capability) bool { return cap.Code == code })
	if i < 0 {
		return Capability{}, false
	}
	return c.Capabilities[i], true
}

// EntryTypeCodes returns the known entry-type codes in catalogue order.
func (c *Config) EntryTypeCodes() []string {
	codes := make([]string, len(c.EntryTypes))
	for i, e := range c.EntryTypes {
		codes[i] = e.Code
	}
	return codes
}

// Validate checks the catalogue for internal consistency.
func (c *Config) Validate() error {
	if c.Specialty == "" {
		return &ConfigurationError{Reason: "specialty code is required"}
	}
	if len(c.EntryTypes) == 0 {
		return &ConfigurationError{Specialty: c.Specialty, Reason: "no entry types defined"}
	}

	seen := make(map[string]bool, len(c.EntryTypes))
	for _, e := range c.EntryTypes {
		if e.Code == "" {
			return &ConfigurationError{Specialty: c.Specialty, Reason: "entry type without code"}
		}
		if seen[e.Code] {
			return &ConfigurationError{Specialty: c.Specialty, EntryType: e.Code, Reason: "duplicate entry type"}
		}
		seen[e.Code] = true
		if _, err := c.Template(e.Code); err != nil {
			return err
		}
	}

	caps := make(map[string]bool, len(c.Capabilities))
	for _, cap := range c.Capabilities {
		if cap.Code == "" || caps[cap.Code] {
			return &ConfigurationError{Specialty: c.Specialty, Reason: fmt.Sprintf("invalid or duplicate capability %q", cap.Code)}
		}
		caps[cap.Code] = true
	}

	for id, tmpl := range c.Templates {
		ids := make(map[string]bool, len(tmpl.Sections))
		for _, s := range tmpl.Sections {
			if s.ID == "" || ids[s.ID] {
				return &ConfigurationError{Specialty: c.Specialty, Reason: fmt.Sprintf("template %q: invalid or duplicate section %q", id, s.ID)}
			}
			if s.Weight < 0 {
				return &ConfigurationError{Specialty: c.Specialty, Reason: fmt.Sprintf("template %q: section %q has negative weight", id, s.ID)}
			}
			ids[s.ID] = true
		}
		if tmpl.WordCountRange.Max < tmpl.WordCountRange.Min {
			return &ConfigurationError{Specialty: c.Specialty, Reason: fmt.Sprintf("template %q: word count max below min", id)}
		}
	}
	return nil
}
