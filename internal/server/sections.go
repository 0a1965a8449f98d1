package server

import (
	"sort"
	"strings"

	"github.com/jonathan/cv-editor/internal/db"
	"github.com/jonathan/cv-editor/internal/editor"
	"github.com/jonathan/cv-editor/internal/types"
)

// fieldDef describes one content field of a section form.
type fieldDef struct {
	Name      string
	Label     string
	Multiline bool
	Required  bool
}

// sectionDef describes how a section is edited and assessed.
type sectionDef struct {
	ID     string
	Fields []fieldDef
	// Singleton sections hold at most one entry.
	Singleton bool
	// Kind selects a client initializer; empty for generic forms.
	Kind       string
	Assessable bool
	Reorder    bool
	// Panel sections have no entries of their own.
	Panel bool
}

var sectionDefs = map[string]*sectionDef{
	types.SectionProfessionalSummary: {
		ID:         types.SectionProfessionalSummary,
		Singleton:  true,
		Assessable: true,
		Fields: []fieldDef{
			{Name: "professional_summary", Label: "Summary", Multiline: true, Required: true},
		},
	},
	types.SectionWorkExperience: {
		ID:         types.SectionWorkExperience,
		Assessable: true,
		Reorder:    true,
		Fields: []fieldDef{
			{Name: "title", Label: "Job title", Required: true},
			{Name: "company", Label: "Company", Required: true},
			{Name: "start_date", Label: "Start date", Required: true},
			{Name: "end_date", Label: "End date"},
			{Name: "responsibilities", Label: "Responsibilities (one per line)", Multiline: true},
		},
	},
	types.SectionQualificationEquivalence: {
		ID:         types.SectionQualificationEquivalence,
		Assessable: true,
		Reorder:    true,
		Fields: []fieldDef{
			{Name: "qualification", Label: "Qualification", Required: true},
			{Name: "level", Label: "Equivalent level", Required: true},
			{Name: "description", Label: "Description", Multiline: true},
		},
	},
	types.SectionInterests: {
		ID:         types.SectionInterests,
		Assessable: true,
		Reorder:    true,
		Fields: []fieldDef{
			{Name: "name", Label: "Interest", Required: true},
			{Name: "description", Label: "Description", Multiline: true},
		},
	},
	types.SectionProjects: {
		ID:         types.SectionProjects,
		Assessable: true,
		Reorder:    true,
		Fields: []fieldDef{
			{Name: "title", Label: "Title", Required: true},
			{Name: "description", Label: "Description", Multiline: true, Required: true},
			{Name: "technologies", Label: "Technologies"},
			{Name: "url", Label: "Link"},
		},
	},
	types.SectionSkills: {
		ID:         types.SectionSkills,
		Assessable: true,
		Reorder:    true,
		Fields: []fieldDef{
			{Name: "name", Label: "Skill", Required: true},
			{Name: "level", Label: "Level"},
			{Name: "category", Label: "Category"},
		},
	},
	types.SectionJobs: {
		ID:   types.SectionJobs,
		Kind: editor.KindJobs,
		Fields: []fieldDef{
			{Name: "title", Label: "Job title", Required: true},
			{Name: "company", Label: "Company", Required: true},
			{Name: "url", Label: "Job posting link"},
			{Name: "description", Label: "Job description", Multiline: true},
		},
	},
	types.SectionCVVariants: {
		ID:   types.SectionCVVariants,
		Kind: editor.KindCVVariants,
		Fields: []fieldDef{
			{Name: "name", Label: "Variant name", Required: true},
			{Name: "job_id", Label: "Job"},
		},
	},
	types.SectionAITools: {
		ID:    types.SectionAITools,
		Kind:  editor.KindAITools,
		Panel: true,
	},
}

func lookupSection(sectionID string) (*sectionDef, error) {
	def, ok := sectionDefs[sectionID]
	if !ok {
		return nil, &ErrUnknownSection{SectionID: sectionID}
	}
	return def, nil
}

func assessableSections() []string {
	var ids []string
	for id, def := range sectionDefs {
		if def.Assessable {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (d *sectionDef) field(name string) (fieldDef, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return fieldDef{}, false
}

// cleanFields drops empty optional fields and rejects fields the section
// does not define.
func (d *sectionDef) cleanFields(fields map[string]string) error {
	for name, value := range fields {
		f, ok := d.field(name)
		if !ok {
			return &ErrValidation{Field: name, Message: "unknown field"}
		}
		if !f.Required && strings.TrimSpace(value) == "" {
			delete(fields, name)
		}
	}
	return nil
}

// missingRequired returns the first required field absent from fields.
func (d *sectionDef) missingRequired(fields map[string]string) (fieldDef, bool) {
	for _, f := range d.Fields {
		if f.Required && strings.TrimSpace(fields[f.Name]) == "" {
			return f, true
		}
	}
	return fieldDef{}, false
}

// heading is the display title of an entry.
func (d *sectionDef) heading(e *db.Entry) string {
	for _, name := range []string{"title", "name", "qualification"} {
		if v := e.Field(name); v != "" {
			if company := e.Field("company"); company != "" && name == "title" {
				return v + " at " + company
			}
			return v
		}
	}
	if len(d.Fields) > 0 {
		return truncate(e.Field(d.Fields[0].Name), 80)
	}
	return ""
}

// contentText renders entries as labelled plain text for an assessment prompt.
func (d *sectionDef) contentText(entries []db.Entry) string {
	blocks := make([]string, 0, len(entries))
	for i := range entries {
		var lines []string
		for _, f := range d.Fields {
			if v := strings.TrimSpace(entries[i].Field(f.Name)); v != "" {
				lines = append(lines, f.Label+": "+v)
			}
		}
		if len(lines) > 0 {
			blocks = append(blocks, strings.Join(lines, "\n"))
		}
	}
	return strings.Join(blocks, "\n\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
