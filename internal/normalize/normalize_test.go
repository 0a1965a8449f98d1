package normalize

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeJSON mirrors how suggestions arrive: decoded from model JSON.
func decodeJSON(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestNormalize_PassThroughAndNil(t *testing.T) {
	assert.Equal(t, "already text", Normalize("already text", "skills"))
	assert.Equal(t, "", Normalize(nil, "work-experience"))
}

func TestNormalize_ProfessionalSummary(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"nested string", `{"professional_summary": "Seasoned leader."}`, "Seasoned leader."},
		{
			"nested object in fixed order",
			`{"professional_summary": {"target_roles": "CTO roles.", "past_15_years": "Built teams.", "text": "Engineer."}}`,
			"Engineer. Built teams. CTO roles.",
		},
		{"array", `["One.", "Two.", 3]`, "One. Two. 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(decodeJSON(t, tt.raw), "professional-summary"))
		})
	}

	raw := decodeJSON(t, `{"other": "x"}`)
	assert.Equal(t, prettyJSON(raw), Normalize(raw, "professional-summary"))
}

func TestNormalize_WorkExperience(t *testing.T) {
	raw := decodeJSON(t, `{
		"position": "Staff Engineer",
		"company_name": "Acme",
		"description": "Led the platform group.",
		"responsibility_categories": [
			{"name": "Leadership", "items": [{"content": "Managed 6 engineers"}, "Ran hiring"]},
			{"category": "Delivery", "items": [{"content": "Shipped billing v2"}]}
		]
	}`)

	expected := "Staff Engineer at Acme\n\n" +
		"Led the platform group.\n\n" +
		"Key responsibilities:\nLeadership:\n• Managed 6 engineers\n• Ran hiring\nDelivery:\n• Shipped billing v2"
	assert.Equal(t, expected, Normalize(raw, "work-experience"))
}

func TestNormalize_WorkExperienceOmitsMissingFields(t *testing.T) {
	raw := decodeJSON(t, `{"title": "Analyst", "description": "Reporting."}`)
	out := Normalize(raw, "work-experience")

	assert.Equal(t, "Analyst\n\nReporting.", out)
	assert.NotContains(t, out, " at ")
	assert.NotContains(t, out, "Key responsibilities")
}

func TestNormalize_QualificationAndInterests(t *testing.T) {
	q := decodeJSON(t, `{"level": "RQF Level 6", "description": "Equivalent to a UK bachelor's degree."}`)
	assert.Equal(t, "Level: RQF Level 6\n\nEquivalent to a UK bachelor's degree.", Normalize(q, "qualification-equivalence"))

	i := decodeJSON(t, `{"name": "Climbing", "description": "Competes regionally."}`)
	assert.Equal(t, "Name: Climbing\n\nCompetes regionally.", Normalize(i, "interests"))
}

func TestNormalize_Projects(t *testing.T) {
	raw := decodeJSON(t, `{"title": "CV Builder", "start_date": "2023-01", "description": "SaaS tool.", "url": "https://example.com"}`)
	assert.Equal(t, "CV Builder\n\n2023-01 - Present\n\nSaaS tool.\n\nURL: https://example.com", Normalize(raw, "projects"))

	noDates := decodeJSON(t, `{"title": "CV Builder"}`)
	assert.Equal(t, "CV Builder", Normalize(noDates, "projects"))
}

func TestNormalize_SkillsGrouping(t *testing.T) {
	raw := decodeJSON(t, `[
		{"name": "Go", "level": "Expert", "category": "Languages"},
		{"name": "SQL", "category": "Languages"},
		{"name": "Docker", "level": "Intermediate", "category": "Tools"},
		{"skill": "Mentoring", "proficiency": "Advanced"}
	]`)

	out := Normalize(raw, "skills")
	expected := "Languages\n  • Go (Expert)\n  • SQL\n\n" +
		"Other\n  • Mentoring (Advanced)\n\n" +
		"Tools\n  • Docker (Intermediate)"
	assert.Equal(t, expected, out)

	assert.Less(t, strings.Index(out, "Languages"), strings.Index(out, "Tools"))
	assert.Less(t, strings.Index(out, "Go (Expert)"), strings.Index(out, "SQL"))
	assert.Contains(t, out, "• SQL\n")
	assert.NotContains(t, out, "SQL (")
}

func TestNormalize_SkillsWrappedInObject(t *testing.T) {
	raw := decodeJSON(t, `{"skills": [{"name": "Go"}]}`)
	assert.Equal(t, "Other\n  • Go", Normalize(raw, "skills"))
}

func TestNormalize_FallbackIsPrettyJSON(t *testing.T) {
	raw := decodeJSON(t, `{"a": {"b": [1, {"c": "<html> & more"}]}, "z": null}`)
	expected := "{\n  \"a\": {\n    \"b\": [\n      1,\n      {\n        \"c\": \"<html> & more\"\n      }\n    ]\n  },\n  \"z\": null\n}"

	for _, section := range []string{"cover-letter", "", "jobs"} {
		assert.Equal(t, expected, Normalize(raw, section))
	}
}

func TestNormalize_MismatchedShapesFallBack(t *testing.T) {
	tests := []struct {
		section string
		raw     string
	}{
		{"skills", `{"name": "Go"}`},
		{"skills", `["Go", "SQL"]`},
		{"work-experience", `["not", "an", "object"]`},
		{"projects", `{"unrelated": true}`},
		{"interests", `42`},
	}
	for _, tt := range tests {
		t.Run(tt.section+" "+tt.raw, func(t *testing.T) {
			raw := decodeJSON(t, tt.raw)
			assert.Equal(t, prettyJSON(raw), Normalize(raw, tt.section))
		})
	}
}

func TestParseSection(t *testing.T) {
	assert.Equal(t, SectionSkills, ParseSection("skills"))
	assert.Equal(t, SectionOther, ParseSection("ai-tools"))
	assert.Equal(t, "work-experience", SectionWorkExperience.String())
	assert.Equal(t, "other", SectionOther.String())
}
