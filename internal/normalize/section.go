// Package normalize turns AI suggested replacements of any shape into display text.
package normalize

// Section identifies which CV section a suggestion belongs to.
// The zero value is SectionOther.
type Section int

const (
	SectionOther Section = iota
	SectionProfessionalSummary
	SectionWorkExperience
	SectionQualificationEquivalence
	SectionInterests
	SectionProjects
	SectionSkills
)

var sectionIDs = map[string]Section{
	"professional-summary":      SectionProfessionalSummary,
	"work-experience":           SectionWorkExperience,
	"qualification-equivalence": SectionQualificationEquivalence,
	"interests":                 SectionInterests,
	"projects":                  SectionProjects,
	"skills":                    SectionSkills,
}

// ParseSection maps a section id to its Section; unknown ids map to SectionOther.
func ParseSection(sectionID string) Section {
	return sectionIDs[sectionID]
}

func (s Section) String() string {
	for id, sec := range sectionIDs {
		if sec == s {
			return id
		}
	}
	return "other"
}
