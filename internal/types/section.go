// Package types provides the wire types shared by the CV editor client and server.
package types

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Section ids addressable by the editor.
const (
	SectionProfessionalSummary      = "professional-summary"
	SectionWorkExperience           = "work-experience"
	SectionQualificationEquivalence = "qualification-equivalence"
	SectionInterests                = "interests"
	SectionProjects                 = "projects"
	SectionSkills                   = "skills"
	SectionJobs                     = "jobs"
	SectionAITools                  = "ai-tools"
	SectionCVVariants               = "cv-variants"
)

// EntryField returns the form field that scopes an assessment to one entry
// of sectionID, or "" when the section has no single-entry assessment.
func EntryField(sectionID string) string {
	switch sectionID {
	case SectionWorkExperience:
		return "experience_id"
	case SectionQualificationEquivalence:
		return "qualification_id"
	case SectionInterests:
		return "interest_id"
	case SectionProjects:
		return "project_id"
	}
	return ""
}

// SaveAction is the mutation requested by a section form.
type SaveAction string

const (
	SaveCreate SaveAction = "create"
	SaveAdd    SaveAction = "add"
	SaveUpdate SaveAction = "update"
	SaveDelete SaveAction = "delete"
)

// Reloads reports whether a successful save should reload the section
// in place rather than leave edit mode first.
func (a SaveAction) Reloads() bool {
	return a == SaveCreate || a == SaveAdd || a == SaveDelete
}

// reservedFormKeys are form fields that are not section content.
var reservedFormKeys = map[string]bool{
	"section_id": true,
	"action":     true,
	"entry_id":   true,
	"variant_id": true,
	"csrf_token": true,
}

// SaveSectionRequest is the decoded body of POST /save-section.
type SaveSectionRequest struct {
	SectionID string            `json:"section_id" validate:"required,max=64"`
	Action    SaveAction        `json:"action" validate:"required,oneof=create add update delete"`
	EntryID   string            `json:"entry_id,omitempty" validate:"required_if=Action update,required_if=Action delete,omitempty,uuid"`
	VariantID string            `json:"variant_id,omitempty" validate:"omitempty,uuid"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// SaveSectionRequestFromForm decodes a form-encoded save request. Every
// non-reserved field becomes section content.
func SaveSectionRequestFromForm(form url.Values) *SaveSectionRequest {
	req := &SaveSectionRequest{
		SectionID: strings.TrimSpace(form.Get("section_id")),
		Action:    SaveAction(strings.TrimSpace(form.Get("action"))),
		EntryID:   strings.TrimSpace(form.Get("entry_id")),
		VariantID: strings.TrimSpace(form.Get("variant_id")),
		Fields:    make(map[string]string),
	}
	for key, values := range form {
		if reservedFormKeys[key] || len(values) == 0 {
			continue
		}
		req.Fields[key] = values[0]
	}
	return req
}

// Validate validates the SaveSectionRequest using the validator. Content
// fields must be non-empty for create, add and update.
func (r *SaveSectionRequest) Validate() error {
	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.Action == SaveDelete {
		return nil
	}
	if len(r.Fields) == 0 {
		return fmt.Errorf("no content fields submitted")
	}
	for key, value := range r.Fields {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("field %q is required", key)
		}
	}
	return nil
}

// SaveResult is the response of POST /save-section.
type SaveResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	EntryID string `json:"entry_id,omitempty"`
}
