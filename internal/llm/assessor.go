package llm

import (
	"context"
	"fmt"

	"github.com/jonathan/cv-editor/internal/aijson"
	"github.com/jonathan/cv-editor/internal/schemas"
	"github.com/jonathan/cv-editor/internal/types"
)

// AssessmentError is a failed server-side assessment.
type AssessmentError struct {
	Message string
	Cause   error
}

func (e *AssessmentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AssessmentError) Unwrap() error {
	return e.Cause
}

// Assessor turns an assessment prompt into a validated AssessmentResult.
type Assessor struct {
	client Client
}

// NewAssessor creates an Assessor backed by client.
func NewAssessor(client Client) *Assessor {
	return &Assessor{client: client}
}

// Assess runs prompt on the tier's model. The response goes through the
// same extraction and schema checks as locally generated output.
func (a *Assessor) Assess(ctx context.Context, prompt string, tier ModelTier) (*types.AssessmentResult, error) {
	text, err := a.client.GenerateJSON(ctx, prompt, tier)
	if err != nil {
		return nil, &AssessmentError{Message: "model request failed", Cause: err}
	}
	parsed, err := aijson.Parse(text)
	if err != nil {
		return nil, &AssessmentError{Message: "model returned invalid JSON", Cause: err}
	}
	if err := schemas.Validate(schemas.AssessmentResult, parsed); err != nil {
		return nil, &AssessmentError{Message: "model returned an unexpected assessment shape", Cause: err}
	}
	return types.AssessmentResultFromMap(parsed), nil
}

// Model returns the model name used for tier.
func (a *Assessor) Model(tier ModelTier) string {
	return a.client.GetModel(tier)
}
