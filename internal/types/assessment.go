package types

// AssessmentResult is the critique of one section or entry.
type AssessmentResult struct {
	Strengths            []string `json:"strengths"`
	Weaknesses           []string `json:"weaknesses"`
	Recommendations      []string `json:"recommendations"`
	SuggestedReplacement any      `json:"suggested_replacement,omitempty"`
}

// AssessmentResultFromMap converts a parsed model response. Both snake_case
// and camelCase replacement keys are accepted; non-string list items are skipped.
func AssessmentResultFromMap(m map[string]any) *AssessmentResult {
	r := &AssessmentResult{
		Strengths:       stringList(m["strengths"]),
		Weaknesses:      stringList(m["weaknesses"]),
		Recommendations: stringList(m["recommendations"]),
	}
	if v, ok := m["suggested_replacement"]; ok && v != nil {
		r.SuggestedReplacement = v
	} else if v, ok := m["suggestedReplacement"]; ok && v != nil {
		r.SuggestedReplacement = v
	}
	return r
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// AssessResponse is the response of POST /assess-section. Exactly one of
// Assessment or the browser execution fields is set on success.
type AssessResponse struct {
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
	Assessment *AssessmentResult `json:"assessment,omitempty"`

	BrowserExecution bool   `json:"browser_execution,omitempty"`
	ModelType        string `json:"model_type,omitempty"`
	Model            string `json:"model,omitempty"`
	Prompt           string `json:"prompt,omitempty"`
}
