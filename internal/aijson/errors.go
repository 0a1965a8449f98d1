// Package aijson recovers a single JSON object from raw language model output.
package aijson

import "fmt"

// UserMessage is the text shown to users when no JSON could be recovered.
const UserMessage = "AI returned invalid JSON. Please try again."

// InvalidOutputError reports that the model output held no parseable JSON object.
type InvalidOutputError struct {
	Message string
	// Offset is the parser's failure offset into Candidate, or -1 when unknown.
	Offset    int64
	Context   string
	Candidate string
	Cause     error
}

func (e *InvalidOutputError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InvalidOutputError) Unwrap() error {
	return e.Cause
}
