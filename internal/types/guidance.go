package types

// Guidance is the writing advice shown alongside a section.
type Guidance struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Tips           []string `json:"tips"`
	Examples       []string `json:"examples"`
	CommonMistakes []string `json:"common_mistakes"`
}

// GuidanceResponse is the response of GET /guidance.
type GuidanceResponse struct {
	Success  bool      `json:"success"`
	Guidance *Guidance `json:"guidance,omitempty"`
	Error    string    `json:"error,omitempty"`
}
