package db

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entry is one item of a CV section. Content holds the section-specific
// fields, e.g. title and company for work experience.
type Entry struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"user_id"`
	SectionID string            `json:"section_id"`
	VariantID *uuid.UUID        `json:"variant_id,omitempty"`
	Position  int               `json:"position"`
	Content   map[string]string `json:"content"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Field returns a content field or "".
func (e *Entry) Field(name string) string {
	if e.Content == nil {
		return ""
	}
	return e.Content[name]
}

func encodeContent(content map[string]string) ([]byte, error) {
	if content == nil {
		content = map[string]string{}
	}
	b, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entry content: %w", err)
	}
	return b, nil
}

func decodeContent(raw []byte) (map[string]string, error) {
	content := map[string]string{}
	if len(raw) == 0 {
		return content, nil
	}
	if err := json.Unmarshal(raw, &content); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry content: %w", err)
	}
	return content, nil
}
