// Package prompts loads the embedded LLM prompt templates used for section
// assessment.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

//go:embed *.json
var promptFiles embed.FS

// AssessmentFile holds the assessment templates.
const AssessmentFile = "assessment.json"

var (
	cache   = make(map[string]map[string]string)
	cacheMu sync.RWMutex
)

// Get returns the prompt stored under key in filename.
func Get(filename, key string) (string, error) {
	prompts, err := loadFile(filename)
	if err != nil {
		return "", err
	}
	prompt, ok := prompts[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}
	return prompt, nil
}

// MustGet is Get for prompts required at startup. It panics when the
// prompt is missing.
func MustGet(filename, key string) string {
	prompt, err := Get(filename, key)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return prompt
}

// Format replaces {{.Key}} placeholders with values from data.
func Format(template string, data map[string]string) string {
	pairs := make([]string, 0, len(data)*2)
	for key, value := range data {
		pairs = append(pairs, "{{."+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// Assessment builds the assessment prompt for one section. Sections without
// their own focus or replacement shape use the defaults.
func Assessment(sectionID, sectionTitle, content string) (string, error) {
	template, err := Get(AssessmentFile, "assess")
	if err != nil {
		return "", err
	}
	focus, err := sectionPrompt("focus", sectionID)
	if err != nil {
		return "", err
	}
	shape, err := sectionPrompt("shape", sectionID)
	if err != nil {
		return "", err
	}
	return Format(template, map[string]string{
		"SectionTitle":     sectionTitle,
		"SectionFocus":     focus,
		"ReplacementShape": shape,
		"Content":          strings.TrimSpace(content),
	}), nil
}

func sectionPrompt(kind, sectionID string) (string, error) {
	if p, err := Get(AssessmentFile, kind+"."+sectionID); err == nil {
		return p, nil
	}
	return Get(AssessmentFile, kind+".default")
}

func loadFile(filename string) (map[string]string, error) {
	cacheMu.RLock()
	prompts, ok := cache[filename]
	cacheMu.RUnlock()
	if ok {
		return prompts, nil
	}

	data, err := promptFiles.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", filename, err)
	}
	if err := json.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", filename, err)
	}

	cacheMu.Lock()
	cache[filename] = prompts
	cacheMu.Unlock()
	return prompts, nil
}

// ClearCache drops parsed prompt files.
func ClearCache() {
	cacheMu.Lock()
	cache = make(map[string]map[string]string)
	cacheMu.Unlock()
}

// List returns the sorted prompt keys in filename.
func List(filename string) ([]string, error) {
	prompts, err := loadFile(filename)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(prompts))
	for key := range prompts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
