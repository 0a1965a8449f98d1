// Package guidance serves the per-section writing advice shown beside the
// editor.
package guidance

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jonathan/cv-editor/internal/schemas"
	"github.com/jonathan/cv-editor/internal/types"
)

//go:embed guidance.json
var catalogueJSON []byte

// ErrUnknownSection is returned for sections without guidance.
var ErrUnknownSection = errors.New("no guidance for section")

var (
	loadOnce  sync.Once
	catalogue map[string]*types.Guidance
	loadErr   error
)

// Lookup returns the guidance for sectionID.
func Lookup(sectionID string) (*types.Guidance, error) {
	entries, err := load()
	if err != nil {
		return nil, err
	}
	g, ok := entries[sectionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSection, sectionID)
	}
	return g, nil
}

// Title returns the display title of sectionID, or sectionID itself when
// the section has no guidance.
func Title(sectionID string) string {
	if g, err := Lookup(sectionID); err == nil {
		return g.Title
	}
	return sectionID
}

// Sections returns the sorted ids that have guidance.
func Sections() ([]string, error) {
	entries, err := load()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func load() (map[string]*types.Guidance, error) {
	loadOnce.Do(func() {
		catalogue, loadErr = parse(catalogueJSON)
	})
	return catalogue, loadErr
}

// parse decodes a catalogue, validating every entry against the guidance
// schema.
func parse(data []byte) (map[string]*types.Guidance, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse guidance catalogue: %w", err)
	}
	out := make(map[string]*types.Guidance, len(raw))
	for id, entry := range raw {
		var doc any
		if err := json.Unmarshal(entry, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse guidance for %s: %w", id, err)
		}
		if err := schemas.Validate(schemas.Guidance, doc); err != nil {
			return nil, fmt.Errorf("invalid guidance for %s: %w", id, err)
		}
		var g types.Guidance
		if err := json.Unmarshal(entry, &g); err != nil {
			return nil, fmt.Errorf("failed to decode guidance for %s: %w", id, err)
		}
		out[id] = &g
	}
	return out, nil
}
