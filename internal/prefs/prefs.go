// Package prefs persists editor layout and list view preferences as whole
// JSON blobs, one file per key.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// Keys of the persisted blobs.
const (
	LayoutKey = "cv_editor_layout"
	ViewKey   = "cv_editor_view_preference"
)

// View modes for entry lists.
const (
	ViewCards = "cards"
	ViewTable = "table"
)

// Layout is the editor's column arrangement.
type Layout struct {
	NavWidth      int             `json:"nav_width" validate:"min=0,max=4000"`
	GuidanceWidth int             `json:"guidance_width" validate:"min=0,max=4000"`
	Collapsed     map[string]bool `json:"collapsed,omitempty"`
}

// DefaultLayout is used when nothing has been saved.
func DefaultLayout() Layout {
	return Layout{NavWidth: 240, GuidanceWidth: 360}
}

// ViewPreference maps a list id to a view mode.
type ViewPreference struct {
	Lists map[string]string `json:"lists" validate:"dive,keys,required,endkeys,oneof=cards table"`
}

// Mode returns the view mode for list, defaulting to cards.
func (v ViewPreference) Mode(list string) string {
	if m, ok := v.Lists[list]; ok {
		return m
	}
	return ViewCards
}

// Store reads and writes preference blobs in a directory.
type Store struct {
	dir      string
	validate *validator.Validate
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir, validate: validator.New()}
}

// DefaultDir is ~/.config/cv-editor/prefs.
func DefaultDir() string {
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "cv-editor", "prefs")
	}
	return filepath.Join(".", ".cv-editor", "prefs")
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Layout loads the saved layout or the default.
func (s *Store) Layout() (Layout, error) {
	l := DefaultLayout()
	found, err := s.load(LayoutKey, &l)
	if err != nil || !found {
		return DefaultLayout(), err
	}
	return l, nil
}

// SaveLayout overwrites the saved layout.
func (s *Store) SaveLayout(l Layout) error {
	if err := s.validate.Struct(l); err != nil {
		return fmt.Errorf("invalid layout: %w", err)
	}
	return s.save(LayoutKey, l)
}

// ViewPreference loads the saved view preference.
func (s *Store) ViewPreference() (ViewPreference, error) {
	var v ViewPreference
	if _, err := s.load(ViewKey, &v); err != nil {
		return ViewPreference{}, err
	}
	if v.Lists == nil {
		v.Lists = map[string]string{}
	}
	return v, nil
}

// SetView records mode for list and overwrites the saved preference.
func (s *Store) SetView(list, mode string) error {
	v, err := s.ViewPreference()
	if err != nil {
		v = ViewPreference{Lists: map[string]string{}}
	}
	v.Lists[list] = mode
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("invalid view preference: %w", err)
	}
	return s.save(ViewKey, v)
}

// Clear removes every saved preference.
func (s *Store) Clear() error {
	for _, key := range []string{LayoutKey, ViewKey} {
		if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (s *Store) load(key string, v any) (bool, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) save(key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create preferences dir: %w", err)
	}
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return os.Rename(tmp, s.path(key))
}
