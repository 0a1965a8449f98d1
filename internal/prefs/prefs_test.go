package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout_DefaultAndOverwrite(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "prefs"))

	l, err := s.Layout()
	require.NoError(t, err)
	assert.Equal(t, DefaultLayout(), l)

	require.NoError(t, s.SaveLayout(Layout{NavWidth: 200, GuidanceWidth: 300, Collapsed: map[string]bool{"guidance": true}}))
	require.NoError(t, s.SaveLayout(Layout{NavWidth: 180}))

	l, err = s.Layout()
	require.NoError(t, err)
	assert.Equal(t, Layout{NavWidth: 180}, l, "saving replaces the whole blob")
}

func TestLayout_Invalid(t *testing.T) {
	s := NewStore(t.TempDir())
	assert.Error(t, s.SaveLayout(Layout{NavWidth: -1}))
}

func TestLayout_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, LayoutKey+".json"), []byte("{not json"), 0o644))

	l, err := NewStore(dir).Layout()
	require.Error(t, err)
	assert.Equal(t, DefaultLayout(), l)
}

func TestViewPreference(t *testing.T) {
	s := NewStore(t.TempDir())

	v, err := s.ViewPreference()
	require.NoError(t, err)
	assert.Equal(t, ViewCards, v.Mode("work-experience"))

	require.NoError(t, s.SetView("work-experience", ViewTable))
	require.NoError(t, s.SetView("skills", ViewCards))
	assert.Error(t, s.SetView("skills", "grid"))

	v, err = s.ViewPreference()
	require.NoError(t, err)
	assert.Equal(t, ViewTable, v.Mode("work-experience"))
	assert.Equal(t, ViewCards, v.Mode("skills"))

	require.NoError(t, s.Clear())
	v, err = s.ViewPreference()
	require.NoError(t, err)
	assert.Empty(t, v.Lists)
}
