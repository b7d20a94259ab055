package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	prefsFile = "preferences.json"
)

// Preferences is the persisted CLI state: the transport mode and backend
// the user last selected, so a later invocation starts where the
// previous one left off.
type Preferences struct {
	// Mode is the transport mode ("direct", "stream", "external").
	Mode string `json:"mode,omitempty"`

	// Backend is the forced backend kind, if the user pinned one.
	Backend string `json:"backend,omitempty"`
}

// LoadPreferences loads persisted preferences from a target
// .spool/preferences.json. Returns nil, nil when no preferences have
// been saved yet. If overrideDir is non-empty, it is used instead of the
// default ~/.spool/ location.
func (m *Manager) LoadPreferences(overrideDir string) (*Preferences, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, prefsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading preferences: %w", err)
	}

	prefs := &Preferences{}
	if err := json.Unmarshal(data, prefs); err != nil {
		return nil, fmt.Errorf("parsing preferences: %w", err)
	}

	return prefs, nil
}

// SavePreferences persists preferences to a target .spool/preferences.json.
func (m *Manager) SavePreferences(prefs *Preferences, overrideDir string) error {
	if prefs == nil {
		return errors.New("preferences are required")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}

	path := filepath.Join(dir, prefsFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing preferences: %w", err)
	}

	return nil
}

// ClearPreferences removes the persisted preferences file if present.
func (m *Manager) ClearPreferences(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	err = os.Remove(filepath.Join(dir, prefsFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing preferences: %w", err)
	}
	return nil
}
