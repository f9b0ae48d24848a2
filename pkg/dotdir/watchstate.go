package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	watchStateFile = "watch.json"
)

// WatchState records which files the watch command has already ingested, so
// restarting the watcher does not re-ingest unchanged documents.
type WatchState struct {
	// Seen maps an absolute file path to the content hash of the text that
	// was ingested from it. A file whose current hash matches is skipped.
	Seen map[string]string `json:"seen"`
}

// LoadWatchState loads the watch state from a target .passage/watch.json.
// Returns nil, nil if no watch state exists (fresh watcher).
// If overrideDir is non-empty, it is used instead of the default ~/.passage/ location.
func (m *Manager) LoadWatchState(overrideDir string) (*WatchState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, watchStateFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading watch state: %w", err)
	}

	state := &WatchState{}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing watch state: %w", err)
	}

	return state, nil
}

// SaveWatchState persists the watch state to a target .passage/watch.json.
func (m *Manager) SaveWatchState(state *WatchState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil watch state")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling watch state: %w", err)
	}

	path := filepath.Join(dir, watchStateFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing watch state: %w", err)
	}

	return nil
}

// ClearWatchState removes the watch state file so the next watch run
// re-ingests everything. Returns nil if the file doesn't exist.
func (m *Manager) ClearWatchState(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, watchStateFile)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing watch state: %w", err)
	}

	return nil
}
