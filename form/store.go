package form

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists the form state as a JSON file and keeps the current
// copy in memory. It is safe for concurrent use.
type FileStore struct {
	mu    sync.Mutex
	path  string
	state *State
}

// Open loads the state at path. A missing or unreadable file yields the
// default form; an empty path keeps the state in memory only.
func Open(path string) *FileStore {
	fs := &FileStore{path: path, state: Default()}
	if path == "" {
		return fs
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("form: cannot read saved state, using defaults", "path", path, "error", err)
		}
		return fs
	}

	loaded := Default()
	if err := json.Unmarshal(data, loaded); err != nil {
		slog.Warn("form: saved state is corrupt, using defaults", "path", path, "error", err)
		return fs
	}
	loaded.Normalize()
	fs.state = loaded
	return fs
}

// Get returns a copy of the current state.
func (fs *FileStore) Get() *State {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.state.Clone()
}

// Update applies fn to a copy of the state, then stores and persists it.
func (fs *FileStore) Update(fn func(s *State) error) (*State, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	next := fs.state.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Normalize()
	fs.state = next

	if err := fs.saveLocked(); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

// Replace swaps in a whole new state. The active session id belongs to the
// backend browser, not to the form, so it survives the swap.
func (fs *FileStore) Replace(s *State) (*State, error) {
	return fs.Update(func(cur *State) error {
		sid := cur.SessionID
		*cur = *s.Clone()
		cur.SessionID = sid
		return nil
	})
}

func (fs *FileStore) saveLocked() error {
	if fs.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(fs.state, "", "  ")
	if err != nil {
		return fmt.Errorf("form: marshal state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(fs.path), 0o755); err != nil {
		return fmt.Errorf("form: create state dir: %w", err)
	}
	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("form: write state: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("form: replace state: %w", err)
	}
	return nil
}

// SessionID returns the active interactive session id.
func (fs *FileStore) SessionID() string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.state.SessionID
}

// SetSessionID records (or, with "", clears) the active interactive session.
func (fs *FileStore) SetSessionID(id string) error {
	_, err := fs.Update(func(s *State) error {
		s.SessionID = id
		return nil
	})
	return err
}
