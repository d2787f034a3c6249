package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps sessions as plain JSON files in a directory, one file
// per platform and tenant. This is the backend populated by manual
// session imports.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-based session store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("session directory is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(platform, tenant string) string {
	name := platform
	if tenant != "" {
		name += "_" + tenant
	}
	return filepath.Join(f.dir, name+".json")
}

// Store writes the session state to disk with owner-only permissions.
func (f *FileStore) Store(state *State) error {
	if state == nil || state.Platform == "" {
		return ErrInvalidSession
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	target := f.path(state.Platform, state.Tenant)
	temp := target + ".tmp"
	if err := os.WriteFile(temp, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return os.Rename(temp, target)
}

// Retrieve reads the session for a platform and tenant.
func (f *FileStore) Retrieve(platform, tenant string) (*State, error) {
	if platform == "" {
		return nil, ErrInvalidSession
	}

	content, err := os.ReadFile(f.path(platform, tenant))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var state State
	if err := json.Unmarshal(content, &state); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	return &state, nil
}

// List returns every session file in the directory.
func (f *FileStore) List() ([]*State, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*State{}, nil
		}
		return nil, fmt.Errorf("failed to read session directory: %w", err)
	}

	var states []*State
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(f.dir, entry.Name()))
		if err != nil {
			continue
		}
		var state State
		if err := json.Unmarshal(content, &state); err != nil || state.Platform == "" {
			continue
		}
		states = append(states, &state)
	}
	return states, nil
}

// Delete removes the session file.
func (f *FileStore) Delete(platform, tenant string) error {
	if platform == "" {
		return ErrInvalidSession
	}

	err := os.Remove(f.path(platform, tenant))
	if os.IsNotExist(err) {
		return ErrSessionNotFound
	}
	return err
}

// Exists checks whether a session file is present.
func (f *FileStore) Exists(platform, tenant string) bool {
	_, err := os.Stat(f.path(platform, tenant))
	return err == nil
}
