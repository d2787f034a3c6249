// Package session stores and resolves authenticated browser sessions
// per platform and tenant. Sessions are held as captured storage state
// blobs and served through a chain of backends: system keychain,
// encrypted file, plain session directory.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// State is a captured authenticated session for one platform.
type State struct {
	Platform     string          `json:"platform"`
	Tenant       string          `json:"tenant,omitempty"`
	StorageState json.RawMessage `json:"storage_state"`
	UserAgent    string          `json:"user_agent,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Key returns the lookup key for this state.
func (s *State) Key() string {
	return Key(s.Platform, s.Tenant)
}

// Key builds the lookup key for a platform and optional tenant.
func Key(platform, tenant string) string {
	if tenant == "" {
		return platform
	}
	return platform + ":" + tenant
}

// Resolver resolves the session to use for a platform. A nil State with
// a nil error means no session is configured, which callers surface as
// a warning rather than a failure.
type Resolver interface {
	Resolve(platform, tenant string) (*State, error)
}

// Store is a single session storage backend.
type Store interface {
	// Store saves a session state.
	Store(state *State) error

	// Retrieve gets the session for a platform and tenant.
	Retrieve(platform, tenant string) (*State, error)

	// List returns all stored sessions.
	List() ([]*State, error)

	// Delete removes the session for a platform and tenant.
	Delete(platform, tenant string) error

	// Exists checks whether a session is stored.
	Exists(platform, tenant string) bool
}

// Errors
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidSession   = errors.New("invalid session state")
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// Manager serves sessions from a chain of backends with fallback.
type Manager struct {
	stores []Store
}

// Options controls which backends the manager is built with.
type Options struct {
	// Directory is the plain session directory, always enabled.
	Directory string
	// UseKeyring enables the system keychain backend.
	UseKeyring bool
	// Passphrase overrides the encrypted store passphrase lookup.
	Passphrase string
}

// NewManager creates a session manager with the configured backends.
func NewManager(opts Options) (*Manager, error) {
	var stores []Store

	if opts.UseKeyring {
		if ks, err := NewKeyringStore(); err == nil {
			stores = append(stores, ks)
		}
	}

	es, err := NewEncryptedStore(opts.Directory, opts.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted session store: %w", err)
	}
	stores = append(stores, es)

	fs, err := NewFileStore(opts.Directory)
	if err != nil {
		return nil, fmt.Errorf("failed to create session file store: %w", err)
	}
	stores = append(stores, fs)

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores builds a manager over an explicit backend chain.
func NewManagerWithStores(stores ...Store) *Manager {
	return &Manager{stores: stores}
}

// Resolve returns the session for a platform, or (nil, nil) when no
// backend has one.
func (m *Manager) Resolve(platform, tenant string) (*State, error) {
	for _, store := range m.stores {
		state, err := store.Retrieve(platform, tenant)
		if err == nil && state != nil {
			return state, nil
		}
		if err != nil && !errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// Store saves the session using the first backend that accepts it.
func (m *Manager) Store(state *State) error {
	if state == nil || state.Platform == "" {
		return ErrInvalidSession
	}
	if len(state.StorageState) == 0 {
		return ErrInvalidSession
	}

	state.UpdatedAt = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(state); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store session: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// List returns all stored sessions across backends, keeping the most
// recently updated copy per key.
func (m *Manager) List() ([]*State, error) {
	byKey := make(map[string]*State)

	for _, store := range m.stores {
		states, err := store.List()
		if err != nil {
			continue
		}
		for _, state := range states {
			if existing, ok := byKey[state.Key()]; !ok || state.UpdatedAt.After(existing.UpdatedAt) {
				byKey[state.Key()] = state
			}
		}
	}

	result := make([]*State, 0, len(byKey))
	for _, state := range byKey {
		result = append(result, state)
	}
	return result, nil
}

// Delete removes the session from every backend that has it.
func (m *Manager) Delete(platform, tenant string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(platform, tenant); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrSessionNotFound) {
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete session: %w", lastErr)
	}
	return ErrSessionNotFound
}
