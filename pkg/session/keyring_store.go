package session

import (
	"encoding/json"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "scr4per"
	keyringPrefix  = "session_"
)

// KeyringStore keeps sessions in the system keychain.
type KeyringStore struct{}

// NewKeyringStore creates a keychain-backed session store, probing the
// keyring first since headless hosts often lack one.
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Store saves the session state to the keychain.
func (k *KeyringStore) Store(state *State) error {
	if state == nil || state.Platform == "" {
		return ErrInvalidSession
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	key := keyringPrefix + state.Key()
	if err := keyring.Set(keyringService, key, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

// Retrieve gets the session from the keychain.
func (k *KeyringStore) Retrieve(platform, tenant string) (*State, error) {
	if platform == "" {
		return nil, ErrInvalidSession
	}

	data, err := keyring.Get(keyringService, keyringPrefix+Key(platform, tenant))
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var state State
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &state, nil
}

// List returns no sessions; the keyring API cannot enumerate keys.
func (k *KeyringStore) List() ([]*State, error) {
	return []*State{}, nil
}

// Delete removes the session from the keychain.
func (k *KeyringStore) Delete(platform, tenant string) error {
	if platform == "" {
		return ErrInvalidSession
	}

	err := keyring.Delete(keyringService, keyringPrefix+Key(platform, tenant))
	if err != nil {
		if err == keyring.ErrNotFound {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

// Exists checks if a session is stored in the keychain.
func (k *KeyringStore) Exists(platform, tenant string) bool {
	if platform == "" {
		return false
	}
	_, err := keyring.Get(keyringService, keyringPrefix+Key(platform, tenant))
	return err == nil
}
