package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 32
	keySize    = 32
	iterations = 100000

	encryptedFileName = "sessions.enc"
	passphraseEnvVar  = "SCR4PER_PASSPHRASE"
)

// EncryptedStore keeps all sessions in a single AES-GCM encrypted file
// with a key derived from a passphrase via PBKDF2.
type EncryptedStore struct {
	filepath   string
	passphrase string
	mu         sync.RWMutex
}

// NewEncryptedStore creates an encrypted session store under dir. An
// empty passphrase falls back to the environment, then to a generated
// passphrase persisted next to the store.
func NewEncryptedStore(dir, passphrase string) (*EncryptedStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("session directory is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	store := &EncryptedStore{
		filepath: filepath.Join(dir, encryptedFileName),
	}

	if passphrase == "" {
		var err error
		passphrase, err = resolvePassphrase(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve passphrase: %w", err)
		}
	}
	store.passphrase = passphrase

	return store, nil
}

// Store saves a session into the encrypted file.
func (e *EncryptedStore) Store(state *State) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if state == nil || state.Platform == "" {
		return ErrInvalidSession
	}

	sessions, salt, err := e.load()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load existing sessions: %w", err)
	}
	if sessions == nil {
		sessions = make(map[string]State)
	}

	sessions[state.Key()] = *state
	return e.save(sessions, salt)
}

// Retrieve gets a session from the encrypted file.
func (e *EncryptedStore) Retrieve(platform, tenant string) (*State, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if platform == "" {
		return nil, ErrInvalidSession
	}

	sessions, _, err := e.load()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	state, ok := sessions[Key(platform, tenant)]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &state, nil
}

// List returns all sessions in the encrypted file.
func (e *EncryptedStore) List() ([]*State, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	sessions, _, err := e.load()
	if err != nil {
		if os.IsNotExist(err) {
			return []*State{}, nil
		}
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	var states []*State
	for _, state := range sessions {
		s := state
		states = append(states, &s)
	}
	return states, nil
}

// Delete removes a session from the encrypted file.
func (e *EncryptedStore) Delete(platform, tenant string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if platform == "" {
		return ErrInvalidSession
	}

	sessions, salt, err := e.load()
	if err != nil {
		if os.IsNotExist(err) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to load sessions: %w", err)
	}

	key := Key(platform, tenant)
	if _, ok := sessions[key]; !ok {
		return ErrSessionNotFound
	}
	delete(sessions, key)

	if len(sessions) == 0 {
		return os.Remove(e.filepath)
	}
	return e.save(sessions, salt)
}

// Exists checks if a session is in the encrypted file.
func (e *EncryptedStore) Exists(platform, tenant string) bool {
	state, err := e.Retrieve(platform, tenant)
	return err == nil && state != nil
}

// load reads the file and decrypts the session map.
func (e *EncryptedStore) load() (map[string]State, string, error) {
	content, err := os.ReadFile(e.filepath)
	if err != nil {
		return nil, "", err
	}

	var fileData struct {
		Salt      string `json:"salt"`
		Encrypted string `json:"encrypted"`
	}
	if err := json.Unmarshal(content, &fileData); err != nil {
		return nil, "", fmt.Errorf("failed to parse session file: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(fileData.Salt)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode salt: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(fileData.Encrypted)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode session data: %w", err)
	}

	key := pbkdf2.Key([]byte(e.passphrase), salt, iterations, keySize, sha256.New)
	plaintext, err := decrypt(ciphertext, key)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decrypt sessions: %w", err)
	}

	var sessions map[string]State
	if err := json.Unmarshal(plaintext, &sessions); err != nil {
		return nil, "", fmt.Errorf("failed to parse sessions: %w", err)
	}
	return sessions, fileData.Salt, nil
}

// save encrypts the session map and writes it atomically.
func (e *EncryptedStore) save(sessions map[string]State, encodedSalt string) error {
	var salt []byte
	if encodedSalt == "" {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
		encodedSalt = base64.StdEncoding.EncodeToString(salt)
	} else {
		var err error
		salt, err = base64.StdEncoding.DecodeString(encodedSalt)
		if err != nil {
			return fmt.Errorf("failed to decode salt: %w", err)
		}
	}

	key := pbkdf2.Key([]byte(e.passphrase), salt, iterations, keySize, sha256.New)

	plaintext, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}
	ciphertext, err := encrypt(plaintext, key)
	if err != nil {
		return fmt.Errorf("failed to encrypt sessions: %w", err)
	}

	fileData := struct {
		Salt      string    `json:"salt"`
		Encrypted string    `json:"encrypted"`
		Version   int       `json:"version"`
		Modified  time.Time `json:"modified"`
	}{
		Salt:      encodedSalt,
		Encrypted: base64.StdEncoding.EncodeToString(ciphertext),
		Version:   1,
		Modified:  time.Now(),
	}

	content, err := json.MarshalIndent(fileData, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session file: %w", err)
	}

	temp := e.filepath + ".tmp"
	if err := os.WriteFile(temp, content, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return os.Rename(temp, e.filepath)
}

// resolvePassphrase checks the environment, then a persisted
// passphrase file, generating one on first use.
func resolvePassphrase(dir string) (string, error) {
	if pass := os.Getenv(passphraseEnvVar); pass != "" {
		return pass, nil
	}

	passphraseFile := filepath.Join(dir, ".passphrase")
	if content, err := os.ReadFile(passphraseFile); err == nil && len(content) > 0 {
		return string(content), nil
	}

	passphrase := generatePassphrase()
	if err := os.WriteFile(passphraseFile, []byte(passphrase), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return passphrase, nil
}

func generatePassphrase() string {
	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}

// encrypt seals plaintext with AES-GCM, prepending the nonce.
func encrypt(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// decrypt opens an AES-GCM payload produced by encrypt.
func decrypt(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
