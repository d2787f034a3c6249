package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testState(platform, tenant string) *State {
	return &State{
		Platform:     platform,
		Tenant:       tenant,
		StorageState: json.RawMessage(`{"cookies":[{"name":"sessionid","value":"abc123"}]}`),
		UserAgent:    "TestAgent/1.0",
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "instagram", Key("instagram", ""))
	assert.Equal(t, "instagram:acme", Key("instagram", "acme"))
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	state := testState("instagram", "")
	require.NoError(t, store.Store(state))

	got, err := store.Retrieve("instagram", "")
	require.NoError(t, err)
	assert.Equal(t, "instagram", got.Platform)
	assert.JSONEq(t, string(state.StorageState), string(got.StorageState))
	assert.Equal(t, "TestAgent/1.0", got.UserAgent)
}

func TestFileStoreTenantIsolation(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Store(testState("facebook", "acme")))

	_, err = store.Retrieve("facebook", "")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	got, err := store.Retrieve("facebook", "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Tenant)
}

func TestFileStoreListAndDelete(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Store(testState("instagram", "")))
	require.NoError(t, store.Store(testState("x", "")))

	states, err := store.List()
	require.NoError(t, err)
	assert.Len(t, states, 2)

	require.NoError(t, store.Delete("x", ""))
	assert.False(t, store.Exists("x", ""))
	assert.True(t, store.Exists("instagram", ""))

	err = store.Delete("x", "")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestEncryptedStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewEncryptedStore(dir, "test-passphrase")
	require.NoError(t, err)

	require.NoError(t, store.Store(testState("instagram", "acme")))

	got, err := store.Retrieve("instagram", "acme")
	require.NoError(t, err)
	assert.Equal(t, "instagram", got.Platform)
	assert.Equal(t, "acme", got.Tenant)

	// A second store over the same file and passphrase reads the same
	// sessions back.
	reopened, err := NewEncryptedStore(dir, "test-passphrase")
	require.NoError(t, err)
	got, err = reopened.Retrieve("instagram", "acme")
	require.NoError(t, err)
	assert.JSONEq(t, `{"cookies":[{"name":"sessionid","value":"abc123"}]}`, string(got.StorageState))
}

func TestEncryptedStoreWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	store, err := NewEncryptedStore(dir, "correct")
	require.NoError(t, err)
	require.NoError(t, store.Store(testState("instagram", "")))

	wrong, err := NewEncryptedStore(dir, "incorrect")
	require.NoError(t, err)

	_, err = wrong.Retrieve("instagram", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}

func TestEncryptedStoreDeleteLastRemovesFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewEncryptedStore(dir, "pass")
	require.NoError(t, err)

	require.NoError(t, store.Store(testState("instagram", "")))
	require.NoError(t, store.Delete("instagram", ""))

	_, err = store.Retrieve("instagram", "")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerResolveMissingReturnsNilNil(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	manager := NewManagerWithStores(fs)

	state, err := manager.Resolve("instagram", "")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestManagerFallsBackAcrossStores(t *testing.T) {
	first, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	second, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, second.Store(testState("instagram", "")))

	manager := NewManagerWithStores(first, second)

	state, err := manager.Resolve("instagram", "")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "instagram", state.Platform)
}

func TestManagerStoreRejectsEmptyState(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	manager := NewManagerWithStores(fs)

	assert.ErrorIs(t, manager.Store(&State{Platform: "instagram"}), ErrInvalidSession)
	assert.ErrorIs(t, manager.Store(nil), ErrInvalidSession)
}

func TestManagerDeleteRemovesEverywhere(t *testing.T) {
	first, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	second, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, first.Store(testState("instagram", "")))
	require.NoError(t, second.Store(testState("instagram", "")))

	manager := NewManagerWithStores(first, second)
	require.NoError(t, manager.Delete("instagram", ""))

	assert.False(t, first.Exists("instagram", ""))
	assert.False(t, second.Exists("instagram", ""))
}
