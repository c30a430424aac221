package profile

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProfile() Profile {
	return Profile{
		Protocol:   "sftp",
		Host:       "files.example.com",
		Port:       22,
		User:       "deploy",
		Credential: "secret",
		RemoteDir:  "incoming",
		ChunkSize:  8 << 20,
		MaxRetries: 5,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "cfg", "profile.json"))

	require.NoError(t, store.Save(testProfile()))

	got, found, err := store.Load()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, testProfile(), got)
}

func TestStoreSavePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permission bits")
	}
	path := filepath.Join(t.TempDir(), "profile.json")
	store := NewStore(path)
	require.NoError(t, store.Save(testProfile()))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm(), "credential file is owner-only")
}

func TestStoreLoadMissing(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "profile.json"))
	_, found, err := store.Load()
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStoreLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, _, err := NewStore(path).Load()
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestStoreReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	store := NewStore(path)

	// Resetting a store that never saved is fine.
	require.NoError(t, store.Reset())

	require.NoError(t, store.Save(testProfile()))
	require.NoError(t, store.Reset())

	_, found, err := store.Load()
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStoreSaveOverwrites(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "profile.json"))
	require.NoError(t, store.Save(testProfile()))

	updated := testProfile()
	updated.Host = "other.example.com"
	require.NoError(t, store.Save(updated))

	got, found, err := store.Load()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "other.example.com", got.Host)
}
