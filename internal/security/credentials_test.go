package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestEncryptedFileStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewCredentialStoreAt(dir, false)
	require.NoError(t, err)
	assert.False(t, store.UsesKeyring())

	_, err = store.Get("etl_user")
	assert.Equal(t, ErrNotFound, err)

	require.NoError(t, store.Set("etl_user", "s3cret"))

	raw, err := os.ReadFile(filepath.Join(dir, "etl_user.cred"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "s3cret")

	// a second store on the same directory reuses the master key
	again, err := NewCredentialStoreAt(dir, false)
	require.NoError(t, err)
	v, err := again.Get("etl_user")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", v)

	require.NoError(t, again.Delete("etl_user"))
	require.NoError(t, again.Delete("etl_user"))
	_, err = again.Get("etl_user")
	assert.Equal(t, ErrNotFound, err)
}

func TestInvalidName(t *testing.T) {
	store, err := NewCredentialStoreAt(t.TempDir(), false)
	require.NoError(t, err)

	assert.Error(t, store.Set("../escape", "x"))
	_, err = store.Get("../escape")
	assert.Equal(t, ErrNotFound, err)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewCredentialStoreAt(t.TempDir(), true)
	require.NoError(t, err)
	assert.True(t, store.UsesKeyring())

	require.NoError(t, store.Set("etl_user", "from-keyring"))
	v, err := store.Get("etl_user")
	require.NoError(t, err)
	assert.Equal(t, "from-keyring", v)

	require.NoError(t, store.Delete("etl_user"))
	_, err = store.Get("etl_user")
	assert.Equal(t, ErrNotFound, err)
}

func TestResolvePassword(t *testing.T) {
	keyring.MockInit()
	store, err := NewCredentialStoreAt(t.TempDir(), true)
	require.NoError(t, err)
	require.NoError(t, store.Set("stored_user", "stored"))
	t.Setenv(PasswordEnv, "from-env")

	tests := []struct {
		name       string
		user       string
		configured string
		want       string
	}{
		{"configured wins", "stored_user", "configured", "configured"},
		{"stored credential", "stored_user", "", "stored"},
		{"environment fallback", "other_user", "", "from-env"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePassword(store, tt.user, tt.configured)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("nothing available", func(t *testing.T) {
		t.Setenv(PasswordEnv, "")
		_, err := ResolvePassword(store, "other_user", "")
		assert.Error(t, err)
	})
}
