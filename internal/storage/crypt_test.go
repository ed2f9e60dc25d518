package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt(t *testing.T) {
	plain := []byte("%PDF-1.7 hello")

	sealed, err := Encrypt(plain, "secret")
	require.NoError(t, err)
	assert.True(t, IsEncrypted(sealed))
	assert.NotContains(t, string(sealed), "hello")

	got, err := Decrypt(sealed, "secret")
	require.NoError(t, err)
	assert.Equal(t, plain, got)

	_, err = Decrypt(sealed, "wrong")
	assert.Error(t, err)
}

func TestDecryptRejectsPlainData(t *testing.T) {
	assert.False(t, IsEncrypted([]byte("%PDF-1.7")))
	_, err := Decrypt([]byte("%PDF-1.7"), "secret")
	assert.Error(t, err)
	_, err = Decrypt([]byte(gcmMagic+"short"), "secret")
	assert.Error(t, err)
}

func TestDecryptInPlace(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "obj.pdf")
	sealed, err := Encrypt([]byte("%PDF-1.7 body"), "pw")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p, sealed, 0o600))

	err = New(Options{}).decryptInPlace(p)
	assert.ErrorIs(t, err, ErrNoPassword)

	require.NoError(t, New(Options{Password: "pw"}).decryptInPlace(p))
	got, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 body", string(got))

	// plain files are untouched
	require.NoError(t, New(Options{Password: "pw"}).decryptInPlace(p))
	got, _ = os.ReadFile(p)
	assert.Equal(t, "%PDF-1.7 body", string(got))
}
