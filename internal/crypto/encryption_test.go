package crypto

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gotd/td/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpen(t *testing.T) {
	key, err := DeriveKey("operator secret", "test")
	require.NoError(t, err)

	sealed, err := Seal([]byte("hello"), key)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "hello")

	plain, err := Open(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(plain))

	other, err := DeriveKey("operator secret", "another purpose")
	require.NoError(t, err)
	_, err = Open(sealed, other)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestOpenRejectsShortInput(t *testing.T) {
	key, _ := DeriveKey("s", "p")
	_, err := Open([]byte{1, 2}, key)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = Seal([]byte("x"), []byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	_, err = DeriveKey("", "p")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestSealedFileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tg", "session.bin")
	s, err := NewSealedFileStorage(path, "secret")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.LoadSession(ctx)
	require.ErrorIs(t, err, session.ErrNotFound)

	require.NoError(t, s.StoreSession(ctx, []byte(`{"Version":1}`)))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Version")

	got, err := s.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"Version":1}`, string(got))
}
