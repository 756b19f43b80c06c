package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key := "documents/abc/original.pdf"
	require.NoError(t, store.Write(ctx, key, []byte("blob bytes")))

	got, err := store.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("blob bytes"), got)

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Read(ctx, key)
	assert.Error(t, err)
}

func TestLocalStoreOverwrite(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "a/b.pdf", []byte("v1")))
	require.NoError(t, store.Write(ctx, "a/b.pdf", []byte("v2")))

	got, err := store.Read(ctx, "a/b.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"../outside", "a/../../outside", "/etc/passwd", "."} {
		_, err := store.Read(ctx, key)
		assert.Error(t, err, "key %q", key)
		assert.Error(t, store.Write(ctx, key, []byte("x")), "key %q", key)
	}
}

func TestNewLocalStoreRequiresRoot(t *testing.T) {
	_, err := NewLocalStore("")
	assert.Error(t, err)
}
