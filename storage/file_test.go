package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"e2ecore/storage"
)

func TestFileStoreKeysRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, ok, err := s.LoadKeys(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SaveKeys(ctx, []byte("sealed-vault")))
	got, ok, err := s.LoadKeys(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "sealed-vault", string(got))
}

func TestFileStoreSessionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.SaveSession(ctx, "bob/evil..id", []byte("snap-1")))
	require.NoError(t, s.SaveSession(ctx, "carol", []byte("snap-2")))

	peers, err := s.ListSessionPeers(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"bob/evil..id", "carol"}, peers)

	got, ok, err := s.LoadSession(ctx, "bob/evil..id")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "snap-1", string(got))

	require.NoError(t, s.DeleteSession(ctx, "bob/evil..id"))
	_, ok, err = s.LoadSession(ctx, "bob/evil..id")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileStoreBundlesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.SaveBundle(ctx, "bob", []byte("bundle-bytes")))
	got, ok, err := s.LoadBundle(ctx, "bob")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "bundle-bytes", string(got))

	require.NoError(t, s.DeleteBundle(ctx, "bob"))
	_, ok, err = s.LoadBundle(ctx, "bob")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := storage.NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.SaveKeys(ctx, []byte("vault-bytes")))

	second, err := storage.NewFileStore(dir)
	require.NoError(t, err)
	got, ok, err := second.LoadKeys(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "vault-bytes", string(got))
}
