// Package local_test tests the local filesystem object store.
package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedlake/social-crawler/internal/storage/local"
)

func newStore(t *testing.T) *local.Store {
	t.Helper()
	base := t.TempDir()
	store, err := local.New(local.Config{
		MetadataDir: filepath.Join(base, "metadata"),
		MediaDir:    filepath.Join(base, "media"),
	})
	require.NoError(t, err)
	return store
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("CreatesRoots", func(t *testing.T) {
		t.Parallel()
		base := t.TempDir()
		_, err := local.New(local.Config{
			MetadataDir: filepath.Join(base, "a", "metadata"),
			MediaDir:    filepath.Join(base, "a", "media"),
		})
		require.NoError(t, err)
		_, err = os.Stat(filepath.Join(base, "a", "metadata"))
		assert.NoError(t, err)
	})

	t.Run("MissingDirs", func(t *testing.T) {
		t.Parallel()
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})
}

func TestWriteJSON_RoundTrip(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	key := "bronze/crawler/metadata/user_profile/run1/reddit/alice.json"
	record := map[string]any{"id": "alice", "display_name": "Alice"}

	location, err := store.WriteJSON(context.Background(), record, key)
	require.NoError(t, err)
	assert.FileExists(t, location)

	var got map[string]any
	require.NoError(t, store.ReadJSON(key, &got))
	assert.Equal(t, "alice", got["id"])
	assert.Equal(t, "Alice", got["display_name"])
}

func TestWriteJSON_OverwriteLastWins(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	key := "a/b/record.json"
	_, err := store.WriteJSON(context.Background(), map[string]string{"v": "first"}, key)
	require.NoError(t, err)
	_, err = store.WriteJSON(context.Background(), map[string]string{"v": "second"}, key)
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, store.ReadJSON(key, &got))
	assert.Equal(t, "second", got["v"])

	keys, err := store.List(context.Background(), "a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/b/record.json"}, keys)
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	src := filepath.Join(t.TempDir(), "blob.jpg")
	require.NoError(t, os.WriteFile(src, []byte("binary-bytes"), 0o600))

	location, err := store.WriteFile(context.Background(), src, "bronze/crawler/media/reddit/alice/x_0.jpg")
	require.NoError(t, err)

	data, err := os.ReadFile(location)
	require.NoError(t, err)
	assert.Equal(t, []byte("binary-bytes"), data)
}

func TestWriteFile_MissingSource(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	_, err := store.WriteFile(context.Background(), filepath.Join(t.TempDir(), "gone"), "k/blob.bin")
	assert.Error(t, err)
}

func TestList_PrefixFilter(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()
	_, err := store.WriteJSON(ctx, map[string]int{"n": 1}, "runs/r1/one.json")
	require.NoError(t, err)
	_, err = store.WriteJSON(ctx, map[string]int{"n": 2}, "runs/r2/two.json")
	require.NoError(t, err)

	keys, err := store.List(ctx, "runs/r1/")
	require.NoError(t, err)
	assert.Equal(t, []string{"runs/r1/one.json"}, keys)

	all, err := store.List(ctx, "runs/")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestResolve_RejectsTraversal(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	_, err := store.WriteJSON(context.Background(), map[string]int{}, "../escape.json")
	assert.Error(t, err)

	_, err = store.WriteJSON(context.Background(), map[string]int{}, "")
	assert.Error(t, err)
}
