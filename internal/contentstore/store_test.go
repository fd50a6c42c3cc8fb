package contentstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizzlechizzle/archive-core/internal/contentstore"
	"github.com/bizzlechizzle/archive-core/internal/hashing"
)

func newStore(t *testing.T) *contentstore.Store {
	t.Helper()
	root := t.TempDir()
	s, err := contentstore.New(root, nil)
	require.NoError(t, err)
	return s
}

func writeSource(t *testing.T, contents string) (path, sha string) {
	t.Helper()
	dir := t.TempDir()
	path = filepath.Join(dir, "source.jpg")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	sha, _, err := hashing.HashFile(path)
	require.NoError(t, err)
	return path, sha
}

func TestPlaceIsIdempotent(t *testing.T) {
	s := newStore(t)
	src, sha := writeSource(t, "archive bytes")

	r1, err := s.Place(context.Background(), src, sha, ".jpg", contentstore.KindImage)
	require.NoError(t, err)
	assert.Equal(t, "copy", r1.Strategy)

	r2, err := s.Place(context.Background(), src, sha, ".jpg", contentstore.KindImage)
	require.NoError(t, err)
	assert.Equal(t, "existing", r2.Strategy)
	assert.Equal(t, r1.Path, r2.Path)

	assert.True(t, s.Exists(sha, ".jpg", contentstore.KindImage))
}

func TestPathOfIsPure(t *testing.T) {
	s := newStore(t)
	sha := "abcdef0123456789"
	p1 := s.PathOf(sha, ".jpg", contentstore.KindImage)
	p2 := s.PathOf(sha, ".jpg", contentstore.KindImage)
	assert.Equal(t, p1, p2)
	assert.Contains(t, p1, filepath.Join("image", "ab", sha+".jpg"))
	assert.False(t, s.Exists(sha, ".jpg", contentstore.KindImage), "PathOf must not touch disk")
}

func TestPlaceNeverLeavesPartialFileOnHashMismatch(t *testing.T) {
	s := newStore(t)
	src, _ := writeSource(t, "archive bytes")

	_, err := s.Place(context.Background(), src, "0000000000000000000000000000000000000000000000000000000000000000", ".jpg", contentstore.KindImage)
	require.Error(t, err)

	dest := s.PathOf("0000000000000000000000000000000000000000000000000000000000000000", ".jpg", contentstore.KindImage)
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "no partial blob should remain after a failed place")
}

func TestDeleteRemovesBlobAndCacheEntry(t *testing.T) {
	s := newStore(t)
	src, sha := writeSource(t, "to be deleted")
	_, err := s.Place(context.Background(), src, sha, ".jpg", contentstore.KindImage)
	require.NoError(t, err)
	require.True(t, s.Exists(sha, ".jpg", contentstore.KindImage))

	require.NoError(t, s.Delete(sha, ".jpg", contentstore.KindImage))
	assert.False(t, s.Exists(sha, ".jpg", contentstore.KindImage))
}

func TestPlaceCancelledContext(t *testing.T) {
	s := newStore(t)
	src, sha := writeSource(t, "cancel me")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Place(ctx, src, sha, ".jpg", contentstore.KindImage)
	require.Error(t, err)
}
