package fixity

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizzlechizzle/archive-core/internal/catalog"
	"github.com/bizzlechizzle/archive-core/internal/contentstore"
	"github.com/bizzlechizzle/archive-core/internal/hashing"
)

func newTestService(t *testing.T) (*Service, *catalog.Store, *contentstore.Store) {
	t.Helper()
	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	store, err := contentstore.New(t.TempDir(), nil)
	require.NoError(t, err)

	return New(cat, store, 7, false, nil), cat, store
}

func placeAndCatalog(t *testing.T, cat *catalog.Store, store *contentstore.Store, locID, contents string) catalog.Media {
	t.Helper()
	src := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(src, []byte(contents), 0o644))
	sha, size, err := hashing.HashFile(src)
	require.NoError(t, err)

	result, err := store.Place(context.Background(), src, sha, ".jpg", contentstore.KindImage)
	require.NoError(t, err)

	media := catalog.Media{
		Hash: sha, Kind: catalog.MediaImage,
		OriginalName: "photo.jpg", OriginalPath: src, ArchivedPath: result.Path,
		LocID: locID, FileSizeBytes: size,
	}
	require.NoError(t, cat.InsertMedia(context.Background(), media))
	return media
}

func TestRunAllScopeMarksValid(t *testing.T) {
	svc, cat, store := newTestService(t)
	loc, err := cat.CreateLocation(context.Background(), catalog.Location{Locnam: "Lattimer Breaker"})
	require.NoError(t, err)
	placeAndCatalog(t, cat, store, loc.LocID, "intact bytes")

	summary, err := svc.Run(context.Background(), AllScope(), "test")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 1, summary.Valid)
	assert.Zero(t, summary.Corrupted)
	assert.Zero(t, summary.Missing)
}

func TestRunDetectsCorruption(t *testing.T) {
	svc, cat, store := newTestService(t)
	loc, err := cat.CreateLocation(context.Background(), catalog.Location{Locnam: "Eagle Hill Breaker"})
	require.NoError(t, err)
	media := placeAndCatalog(t, cat, store, loc.LocID, "original bytes")

	require.NoError(t, os.WriteFile(media.ArchivedPath, []byte("tampered bytes"), 0o644))

	summary, err := svc.Run(context.Background(), AllScope(), "test")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Corrupted)
	require.Len(t, summary.CorruptedFiles, 1)
	assert.Equal(t, media.ArchivedPath, summary.CorruptedFiles[0])
}

func TestRunDetectsMissing(t *testing.T) {
	svc, cat, store := newTestService(t)
	loc, err := cat.CreateLocation(context.Background(), catalog.Location{Locnam: "No. 9 Colliery"})
	require.NoError(t, err)
	media := placeAndCatalog(t, cat, store, loc.LocID, "soon to vanish")

	require.NoError(t, os.Remove(media.ArchivedPath))

	summary, err := svc.Run(context.Background(), AllScope(), "test")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Missing)
}

func TestNotVerifiedSinceScopeExcludesRecentlyChecked(t *testing.T) {
	svc, cat, store := newTestService(t)
	loc, err := cat.CreateLocation(context.Background(), catalog.Location{Locnam: "Glen Alden Shaft"})
	require.NoError(t, err)
	placeAndCatalog(t, cat, store, loc.LocID, "already checked")

	_, err = svc.Run(context.Background(), AllScope(), "test")
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Hour)
	summary, err := svc.Run(context.Background(), NotVerifiedSinceScope(past), "test")
	require.NoError(t, err)
	assert.Zero(t, summary.Checked, "already checked since the cutoff, so nothing should be due")
}
