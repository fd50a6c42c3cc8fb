package bagit_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizzlechizzle/archive-core/internal/bagit"
	"github.com/bizzlechizzle/archive-core/internal/catalog"
	"github.com/bizzlechizzle/archive-core/internal/contentstore"
	"github.com/bizzlechizzle/archive-core/internal/hashing"
)

func newTestCatalogAndStore(t *testing.T) (*catalog.Store, *contentstore.Store) {
	t.Helper()
	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	store, err := contentstore.New(t.TempDir(), nil)
	require.NoError(t, err)
	return cat, store
}

func placeMedia(t *testing.T, cat *catalog.Store, store *contentstore.Store, locID, contents string) catalog.Media {
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

func TestSealProducesValidStatusForIntactLocation(t *testing.T) {
	cat, store := newTestCatalogAndStore(t)
	loc, err := cat.CreateLocation(context.Background(), catalog.Location{Locnam: "Hazleton No. 1"})
	require.NoError(t, err)
	placeMedia(t, cat, store, loc.LocID, "payload one")
	placeMedia(t, cat, store, loc.LocID, "payload two")

	status, err := bagit.Seal(context.Background(), cat, store, loc.LocID)
	require.NoError(t, err)
	assert.Equal(t, bagit.StatusValid, status)

	reloaded, err := cat.GetLocation(context.Background(), loc.LocID)
	require.NoError(t, err)
	assert.Equal(t, string(bagit.StatusValid), reloaded.BagStatus)
	require.NotNil(t, reloaded.BagSealedAt)
}

func TestVerifyReturnsNoneWithoutASeal(t *testing.T) {
	cat, store := newTestCatalogAndStore(t)
	loc, err := cat.CreateLocation(context.Background(), catalog.Location{Locnam: "Stockton Colliery"})
	require.NoError(t, err)

	status, err := bagit.Verify(context.Background(), cat, store, loc.LocID)
	require.NoError(t, err)
	assert.Equal(t, bagit.StatusNone, status)
}

func TestVerifyDetectsMissingBlobAfterSeal(t *testing.T) {
	cat, store := newTestCatalogAndStore(t)
	loc, err := cat.CreateLocation(context.Background(), catalog.Location{Locnam: "Buck Mountain"})
	require.NoError(t, err)
	media := placeMedia(t, cat, store, loc.LocID, "payload")

	_, err = bagit.Seal(context.Background(), cat, store, loc.LocID)
	require.NoError(t, err)

	require.NoError(t, os.Remove(media.ArchivedPath))

	status, err := bagit.Verify(context.Background(), cat, store, loc.LocID)
	require.NoError(t, err)
	assert.Equal(t, bagit.StatusIncomplete, status)
}

func TestVerifyDetectsCorruptedBlobAfterSeal(t *testing.T) {
	cat, store := newTestCatalogAndStore(t)
	loc, err := cat.CreateLocation(context.Background(), catalog.Location{Locnam: "Tresckow Breaker"})
	require.NoError(t, err)
	media := placeMedia(t, cat, store, loc.LocID, "payload")

	_, err = bagit.Seal(context.Background(), cat, store, loc.LocID)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(media.ArchivedPath, []byte("tampered"), 0o644))

	status, err := bagit.Verify(context.Background(), cat, store, loc.LocID)
	require.NoError(t, err)
	assert.Equal(t, bagit.StatusInvalid, status)
}
