package archive_test

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizzlechizzle/archive-core/internal/archive"
	"github.com/bizzlechizzle/archive-core/internal/catalog"
	"github.com/bizzlechizzle/archive-core/internal/config"
	"github.com/bizzlechizzle/archive-core/internal/contentstore"
	"github.com/bizzlechizzle/archive-core/internal/hashing"
)

func newTestHandle(t *testing.T) *archive.Handle {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{
		ArchivePath: dir,
		CatalogPath: filepath.Join(dir, "archive.db"),
	}
	h, err := archive.Open(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func writeTestJPEG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 120, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "src.jpg")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, nil))
	return path
}

func placeImage(t *testing.T, h *archive.Handle, locID string) catalog.Media {
	t.Helper()
	src := writeTestJPEG(t, 64, 48)
	sha, size, err := hashing.HashFile(src)
	require.NoError(t, err)
	result, err := h.Store.Place(context.Background(), src, sha, ".jpg", contentstore.KindImage)
	require.NoError(t, err)
	media := catalog.Media{
		Hash: sha, Kind: catalog.MediaImage,
		OriginalName: "src.jpg", OriginalPath: src, ArchivedPath: result.Path,
		LocID: locID, FileSizeBytes: size,
	}
	require.NoError(t, h.Catalog.InsertMedia(context.Background(), media))
	return media
}

func TestCreateLocationSurfacesDuplicateInsteadOfInserting(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()

	// A name-only match also needs the same state (or GPS within 500m).
	first, match, err := h.CreateLocation(ctx, catalog.Location{Locnam: "Eckley Colliery", Address: &catalog.Address{State: "PA"}})
	require.NoError(t, err)
	assert.Nil(t, match)
	assert.NotEmpty(t, first.LocID)

	_, match, err = h.CreateLocation(ctx, catalog.Location{Locnam: "Eckley Colliery", Address: &catalog.Address{State: "PA"}})
	require.NoError(t, err)
	require.NotNil(t, match)
}

func TestImportMediaAndFindByLocation(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()

	loc, _, err := h.CreateLocation(ctx, catalog.Location{Locnam: "Lattimer Breaker"})
	require.NoError(t, err)
	placeImage(t, h, loc.LocID)

	media, err := h.FindMediaByLocation(ctx, loc.LocID)
	require.NoError(t, err)
	require.Len(t, media, 1)
}

func TestRegenerateAllThumbnailsSkipsAlreadyPopulatedUnlessForced(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()

	loc, _, err := h.CreateLocation(ctx, catalog.Location{Locnam: "Jeddo Highland"})
	require.NoError(t, err)
	placeImage(t, h, loc.LocID)

	summary, err := h.RegenerateAllThumbnails(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Considered)
	assert.Equal(t, 1, summary.Regenerated)
	assert.Zero(t, summary.Failed)

	summary, err = h.RegenerateAllThumbnails(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Regenerated)

	summary, err = h.RegenerateAllThumbnails(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Regenerated)
}

func TestVerifyAllRecordsLastResult(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()

	loc, _, err := h.CreateLocation(ctx, catalog.Location{Locnam: "Jim Thorpe Depot"})
	require.NoError(t, err)
	placeImage(t, h, loc.LocID)

	_, ok := h.LastResult()
	assert.False(t, ok)

	summary, err := h.VerifyAll(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Valid)

	last, ok := h.LastResult()
	require.True(t, ok)
	assert.Equal(t, summary, last)
}

func TestIntegrityCheckReportsMissingBlob(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()

	loc, _, err := h.CreateLocation(ctx, catalog.Location{Locnam: "Sugar Notch Slope"})
	require.NoError(t, err)
	media := placeImage(t, h, loc.LocID)
	require.NoError(t, os.Remove(media.ArchivedPath))

	report, err := h.IntegrityCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)
	require.Len(t, report.Missing, 1)
	assert.Equal(t, media.Hash, report.Missing[0])
}

func TestDashboardAggregatesCounts(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()

	loc, _, err := h.CreateLocation(ctx, catalog.Location{Locnam: "Drifton Colliery"})
	require.NoError(t, err)
	placeImage(t, h, loc.LocID)

	dash, err := h.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dash.LocationCount)
	assert.Equal(t, 1, dash.ImageCount)
	assert.Nil(t, dash.LastFixity)
}

func TestJobsStatusCoversEveryQueue(t *testing.T) {
	h := newTestHandle(t)
	st, err := h.JobsStatus()
	require.NoError(t, err)
	assert.Len(t, st, 3)
}

func TestClearCompletedJobsIsANoopOnEmptyQueues(t *testing.T) {
	h := newTestHandle(t)
	n, err := h.ClearCompletedJobs(time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteMediaClearsStaleHeroPointerAndRemovesBlob(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()

	loc, _, err := h.CreateLocation(ctx, catalog.Location{Locnam: "Jeddo Highlands"})
	require.NoError(t, err)
	media := placeImage(t, h, loc.LocID)

	loc.HeroImgSHA = media.Hash
	loc, err = h.Catalog.UpdateLocation(ctx, loc)
	require.NoError(t, err)
	require.Equal(t, media.Hash, loc.HeroImgSHA)

	require.NoError(t, h.DeleteMedia(ctx, catalog.MediaImage, media.Hash))

	reloaded, err := h.Catalog.GetLocation(ctx, loc.LocID)
	require.NoError(t, err)
	assert.Empty(t, reloaded.HeroImgSHA)

	_, err = os.Stat(media.ArchivedPath)
	assert.True(t, os.IsNotExist(err))
}

func TestDeleteMediaKeepsBlobWhileAnotherRowStillReferencesIt(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()

	locA, _, err := h.CreateLocation(ctx, catalog.Location{Locnam: "Harleigh Breaker"})
	require.NoError(t, err)
	locB, _, err := h.CreateLocation(ctx, catalog.Location{Locnam: "Lattimer Colliery"})
	require.NoError(t, err)

	media := placeImage(t, h, locA.LocID)
	dup := catalog.Media{
		Hash: media.Hash, Kind: catalog.MediaDocument,
		OriginalName: media.OriginalName, OriginalPath: media.OriginalPath, ArchivedPath: media.ArchivedPath,
		LocID: locB.LocID, FileSizeBytes: media.FileSizeBytes,
	}
	require.NoError(t, h.Catalog.InsertMedia(ctx, dup))

	require.NoError(t, h.DeleteMedia(ctx, catalog.MediaImage, media.Hash))

	_, err = os.Stat(media.ArchivedPath)
	assert.NoError(t, err, "blob must survive while a second row still references the hash")
}
