package importpipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizzlechizzle/archive-core/internal/catalog"
	"github.com/bizzlechizzle/archive-core/internal/contentstore"
	"github.com/bizzlechizzle/archive-core/internal/metadataprobe"
)

func newTestPipeline(t *testing.T) (*Pipeline, *catalog.Store, string) {
	t.Helper()
	catPath := filepath.Join(t.TempDir(), "catalog.db")
	cat, err := catalog.Open(catPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	store, err := contentstore.New(t.TempDir(), nil)
	require.NoError(t, err)

	probe, err := metadataprobe.New(nil, nil, nil, 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = probe.Close() })

	p := New(cat, store, probe, nil, nil)
	return p, cat, t.TempDir()
}

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func testLocation(t *testing.T, cat *catalog.Store) catalog.Location {
	t.Helper()
	loc, err := cat.CreateLocation(context.Background(), catalog.Location{Locnam: "Bethlehem Steel No. 2"})
	require.NoError(t, err)
	return loc
}

func TestClassify(t *testing.T) {
	assert.Equal(t, classImage, classify("/a/DSC001.JPG"))
	assert.Equal(t, classVideo, classify("/a/clip.mp4"))
	assert.Equal(t, classDocument, classify("/a/deed.pdf"))
	assert.Equal(t, classMap, classify("/a/route.gpx"))
	assert.Equal(t, classSidecar, classify("/a/DSC001.xmp"))
	assert.Equal(t, classSkip, classify("/a/notes.ini"))
}

func TestScanAssociatesSidecarsByStem(t *testing.T) {
	p, cat, _ := newTestPipeline(t)
	src := t.TempDir()
	writeFile(t, src, "DSC001.jpg", "image bytes")
	writeFile(t, src, "DSC001.xmp", "<xmp/>")
	writeFile(t, src, ".hidden.jpg", "should be skipped")

	ctx := context.Background()
	loc := testLocation(t, cat)
	imp, err := cat.CreateImport(ctx, loc.LocID, "test")
	require.NoError(t, err)

	require.NoError(t, p.scan(ctx, imp.ImportID, []string{src}))

	all, err := cat.ListPlannedFiles(ctx, imp.ImportID, "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	var sidecar, principal catalog.PlannedFile
	for _, pf := range all {
		if pf.MediaKind == catalog.MediaImage {
			principal = pf
		} else {
			sidecar = pf
		}
	}
	assert.Equal(t, catalog.PlannedFilePlanned, principal.State)
	assert.Equal(t, catalog.PlannedFileSkipped, sidecar.State)
	assert.Equal(t, principal.SourcePath, sidecar.SidecarOf)
}

func TestHashDeduplicatesInSessionAndAcrossSessions(t *testing.T) {
	p, cat, _ := newTestPipeline(t)
	src := t.TempDir()
	pathA := writeFile(t, src, "a.jpg", "same bytes")
	pathB := writeFile(t, src, "b.jpg", "same bytes")

	ctx := context.Background()
	loc := testLocation(t, cat)
	imp, err := cat.CreateImport(ctx, loc.LocID, "test")
	require.NoError(t, err)
	require.NoError(t, p.scan(ctx, imp.ImportID, []string{src}))
	require.NoError(t, p.hashPlannedFiles(ctx, imp.ImportID))

	all, err := cat.ListPlannedFiles(ctx, imp.ImportID, "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	states := make(map[string]catalog.PlannedFileState, 2)
	for _, pf := range all {
		states[pf.SourcePath] = pf.State
	}
	assert.Equal(t, catalog.PlannedFileHashed, states[pathA])
	assert.Equal(t, catalog.PlannedFileDuplicate, states[pathB])
}

func TestCopyPlacesHashedFiles(t *testing.T) {
	p, cat, _ := newTestPipeline(t)
	src := t.TempDir()
	writeFile(t, src, "a.jpg", "placeable bytes")

	ctx := context.Background()
	loc := testLocation(t, cat)
	imp, err := cat.CreateImport(ctx, loc.LocID, "test")
	require.NoError(t, err)
	require.NoError(t, p.scan(ctx, imp.ImportID, []string{src}))
	require.NoError(t, p.hashPlannedFiles(ctx, imp.ImportID))
	require.NoError(t, p.copyPlannedFiles(ctx, imp.ImportID, Options{VerifyChecksums: true}))

	placed, err := cat.ListPlannedFiles(ctx, imp.ImportID, catalog.PlannedFilePlaced)
	require.NoError(t, err)
	require.Len(t, placed, 1)
	assert.FileExists(t, placed[0].PlacedPath)
}

func TestGPSMismatchWarningThresholds(t *testing.T) {
	loc := catalog.Location{GPS: &catalog.GPS{Lat: 40.0, Lng: -75.0}}
	lat, lng := 40.0, -75.0
	assert.Nil(t, gpsMismatchWarning(loc, &lat, &lng))

	farLat := 40.001
	w := gpsMismatchWarning(loc, &farLat, &lng)
	require.NotNil(t, w)
	assert.Equal(t, "minor", w.Severity)

	veryFarLat := 40.01
	w = gpsMismatchWarning(loc, &veryFarLat, &lng)
	require.NotNil(t, w)
	assert.Equal(t, "major", w.Severity)
}

func TestRunEndToEndImportsAndEnqueuesNoJobsWithoutQueue(t *testing.T) {
	p, cat, _ := newTestPipeline(t)
	src := t.TempDir()
	writeFile(t, src, "photo.jpg", "unique bytes for run")

	ctx := context.Background()
	loc := testLocation(t, cat)

	result, err := p.Run(ctx, Options{LocID: loc.LocID, SourcePaths: []string{src}, UseHardlinks: false})
	require.NoError(t, err)

	counts := result.Counts()
	assert.Equal(t, 1, counts[OutcomeImported])

	imp, err := cat.GetImport(ctx, result.ImportID)
	require.NoError(t, err)
	assert.Equal(t, catalog.ImportCompleted, imp.Status)
	assert.Equal(t, 1, imp.CountImages)
}

func TestRunDeletesOriginalsWhenRequested(t *testing.T) {
	p, cat, _ := newTestPipeline(t)
	src := t.TempDir()
	path := writeFile(t, src, "photo.jpg", "bytes to delete")

	ctx := context.Background()
	loc := testLocation(t, cat)

	_, err := p.Run(ctx, Options{LocID: loc.LocID, SourcePaths: []string{src}, DeleteOriginals: true})
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCancelStopsSessionBeforeCompletion(t *testing.T) {
	p, cat, _ := newTestPipeline(t)
	src := t.TempDir()
	writeFile(t, src, "photo.jpg", "cancel me")

	ctx := context.Background()
	loc := testLocation(t, cat)
	imp, err := cat.CreateImport(ctx, loc.LocID, "test")
	require.NoError(t, err)
	require.NoError(t, cat.RequestImportCancel(ctx, imp.ImportID))

	result, err := p.runFrom(ctx, imp.ImportID, Options{LocID: loc.LocID, SourcePaths: []string{src}}, catalog.ImportPending)
	require.Error(t, err)
	require.NotNil(t, result)

	final, err := cat.GetImport(ctx, imp.ImportID)
	require.NoError(t, err)
	assert.Equal(t, catalog.ImportCancelled, final.Status)
}

func TestResumeSkipsCompletedScanStep(t *testing.T) {
	p, cat, _ := newTestPipeline(t)
	src := t.TempDir()
	writeFile(t, src, "photo.jpg", "resume me")

	ctx := context.Background()
	loc := testLocation(t, cat)
	imp, err := cat.CreateImport(ctx, loc.LocID, "test")
	require.NoError(t, err)
	require.NoError(t, p.scan(ctx, imp.ImportID, []string{src}))
	require.NoError(t, cat.UpdateImportStatus(ctx, imp.ImportID, catalog.ImportHashing))

	result, err := p.Resume(ctx, imp.ImportID, Options{LocID: loc.LocID, SourcePaths: []string{src}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Counts()[OutcomeImported])
}

func TestStatusReportsLiveResultWhileTracked(t *testing.T) {
	p, cat, _ := newTestPipeline(t)
	src := t.TempDir()
	writeFile(t, src, "photo.jpg", "status me")

	ctx := context.Background()
	loc := testLocation(t, cat)
	result, err := p.Run(ctx, Options{LocID: loc.LocID, SourcePaths: []string{src}})
	require.NoError(t, err)

	status, err := p.Status(ctx, result.ImportID)
	require.NoError(t, err)
	assert.True(t, status.LiveAvailable)
	assert.Equal(t, catalog.ImportCompleted, status.Import.Status)
}
