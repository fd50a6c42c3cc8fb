package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizzlechizzle/archive-core/internal/errs"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateLocationDerivesRegionsAndAddress(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	loc, err := s.CreateLocation(ctx, Location{
		Locnam:  "Bethlehem Steel",
		Address: &Address{Street: "123 Main St.", County: "Luzerne", State: "Pennsylvania"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, loc.LocID)
	assert.Len(t, loc.Loc12, 12)
	assert.Equal(t, "Northeast", loc.CensusRegion)
	assert.Equal(t, "Rust Belt", loc.CulturalRegion)
	assert.Equal(t, "PA", loc.Address.State)
	assert.Contains(t, loc.AddressNormalized, "street")
}

func TestCreateLocationRejectsMissingName(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateLocation(context.Background(), Location{})
	assert.Error(t, err)
}

func TestGetLocationRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created, err := s.CreateLocation(ctx, Location{Locnam: "Carbon Plant", GPS: &GPS{Lat: 40.5, Lng: -75.5, Source: GPSSourceManualEntry}})
	require.NoError(t, err)

	fetched, err := s.GetLocation(ctx, created.LocID)
	require.NoError(t, err)
	assert.Equal(t, created.Locnam, fetched.Locnam)
	require.NotNil(t, fetched.GPS)
	assert.Equal(t, 40.5, fetched.GPS.Lat)
}

func TestGetLocationNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetLocation(context.Background(), "missing")
	assert.True(t, isNotFoundErr(err))
}

func TestUpdateLocationPreservesUserSetCulturalRegion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created, err := s.CreateLocation(ctx, Location{
		Locnam: "Old Mill", Address: &Address{State: "OH", County: "Cuyahoga"},
		CulturalRegion: "Heartland", CulturalRegionUserSet: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Heartland", created.CulturalRegion)

	created.Address.County = "Franklin" // still OH, different county
	updated, err := s.UpdateLocation(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, "Heartland", updated.CulturalRegion)
}

func TestDeleteLocationRemovesRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created, err := s.CreateLocation(ctx, Location{Locnam: "Tannery"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteLocation(ctx, created.LocID))
	_, err = s.GetLocation(ctx, created.LocID)
	assert.True(t, isNotFoundErr(err))
}

func TestListLocationsFiltersByFavorite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fav := true
	_, err := s.CreateLocation(ctx, Location{Locnam: "Favorited Site", Favorite: true})
	require.NoError(t, err)
	_, err = s.CreateLocation(ctx, Location{Locnam: "Plain Site"})
	require.NoError(t, err)

	locs, err := s.ListLocations(ctx, LocationFilters{Favorite: &fav})
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "Favorited Site", locs[0].Locnam)
}

func TestToggleFavoriteFlips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created, err := s.CreateLocation(ctx, Location{Locnam: "Warehouse"})
	require.NoError(t, err)

	newVal, err := s.ToggleFavorite(ctx, created.LocID)
	require.NoError(t, err)
	assert.True(t, newVal)

	newVal, err = s.ToggleFavorite(ctx, created.LocID)
	require.NoError(t, err)
	assert.False(t, newVal)
}

func TestFindNearbyUsesHaversineRefinement(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateLocation(ctx, Location{Locnam: "Near", GPS: &GPS{Lat: 40.0, Lng: -75.0}})
	require.NoError(t, err)
	_, err = s.CreateLocation(ctx, Location{Locnam: "Far", GPS: &GPS{Lat: 45.0, Lng: -80.0}})
	require.NoError(t, err)

	results, err := s.FindNearby(ctx, 40.0, -75.0, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Near", results[0].Locnam)
}

func TestFindInBoundsUsesS2Containment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateLocation(ctx, Location{Locnam: "Inside", GPS: &GPS{Lat: 40.5, Lng: -75.5}})
	require.NoError(t, err)
	_, err = s.CreateLocation(ctx, Location{Locnam: "Outside", GPS: &GPS{Lat: 50.0, Lng: -75.5}})
	require.NoError(t, err)

	results, err := s.FindInBounds(ctx, BoundingBox{MinLat: 40.0, MaxLat: 41.0, MinLng: -76.0, MaxLng: -75.0})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Inside", results[0].Locnam)
}

func TestCreateSubLocationEnforcesOnePrimary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	loc, err := s.CreateLocation(ctx, Location{Locnam: "Campus"})
	require.NoError(t, err)

	first, err := s.CreateSubLocation(ctx, SubLocation{LocID: loc.LocID, Subnam: "Building A", IsPrimary: true})
	require.NoError(t, err)
	second, err := s.CreateSubLocation(ctx, SubLocation{LocID: loc.LocID, Subnam: "Building B", IsPrimary: true})
	require.NoError(t, err)

	refreshedFirst, err := s.GetSubLocation(ctx, first.SubID)
	require.NoError(t, err)
	assert.False(t, refreshedFirst.IsPrimary)

	refreshedSecond, err := s.GetSubLocation(ctx, second.SubID)
	require.NoError(t, err)
	assert.True(t, refreshedSecond.IsPrimary)
}

func TestInsertMediaEnforcesHashUniqueness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := Media{Hash: "abc123", Kind: MediaImage, OriginalName: "a.jpg", OriginalPath: "/src/a.jpg", ArchivedPath: "/archive/ab/abc123.jpg"}

	require.NoError(t, s.InsertMedia(ctx, m))
	err := s.InsertMedia(ctx, m)
	assert.True(t, isConflictErr(err))
}

func TestExistsMediaHashAcrossKinds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertMedia(ctx, Media{Hash: "vid123", Kind: MediaVideo, OriginalName: "a.mp4", OriginalPath: "/src/a.mp4", ArchivedPath: "/archive/vi/vid123.mp4"}))

	exists, err := s.ExistsMediaHash(ctx, "vid123")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.ExistsMediaHash(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMoveMediaRebindsLocation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	locA, err := s.CreateLocation(ctx, Location{Locnam: "A"})
	require.NoError(t, err)
	locB, err := s.CreateLocation(ctx, Location{Locnam: "B"})
	require.NoError(t, err)
	require.NoError(t, s.InsertMedia(ctx, Media{Hash: "h1", Kind: MediaImage, OriginalName: "x.jpg", OriginalPath: "/src/x.jpg", ArchivedPath: "/archive/h1/h1.jpg", LocID: locA.LocID}))

	require.NoError(t, s.MoveMedia(ctx, MediaImage, "h1", locB.LocID, ""))
	m, err := s.GetMediaImage(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, locB.LocID, m.LocID)
}

func TestImportLifecycleAndPlannedFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	loc, err := s.CreateLocation(ctx, Location{Locnam: "Import Target"})
	require.NoError(t, err)

	imp, err := s.CreateImport(ctx, loc.LocID, "tester")
	require.NoError(t, err)
	assert.Equal(t, ImportPending, imp.Status)

	require.NoError(t, s.UpsertPlannedFile(ctx, PlannedFile{ImportID: imp.ImportID, SourcePath: "/src/1.jpg", MediaKind: MediaImage, State: PlannedFilePlanned}))
	require.NoError(t, s.UpsertPlannedFile(ctx, PlannedFile{ImportID: imp.ImportID, SourcePath: "/src/1.jpg", MediaKind: MediaImage, State: PlannedFileHashed, SHA256: "h1"}))

	files, err := s.ListPlannedFiles(ctx, imp.ImportID, "")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, PlannedFileHashed, files[0].State)
	assert.Equal(t, "h1", files[0].SHA256)

	require.NoError(t, s.UpdateImportStatus(ctx, imp.ImportID, ImportCompleted))
	updated, err := s.GetImport(ctx, imp.ImportID)
	require.NoError(t, err)
	assert.Equal(t, ImportCompleted, updated.Status)
	assert.NotNil(t, updated.CompletedAt)
}

func TestRecordFixityCheckAndLatest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.RecordFixityCheck(ctx, FixityRecord{MediaSHA: "sha1", MediaType: MediaImage, FilePath: "/a.jpg", ExpectedHash: "sha1", ActualHash: "sha1", Status: FixityValid})
	require.NoError(t, err)
	_, err = s.RecordFixityCheck(ctx, FixityRecord{MediaSHA: "sha1", MediaType: MediaImage, FilePath: "/a.jpg", ExpectedHash: "sha1", ActualHash: "sha1", Status: FixityValid})
	require.NoError(t, err)

	latest, err := s.LatestFixityForHash(ctx, "sha1")
	require.NoError(t, err)
	assert.Equal(t, FixityValid, latest.Status)
}

func TestCheckDuplicateLocationGPS(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateLocation(ctx, Location{Locnam: "Bethlehem Steel Works", GPS: &GPS{Lat: 40.1, Lng: -75.5}})
	require.NoError(t, err)

	match, ok, err := s.CheckDuplicateLocation(ctx, "Bethlehem Steel", true, 40.1004, -75.5, "PA", "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "gps", string(match.MatchType))
}

func TestAddDuplicateExclusionSuppressesMatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	existing, err := s.CreateLocation(ctx, Location{Locnam: "Bethlehem Steel Works", GPS: &GPS{Lat: 40.1, Lng: -75.5}})
	require.NoError(t, err)
	candidate, err := s.CreateLocation(ctx, Location{Locnam: "Bethlehem Steel", GPS: &GPS{Lat: 41.0, Lng: -76.0}})
	require.NoError(t, err)

	require.NoError(t, s.AddDuplicateExclusion(ctx, candidate.LocID, existing.LocID))
	_, ok, err := s.CheckDuplicateLocation(ctx, "Bethlehem Steel", true, 40.1004, -75.5, "PA", candidate.LocID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReferenceMapImportAndDedup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	points := []ReferenceMapPoint{
		{Name: "Smith Hospital", Lat: 40.1234, Lng: -75.5678},
		{Name: "Smith Hosp.", Lat: 40.12341, Lng: -75.56779},
		{Name: "hospital", Lat: 40.12339, Lng: -75.56781},
	}
	_, err := s.CreateReferenceMap(ctx, "/tmp/points.kml", "tester", points)
	require.NoError(t, err)

	all, err := s.GetAllReferenceMapPoints(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	deleted, err := s.DedupReferenceMapPoints(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	remaining, err := s.GetAllReferenceMapPoints(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "Smith Hospital", remaining[0].Name)
	assert.Contains(t, remaining[0].AkaNames, "Smith Hosp.")
}

func isNotFoundErr(err error) bool { return errs.IsNotFound(err) }

func isConflictErr(err error) bool { return errs.IsConflict(err) }
