package archive

import (
	"context"

	"github.com/bizzlechizzle/archive-core/internal/bagit"
	"github.com/bizzlechizzle/archive-core/internal/catalog"
	"github.com/bizzlechizzle/archive-core/internal/matching"
)

// CreateLocation creates a Location, surfacing a duplicate match instead
// of inserting when one is found within the creation-flow thresholds
// (spec.md §4.9 Duplicate detection, §6.4 check_duplicate).
func (h *Handle) CreateLocation(ctx context.Context, loc catalog.Location) (catalog.Location, *matching.DuplicateMatch, error) {
	hasGPS := loc.GPS != nil
	var lat, lng float64
	if hasGPS {
		lat, lng = loc.GPS.Lat, loc.GPS.Lng
	}
	state := ""
	if loc.Address != nil {
		state = loc.Address.State
	}
	if match, found, err := h.Catalog.CheckDuplicateLocation(ctx, loc.Locnam, hasGPS, lat, lng, state, ""); err != nil {
		return catalog.Location{}, nil, err
	} else if found {
		return catalog.Location{}, &match, nil
	}
	created, err := h.Catalog.CreateLocation(ctx, loc)
	return created, nil, err
}

func (h *Handle) UpdateLocation(ctx context.Context, loc catalog.Location) (catalog.Location, error) {
	return h.Catalog.UpdateLocation(ctx, loc)
}

func (h *Handle) GetLocation(ctx context.Context, locID string) (catalog.Location, error) {
	return h.Catalog.GetLocation(ctx, locID)
}

func (h *Handle) ListLocations(ctx context.Context, filters catalog.LocationFilters) ([]catalog.Location, error) {
	return h.Catalog.ListLocations(ctx, filters)
}

func (h *Handle) DeleteLocation(ctx context.Context, locID string) error {
	return h.Catalog.DeleteLocation(ctx, locID)
}

func (h *Handle) CountLocations(ctx context.Context) (int, error) {
	return h.Catalog.CountLocations(ctx)
}

func (h *Handle) RandomLocation(ctx context.Context) (catalog.Location, error) {
	return h.Catalog.RandomLocation(ctx)
}

func (h *Handle) FindNearby(ctx context.Context, lat, lng, radiusKm float64) ([]catalog.Location, error) {
	return h.Catalog.FindNearby(ctx, lat, lng, radiusKm)
}

func (h *Handle) FindInBounds(ctx context.Context, bbox catalog.BoundingBox) ([]catalog.Location, error) {
	return h.Catalog.FindInBounds(ctx, bbox)
}

func (h *Handle) SetFavorite(ctx context.Context, locID string, favorite bool) error {
	return h.Catalog.SetFavorite(ctx, locID, favorite)
}

func (h *Handle) ToggleFavorite(ctx context.Context, locID string) (bool, error) {
	return h.Catalog.ToggleFavorite(ctx, locID)
}

// CheckDuplicate exposes the duplicate check directly, for UI flows that
// probe before attempting a create (spec.md §6.4 check_duplicate).
func (h *Handle) CheckDuplicate(ctx context.Context, name string, hasGPS bool, lat, lng float64, state string) (matching.DuplicateMatch, bool, error) {
	return h.Catalog.CheckDuplicateLocation(ctx, name, hasGPS, lat, lng, state, "")
}

func (h *Handle) AddDuplicateExclusion(ctx context.Context, a, b string) error {
	return h.Catalog.AddDuplicateExclusion(ctx, a, b)
}

func (h *Handle) ApplyRefPointEnrichment(ctx context.Context, locID, pointID string) error {
	return h.Catalog.ApplyRefPointEnrichment(ctx, locID, pointID)
}

// SealLocation writes the BagIt-style sidecar for locID and records its
// resulting status (spec.md §6.1 Per-location BagIt-style sidecar).
func (h *Handle) SealLocation(ctx context.Context, locID string) (bagit.Status, error) {
	return bagit.Seal(ctx, h.Catalog, h.Store, locID)
}

// VerifyLocationSeal re-checks a Location's sidecar against its blobs on
// disk without rewriting it (spec.md §6.1: "Four statuses are exposed").
func (h *Handle) VerifyLocationSeal(ctx context.Context, locID string) (bagit.Status, error) {
	return bagit.Verify(ctx, h.Catalog, h.Store, locID)
}

// SubLocation CRUD isn't in spec.md §6.4's enumerated operation list but
// is needed to populate move_to_sublocation's subid argument (spec.md
// §6.4 Media), so it rides along on the Location group.

func (h *Handle) CreateSubLocation(ctx context.Context, sub catalog.SubLocation) (catalog.SubLocation, error) {
	return h.Catalog.CreateSubLocation(ctx, sub)
}

func (h *Handle) ListSubLocations(ctx context.Context, locID string) ([]catalog.SubLocation, error) {
	return h.Catalog.ListSubLocations(ctx, locID)
}

func (h *Handle) DeleteSubLocation(ctx context.Context, subID string) error {
	return h.Catalog.DeleteSubLocation(ctx, subID)
}
