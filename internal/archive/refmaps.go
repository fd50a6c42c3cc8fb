package archive

import (
	"context"

	"github.com/bizzlechizzle/archive-core/internal/catalog"
	"github.com/bizzlechizzle/archive-core/internal/matching/refmap"
)

// ImportReferenceMap parses path and catalogs every point it yields as
// one ReferenceMap (spec.md §6.4 Reference maps: import_file).
func (h *Handle) ImportReferenceMap(ctx context.Context, path, importedBy string) (catalog.ReferenceMap, error) {
	parsed, err := refmap.ParseFile(path)
	if err != nil {
		return catalog.ReferenceMap{}, err
	}
	points := make([]catalog.ReferenceMapPoint, len(parsed))
	for i, p := range parsed {
		points[i] = catalog.ReferenceMapPoint{
			Name: p.Name, Description: p.Description,
			Lat: p.Lat, Lng: p.Lng,
			Category: p.Category, RawMetadataJSON: p.RawMetadataJSON,
		}
	}
	return h.Catalog.CreateReferenceMap(ctx, path, importedBy, points)
}

// PreviewReferenceMap parses path without cataloging it, rendering the
// parsed points back out as KML for the UI round-trip (spec.md §6.4
// Reference maps: preview_import).
func (h *Handle) PreviewReferenceMap(path string) (string, error) {
	parsed, err := refmap.ParseFile(path)
	if err != nil {
		return "", err
	}
	return refmap.PreviewKML(parsed)
}

func (h *Handle) ListReferenceMaps(ctx context.Context) ([]catalog.ReferenceMap, error) {
	return h.Catalog.ListReferenceMaps(ctx)
}

func (h *Handle) GetReferenceMap(ctx context.Context, mapID string) (catalog.ReferenceMap, error) {
	return h.Catalog.GetReferenceMap(ctx, mapID)
}

func (h *Handle) GetAllReferenceMapPoints(ctx context.Context) ([]catalog.ReferenceMapPoint, error) {
	return h.Catalog.GetAllReferenceMapPoints(ctx)
}

func (h *Handle) DeleteReferenceMap(ctx context.Context, mapID string) error {
	return h.Catalog.DeleteReferenceMap(ctx, mapID)
}

func (h *Handle) DeleteReferenceMapPoint(ctx context.Context, pointID string) error {
	return h.Catalog.DeleteReferenceMapPoint(ctx, pointID)
}

// FindReferenceMapMatches fuzzy-matches query against cataloged points
// (spec.md §6.4 Reference maps: find_matches, §4.9 Name similarity).
func (h *Handle) FindReferenceMapMatches(ctx context.Context, query string, threshold float64, limit int, state string) ([]catalog.ReferenceMapPoint, error) {
	return h.Catalog.FindMatchingReferencePoints(ctx, query, threshold, limit, state)
}

// DedupReferenceMapPoints collapses reference points that share the same
// GPS rounded to 4 decimals into one survivor, folding the other names
// into its aka_names, and returns how many points were deleted (spec.md
// §6.4 Reference maps: dedup). Points already catalogued as Locations are
// handled by PurgeCataloguedReferenceMapPoints.
func (h *Handle) DedupReferenceMapPoints(ctx context.Context) (int, error) {
	return h.Catalog.DedupReferenceMapPoints(ctx)
}

func (h *Handle) FindCataloguedReferenceMapPoints(ctx context.Context) ([]catalog.ReferenceMapPoint, error) {
	return h.Catalog.FindCataloguedPoints(ctx)
}

// PurgeCataloguedReferenceMapPoints drops reference points already
// represented by a Location (spec.md §6.4 Reference maps:
// purge_catalogued_points).
func (h *Handle) PurgeCataloguedReferenceMapPoints(ctx context.Context) (int, error) {
	return h.Catalog.PurgeCataloguedPoints(ctx)
}
