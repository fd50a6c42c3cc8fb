package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/bizzlechizzle/archive-core/internal/errs"
	"github.com/bizzlechizzle/archive-core/internal/matching"
)

// CreateReferenceMap registers an imported KML/KMZ/GPX/GeoJSON/CSV file
// and its parsed points in one transaction (spec.md §3.1 ReferenceMap,
// §6.4 import_file(path, actor)).
func (s *Store) CreateReferenceMap(ctx context.Context, sourcePath, importedBy string, points []ReferenceMapPoint) (ReferenceMap, error) {
	m := ReferenceMap{
		MapID:      uuid.NewString(),
		SourcePath: sourcePath,
		ImportedAt: time.Now().UTC(),
		ImportedBy: importedBy,
		PointCount: len(points),
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO reference_maps (map_id, source_path, imported_at, imported_by, point_count)
			VALUES (?,?,?,?,?)`,
			m.MapID, m.SourcePath, m.ImportedAt.Format(time.RFC3339), nullableString(m.ImportedBy), m.PointCount,
		)
		if err != nil {
			return errs.IO(err, "insert reference map %s", sourcePath)
		}
		for _, p := range points {
			if p.PointID == "" {
				p.PointID = uuid.NewString()
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO reference_map_points (point_id, map_id, name, description, lat, lng, state, category, raw_metadata_json, aka_names)
				VALUES (?,?,?,?,?,?,?,?,?,?)`,
				p.PointID, m.MapID, p.Name, nullableString(p.Description), p.Lat, p.Lng,
				nullableString(p.State), nullableString(p.Category), nullableString(p.RawMetadataJSON), nullableString(p.AkaNames),
			)
			if err != nil {
				return errs.IO(err, "insert reference map point %s", p.Name)
			}
		}
		return nil
	})
	if err != nil {
		return ReferenceMap{}, err
	}
	return m, nil
}

// ListReferenceMaps returns every imported ReferenceMap.
func (s *Store) ListReferenceMaps(ctx context.Context) ([]ReferenceMap, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT map_id, source_path, imported_at, imported_by, point_count FROM reference_maps ORDER BY imported_at DESC`)
	if err != nil {
		return nil, errs.IO(err, "list reference maps")
	}
	defer rows.Close()

	var out []ReferenceMap
	for rows.Next() {
		var m ReferenceMap
		var importedBy sql.NullString
		var importedAt string
		if err := rows.Scan(&m.MapID, &m.SourcePath, &importedAt, &importedBy, &m.PointCount); err != nil {
			return nil, errs.IO(err, "scan reference map row")
		}
		m.ImportedBy = importedBy.String
		m.ImportedAt, _ = time.Parse(time.RFC3339, importedAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetReferenceMap fetches one ReferenceMap by id.
func (s *Store) GetReferenceMap(ctx context.Context, mapID string) (ReferenceMap, error) {
	row := s.db.QueryRowContext(ctx, `SELECT map_id, source_path, imported_at, imported_by, point_count FROM reference_maps WHERE map_id = ?`, mapID)
	var m ReferenceMap
	var importedBy sql.NullString
	var importedAt string
	err := row.Scan(&m.MapID, &m.SourcePath, &importedAt, &importedBy, &m.PointCount)
	if err == sql.ErrNoRows {
		return ReferenceMap{}, errs.NotFound(err, "reference map %s", mapID)
	}
	if err != nil {
		return ReferenceMap{}, errs.IO(err, "get reference map %s", mapID)
	}
	m.ImportedBy = importedBy.String
	m.ImportedAt, _ = time.Parse(time.RFC3339, importedAt)
	return m, nil
}

// GetAllReferenceMapPoints returns every point across every ReferenceMap
// (spec.md §6.4 get_all_points()).
func (s *Store) GetAllReferenceMapPoints(ctx context.Context) ([]ReferenceMapPoint, error) {
	rows, err := s.db.QueryContext(ctx, refPointSelectColumns+` FROM reference_map_points`)
	if err != nil {
		return nil, errs.IO(err, "get all reference map points")
	}
	defer rows.Close()
	return scanRefPoints(rows)
}

// DeleteReferenceMap removes a ReferenceMap and cascades to its points.
func (s *Store) DeleteReferenceMap(ctx context.Context, mapID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reference_maps WHERE map_id = ?`, mapID)
	if err != nil {
		return errs.IO(err, "delete reference map %s", mapID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound(nil, "reference map %s", mapID)
	}
	return nil
}

// DeleteReferenceMapPoint removes a single point.
func (s *Store) DeleteReferenceMapPoint(ctx context.Context, pointID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reference_map_points WHERE point_id = ?`, pointID)
	if err != nil {
		return errs.IO(err, "delete reference map point %s", pointID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound(nil, "reference map point %s", pointID)
	}
	return nil
}

// FindMatchingReferencePoints implements spec.md §6.4's
// find_matches(query, {threshold, limit, state?}): Jaro-Winkler name
// similarity against every point's name, optionally scoped to a state.
func (s *Store) FindMatchingReferencePoints(ctx context.Context, query string, threshold float64, limit int, state string) ([]ReferenceMapPoint, error) {
	sqlQuery := refPointSelectColumns + ` FROM reference_map_points WHERE 1=1`
	var args []any
	if state != "" {
		sqlQuery += " AND state = ?"
		args = append(args, state)
	}
	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, errs.IO(err, "find matching reference points")
	}
	defer rows.Close()
	all, err := scanRefPoints(rows)
	if err != nil {
		return nil, err
	}

	type scored struct {
		point ReferenceMapPoint
		sim   float64
	}
	var matches []scored
	for _, p := range all {
		sim := matching.NameSimilarity(query, p.Name)
		if sim >= threshold {
			matches = append(matches, scored{p, sim})
		}
	}
	// Simple insertion sort by similarity descending; result sets here
	// are small (reference-map point counts, not catalog-wide media).
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].sim > matches[j-1].sim; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]ReferenceMapPoint, len(matches))
	for i, m := range matches {
		out[i] = m.point
	}
	return out, nil
}

// DedupReferenceMapPoints applies matching.DedupReferencePoints across
// every point in the catalog, merges names into aka_names on the
// survivor, and deletes the rest (spec.md §6.4 dedup(), §4.9 "Reference-map
// deduplication").
func (s *Store) DedupReferenceMapPoints(ctx context.Context) (int, error) {
	points, err := s.GetAllReferenceMapPoints(ctx)
	if err != nil {
		return 0, err
	}
	candidates := make([]matching.RefPointCandidate, len(points))
	for i, p := range points {
		candidates[i] = matching.RefPointCandidate{PointID: p.PointID, Name: p.Name, Lat: p.Lat, Lng: p.Lng}
	}
	groups := matching.DedupReferencePoints(candidates)

	deleted := 0
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		for _, g := range groups {
			if len(g.DeletedPointIDs) == 0 {
				continue
			}
			if g.AkaNames != "" {
				if _, err := tx.ExecContext(ctx, `UPDATE reference_map_points SET aka_names = ? WHERE point_id = ?`, g.AkaNames, g.Survivor.PointID); err != nil {
					return errs.IO(err, "set aka_names on %s", g.Survivor.PointID)
				}
			}
			for _, id := range g.DeletedPointIDs {
				if _, err := tx.ExecContext(ctx, `DELETE FROM reference_map_points WHERE point_id = ?`, id); err != nil {
					return errs.IO(err, "delete merged point %s", id)
				}
				deleted++
			}
		}
		return nil
	})
	return deleted, err
}

// FindCataloguedPoints returns every reference point matching.IsCatalogued
// considers already represented by an existing Location (spec.md §6.4
// find_catalogued_points()).
func (s *Store) FindCataloguedPoints(ctx context.Context) ([]ReferenceMapPoint, error) {
	points, err := s.GetAllReferenceMapPoints(ctx)
	if err != nil {
		return nil, err
	}
	locs, err := s.ListLocations(ctx, LocationFilters{})
	if err != nil {
		return nil, err
	}
	candidates := locationCandidates(locs)

	var out []ReferenceMapPoint
	for _, p := range points {
		if matching.IsCatalogued(p.Name, p.Lat, p.Lng, candidates) {
			out = append(out, p)
		}
	}
	return out, nil
}

// PurgeCataloguedPoints deletes every already-catalogued reference point
// and returns the count removed (spec.md §6.4 purge_catalogued_points()).
func (s *Store) PurgeCataloguedPoints(ctx context.Context) (int, error) {
	points, err := s.FindCataloguedPoints(ctx)
	if err != nil {
		return 0, err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		for _, p := range points {
			if _, err := tx.ExecContext(ctx, `DELETE FROM reference_map_points WHERE point_id = ?`, p.PointID); err != nil {
				return errs.IO(err, "purge catalogued point %s", p.PointID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(points), nil
}

func locationCandidates(locs []Location) []matching.LocationCandidate {
	out := make([]matching.LocationCandidate, len(locs))
	for i, l := range locs {
		c := matching.LocationCandidate{
			LocID: l.LocID, Locnam: l.Locnam, Akanam: l.Akanam, HistoricalName: l.HistoricalName,
		}
		if l.Address != nil {
			c.State = l.Address.State
		}
		if l.GPS != nil {
			c.HasGPS, c.Lat, c.Lng = true, l.GPS.Lat, l.GPS.Lng
		}
		out[i] = c
	}
	return out
}

// CheckDuplicateLocation runs matching.CheckDuplicate against every
// existing Location (spec.md §6.4 check_duplicate(name, gps?)).
func (s *Store) CheckDuplicateLocation(ctx context.Context, name string, hasGPS bool, lat, lng float64, state, candidateLocID string) (matching.DuplicateMatch, bool, error) {
	locs, err := s.ListLocations(ctx, LocationFilters{})
	if err != nil {
		return matching.DuplicateMatch{}, false, err
	}
	exclusions, err := s.ListDuplicateExclusions(ctx)
	if err != nil {
		return matching.DuplicateMatch{}, false, err
	}
	match, ok := matching.CheckDuplicate(name, hasGPS, lat, lng, state, candidateLocID, locationCandidates(locs), exclusions)
	return match, ok, nil
}

// AddDuplicateExclusion records that two Locations are known not to be
// duplicates (spec.md §6.4 add_duplicate_exclusion(a, b)).
func (s *Store) AddDuplicateExclusion(ctx context.Context, a, b string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO duplicate_exclusions (name_a, name_b, created_at) VALUES (?,?,?)`,
		a, b, nowISO())
	if err != nil {
		return errs.IO(err, "add duplicate exclusion %s/%s", a, b)
	}
	return nil
}

// ListDuplicateExclusions returns every recorded exclusion pair.
func (s *Store) ListDuplicateExclusions(ctx context.Context) ([]matching.ExclusionPair, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name_a, name_b FROM duplicate_exclusions`)
	if err != nil {
		return nil, errs.IO(err, "list duplicate exclusions")
	}
	defer rows.Close()

	var out []matching.ExclusionPair
	for rows.Next() {
		var p matching.ExclusionPair
		if err := rows.Scan(&p.A, &p.B); err != nil {
			return nil, errs.IO(err, "scan duplicate exclusion row")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ApplyRefPointEnrichment copies a reference point's GPS onto a Location
// missing GPS (spec.md §4.9 "Enrichment", §6.4
// apply_ref_point_enrichment(locid, point_id)). Source is always recorded
// as ref_map_point, never verified_on_map.
func (s *Store) ApplyRefPointEnrichment(ctx context.Context, locID, pointID string) error {
	loc, err := s.GetLocation(ctx, locID)
	if err != nil {
		return err
	}
	if loc.GPS != nil {
		return errs.Conflict(nil, "location %s already has GPS", locID)
	}

	row := s.db.QueryRowContext(ctx, `SELECT name, lat, lng FROM reference_map_points WHERE point_id = ?`, pointID)
	var name string
	var lat, lng float64
	if err := row.Scan(&name, &lat, &lng); err != nil {
		if err == sql.ErrNoRows {
			return errs.NotFound(err, "reference map point %s", pointID)
		}
		return errs.IO(err, "get reference map point %s", pointID)
	}

	var state string
	if loc.Address != nil {
		state = loc.Address.State
	}
	if !matching.EnrichmentCandidate(loc.Locnam, state, false, name, state) {
		return errs.Validation(nil, "location %s and point %s do not meet the enrichment similarity threshold", locID, pointID)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE locations SET gps_lat=?, gps_lng=?, gps_source=?, gps_verified_on_map=0, locup=? WHERE locid=?`,
		lat, lng, string(GPSSourceRefMapPoint), nowISO(), locID)
	if err != nil {
		return errs.IO(err, "apply ref point enrichment to %s", locID)
	}
	return nil
}

const refPointSelectColumns = `SELECT point_id, map_id, name, description, lat, lng, state, category, raw_metadata_json, aka_names`

func scanRefPoints(rows *sql.Rows) ([]ReferenceMapPoint, error) {
	var out []ReferenceMapPoint
	for rows.Next() {
		var p ReferenceMapPoint
		var description, state, category, rawMetadata, akaNames sql.NullString
		if err := rows.Scan(&p.PointID, &p.MapID, &p.Name, &description, &p.Lat, &p.Lng, &state, &category, &rawMetadata, &akaNames); err != nil {
			return nil, errs.IO(err, "scan reference map point row")
		}
		p.Description, p.State, p.Category, p.RawMetadataJSON, p.AkaNames = description.String, state.String, category.String, rawMetadata.String, akaNames.String
		out = append(out, p)
	}
	return out, rows.Err()
}
