package catalog

import (
	"context"
	"database/sql"
	"math"
	"strings"
	"time"

	"github.com/golang/geo/s2"
	"github.com/google/uuid"

	"github.com/bizzlechizzle/archive-core/internal/errs"
	"github.com/bizzlechizzle/archive-core/internal/matching"
)

// loc12 derives the 12-character path slug from a Location's UUID
// (spec.md §3.1: "loc12 (12-char slug derived from UUID)").
func loc12FromUUID(id string) string {
	compact := strings.ReplaceAll(id, "-", "")
	if len(compact) < 12 {
		return compact
	}
	return compact[:12]
}

// CreateLocation validates and inserts a new Location, deriving its
// region fields and address-normalization triplet, inside one transaction
// (spec.md §4.5 Region/Address derivation on write).
func (s *Store) CreateLocation(ctx context.Context, loc Location) (Location, error) {
	if err := validateLocation(loc); err != nil {
		return Location{}, err
	}
	if loc.LocID == "" {
		loc.LocID = uuid.NewString()
	}
	loc.Loc12 = loc12FromUUID(loc.LocID)
	now := time.Now().UTC()
	loc.LocAdd, loc.LocUp = now, now

	applyDerivedFields(&loc)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return insertLocation(ctx, tx, loc)
	})
	if err != nil {
		return Location{}, err
	}
	return loc, nil
}

// validateLocation enforces spec.md §3.1's required-field and
// range invariants before any write is attempted.
func validateLocation(loc Location) error {
	if strings.TrimSpace(loc.Locnam) == "" {
		return errs.Validation(nil, "locnam is required")
	}
	if loc.Address != nil && loc.Address.State != "" && len(canonicalizeState(loc.Address.State)) != 2 {
		return errs.Validation(nil, "state must be exactly 2 characters, got %q", loc.Address.State)
	}
	if loc.GPS != nil {
		if loc.GPS.Lat < -90 || loc.GPS.Lat > 90 {
			return errs.Validation(nil, "lat %f out of range [-90,90]", loc.GPS.Lat)
		}
		if loc.GPS.Lng < -180 || loc.GPS.Lng > 180 {
			return errs.Validation(nil, "lng %f out of range [-180,180]", loc.GPS.Lng)
		}
	}
	return nil
}

// applyDerivedFields recomputes region fields from state/county and the
// address normalization triplet from the raw address (spec.md §4.5).
// cultural_region is left untouched when the caller has already set it
// (CulturalRegionUserSet), per spec.md: "cultural_region is only
// auto-populated if the user has not already set it".
func applyDerivedFields(loc *Location) {
	var state, county string
	if loc.Address != nil {
		state, county = canonicalizeState(loc.Address.State), loc.Address.County
	}
	region, division, direction, cultural := DeriveRegions(state, county)
	loc.CensusRegion = region
	loc.CensusDivision = division
	loc.StateDirection = direction
	if !loc.CulturalRegionUserSet {
		loc.CulturalRegion = cultural
	}

	if loc.Address != nil {
		input := AddressInput{
			Street: loc.Address.Street, City: loc.Address.City,
			County: loc.Address.County, State: loc.Address.State, Zipcode: loc.Address.Zipcode,
		}
		norm := NormalizeAddress(input)
		loc.AddressRaw = norm.Raw
		loc.AddressNormalized = norm.Normalized
		loc.AddressParsedJSON = norm.ParsedJSON
		loc.Address.State = norm.State
	}
}

func insertLocation(ctx context.Context, tx *sql.Tx, loc Location) error {
	var gps GPS
	if loc.GPS != nil {
		gps = *loc.GPS
	}
	var addr Address
	if loc.Address != nil {
		addr = *loc.Address
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO locations (
			locid, loc12, locnam, akanam, historical_name, type, stype,
			gps_lat, gps_lng, gps_accuracy_m, gps_source, gps_verified_on_map, gps_captured_at,
			geocode_tier, geocode_query,
			address_street, address_city, address_county, address_state, address_zipcode,
			address_confidence, address_geocoded_at, address_raw, address_normalized, address_parsed_json,
			census_region, census_division, state_direction, cultural_region, cultural_region_user_set,
			documentation, access, historic, favorite, project,
			doc_interior, doc_exterior, doc_drone, doc_web_history, built_year, abandoned_year,
			hero_imgsha, bag_status, auth_imp, locadd, locup
		) VALUES (?,?,?,?,?,?,?, ?,?,?,?,?,?, ?,?, ?,?,?,?,?, ?,?,?,?,?, ?,?,?,?,?, ?,?,?,?,?, ?,?,?,?,?,?, ?,?,?,?,?)`,
		loc.LocID, loc.Loc12, loc.Locnam, nullableString(loc.Akanam), nullableString(loc.HistoricalName), nullableString(loc.Type), nullableString(loc.Stype),
		nullableFloat(loc.GPS, gps.Lat), nullableFloat(loc.GPS, gps.Lng), gps.AccuracyM, nullableString(string(gps.Source)), boolToInt(gps.VerifiedOnMap), nullableTime(gps.CapturedAt),
		nullableString(gps.GeocodeTier), nullableString(gps.GeocodeQuery),
		nullableString(addr.Street), nullableString(addr.City), nullableString(addr.County), nullableString(addr.State), nullableString(addr.Zipcode),
		nullableString(string(addr.Confidence)), nullableTime(addr.GeocodedAt), nullableString(loc.AddressRaw), nullableString(loc.AddressNormalized), nullableString(loc.AddressParsedJSON),
		nullableString(loc.CensusRegion), nullableString(loc.CensusDivision), nullableString(loc.StateDirection), nullableString(loc.CulturalRegion), boolToInt(loc.CulturalRegionUserSet),
		nullableString(loc.Documentation), nullableString(loc.Access), boolToInt(loc.Historic), boolToInt(loc.Favorite), boolToInt(loc.Project),
		boolToInt(loc.DocInterior), boolToInt(loc.DocExterior), boolToInt(loc.DocDrone), boolToInt(loc.DocWebHistory), loc.BuiltYear, loc.AbandonedYear,
		nullableString(loc.HeroImgSHA), defaultStr(loc.BagStatus, "none"), nullableString(loc.AuthImp), loc.LocAdd.Format(time.RFC3339), loc.LocUp.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.Conflict(err, "location loc12 %s already exists", loc.Loc12)
		}
		return errs.IO(err, "insert location %s", loc.LocID)
	}
	return nil
}

func defaultStr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func nullableFloat(gps *GPS, v float64) any {
	if gps == nil {
		return nil
	}
	return v
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure, without importing the sqlite3 driver's concrete error type
// into every call site.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetLocation fetches one Location by id.
func (s *Store) GetLocation(ctx context.Context, locID string) (Location, error) {
	row := s.db.QueryRowContext(ctx, locationSelectColumns+" FROM locations WHERE locid = ?", locID)
	loc, err := scanLocation(row)
	if err == sql.ErrNoRows {
		return Location{}, errs.NotFound(err, "location %s", locID)
	}
	if err != nil {
		return Location{}, errs.IO(err, "get location %s", locID)
	}
	return loc, nil
}

// UpdateLocation applies changes to an existing Location, recomputing
// region and address-derived fields only when state/county/GPS actually
// changed (spec.md §4.5: "When creating or updating a Location whose
// state or county or GPS changed, recompute ...").
func (s *Store) UpdateLocation(ctx context.Context, loc Location) (Location, error) {
	if err := validateLocation(loc); err != nil {
		return Location{}, err
	}
	existing, err := s.GetLocation(ctx, loc.LocID)
	if err != nil {
		return Location{}, err
	}

	regionInputsChanged := addressOrGPSChanged(existing, loc)
	if regionInputsChanged {
		applyDerivedFields(&loc)
	} else {
		loc.CensusRegion, loc.CensusDivision = existing.CensusRegion, existing.CensusDivision
		loc.StateDirection, loc.CulturalRegion = existing.StateDirection, existing.CulturalRegion
		loc.AddressRaw, loc.AddressNormalized, loc.AddressParsedJSON = existing.AddressRaw, existing.AddressNormalized, existing.AddressParsedJSON
	}
	loc.LocUp = time.Now().UTC()
	loc.LocAdd = existing.LocAdd
	loc.Loc12 = existing.Loc12

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		return updateLocationRow(ctx, tx, loc)
	})
	if err != nil {
		return Location{}, err
	}
	return loc, nil
}

func addressOrGPSChanged(old, updated Location) bool {
	var oldState, oldCounty string
	if old.Address != nil {
		oldState, oldCounty = old.Address.State, old.Address.County
	}
	var newState, newCounty string
	if updated.Address != nil {
		newState, newCounty = updated.Address.State, updated.Address.County
	}
	if oldState != newState || oldCounty != newCounty {
		return true
	}
	oldLat, oldLng := gpsOf(old.GPS)
	newLat, newLng := gpsOf(updated.GPS)
	return oldLat != newLat || oldLng != newLng
}

func gpsOf(g *GPS) (lat, lng float64) {
	if g == nil {
		return 0, 0
	}
	return g.Lat, g.Lng
}

func updateLocationRow(ctx context.Context, tx *sql.Tx, loc Location) error {
	var gps GPS
	if loc.GPS != nil {
		gps = *loc.GPS
	}
	var addr Address
	if loc.Address != nil {
		addr = *loc.Address
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE locations SET
			locnam=?, akanam=?, historical_name=?, type=?, stype=?,
			gps_lat=?, gps_lng=?, gps_accuracy_m=?, gps_source=?, gps_verified_on_map=?, gps_captured_at=?,
			geocode_tier=?, geocode_query=?,
			address_street=?, address_city=?, address_county=?, address_state=?, address_zipcode=?,
			address_confidence=?, address_geocoded_at=?, address_raw=?, address_normalized=?, address_parsed_json=?,
			census_region=?, census_division=?, state_direction=?, cultural_region=?, cultural_region_user_set=?,
			documentation=?, access=?, historic=?, favorite=?, project=?,
			doc_interior=?, doc_exterior=?, doc_drone=?, doc_web_history=?, built_year=?, abandoned_year=?,
			hero_imgsha=?, auth_imp=?, locup=?
		WHERE locid=?`,
		loc.Locnam, nullableString(loc.Akanam), nullableString(loc.HistoricalName), nullableString(loc.Type), nullableString(loc.Stype),
		nullableFloat(loc.GPS, gps.Lat), nullableFloat(loc.GPS, gps.Lng), gps.AccuracyM, nullableString(string(gps.Source)), boolToInt(gps.VerifiedOnMap), nullableTime(gps.CapturedAt),
		nullableString(gps.GeocodeTier), nullableString(gps.GeocodeQuery),
		nullableString(addr.Street), nullableString(addr.City), nullableString(addr.County), nullableString(addr.State), nullableString(addr.Zipcode),
		nullableString(string(addr.Confidence)), nullableTime(addr.GeocodedAt), nullableString(loc.AddressRaw), nullableString(loc.AddressNormalized), nullableString(loc.AddressParsedJSON),
		nullableString(loc.CensusRegion), nullableString(loc.CensusDivision), nullableString(loc.StateDirection), nullableString(loc.CulturalRegion), boolToInt(loc.CulturalRegionUserSet),
		nullableString(loc.Documentation), nullableString(loc.Access), boolToInt(loc.Historic), boolToInt(loc.Favorite), boolToInt(loc.Project),
		boolToInt(loc.DocInterior), boolToInt(loc.DocExterior), boolToInt(loc.DocDrone), boolToInt(loc.DocWebHistory), loc.BuiltYear, loc.AbandonedYear,
		nullableString(loc.HeroImgSHA), nullableString(loc.AuthImp), loc.LocUp.Format(time.RFC3339),
		loc.LocID,
	)
	if err != nil {
		return errs.IO(err, "update location %s", loc.LocID)
	}
	return nil
}

// DeleteLocation removes a Location, cascading to its SubLocations and
// detaching (not deleting) its media rows (spec.md §3.2 invariant 4).
// Both effects come from the schema's foreign keys: sublocations.locid is
// ON DELETE CASCADE and the media locid/subid columns are ON DELETE SET
// NULL; this function only deletes the location row.
func (s *Store) DeleteLocation(ctx context.Context, locID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM locations WHERE locid = ?`, locID)
		if err != nil {
			return errs.IO(err, "delete location %s", locID)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return errs.NotFound(nil, "location %s", locID)
		}
		return nil
	})
}

// LocationFilters narrows List results (spec.md §6.4: list(filters)).
type LocationFilters struct {
	Type      string
	State     string
	Favorite  *bool
	Historic  *bool
	Limit     int
	Offset    int
}

// ListLocations returns Locations matching filters, newest-updated first.
func (s *Store) ListLocations(ctx context.Context, f LocationFilters) ([]Location, error) {
	query := locationSelectColumns + " FROM locations WHERE 1=1"
	var args []any
	if f.Type != "" {
		query += " AND type = ?"
		args = append(args, f.Type)
	}
	if f.State != "" {
		query += " AND address_state = ?"
		args = append(args, f.State)
	}
	if f.Favorite != nil {
		query += " AND favorite = ?"
		args = append(args, boolToInt(*f.Favorite))
	}
	if f.Historic != nil {
		query += " AND historic = ?"
		args = append(args, boolToInt(*f.Historic))
	}
	query += " ORDER BY locup DESC"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.IO(err, "list locations")
	}
	defer rows.Close()
	return scanLocations(rows)
}

// CountLocations returns the total Location count.
func (s *Store) CountLocations(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM locations`).Scan(&n)
	if err != nil {
		return 0, errs.IO(err, "count locations")
	}
	return n, nil
}

// RandomLocation returns a uniformly random Location (spec.md §6.4:
// random()).
func (s *Store) RandomLocation(ctx context.Context) (Location, error) {
	row := s.db.QueryRowContext(ctx, locationSelectColumns+" FROM locations ORDER BY RANDOM() LIMIT 1")
	loc, err := scanLocation(row)
	if err == sql.ErrNoRows {
		return Location{}, errs.NotFound(err, "no locations in catalog")
	}
	if err != nil {
		return Location{}, errs.IO(err, "random location")
	}
	return loc, nil
}

// FindNearby returns Locations within radiusKm of (lat,lng), using a
// coarse bounding-box SQL filter then refining with exact Haversine
// distance (spec.md §6.4: find_nearby).
func (s *Store) FindNearby(ctx context.Context, lat, lng, radiusKm float64) ([]Location, error) {
	const metersPerDegreeLat = 111_320.0
	latDelta := (radiusKm * 1000) / metersPerDegreeLat
	lngDelta := latDelta / cosDeg(lat)

	rows, err := s.db.QueryContext(ctx,
		locationSelectColumns+` FROM locations
		WHERE gps_lat IS NOT NULL AND gps_lng IS NOT NULL
		  AND gps_lat BETWEEN ? AND ? AND gps_lng BETWEEN ? AND ?`,
		lat-latDelta, lat+latDelta, lng-lngDelta, lng+lngDelta)
	if err != nil {
		return nil, errs.IO(err, "find nearby locations")
	}
	defer rows.Close()
	candidates, err := scanLocations(rows)
	if err != nil {
		return nil, err
	}

	radiusM := radiusKm * 1000
	var out []Location
	for _, c := range candidates {
		if c.GPS == nil {
			continue
		}
		if matching.Haversine(lat, lng, c.GPS.Lat, c.GPS.Lng) <= radiusM {
			out = append(out, c)
		}
	}
	return out, nil
}

func cosDeg(deg float64) float64 {
	v := math.Cos(deg * math.Pi / 180)
	if v < 0.01 {
		v = 0.01 // guard against a near-pole divide-by-zero blowing up lngDelta
	}
	return v
}

// BoundingBox is an inclusive lat/lng rectangle (spec.md §6.4:
// find_in_bounds(bbox)).
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// rect converts bbox to an s2.Rect for exact containment checks.
func (b BoundingBox) rect() s2.Rect {
	return s2.RectFromLatLng(s2.LatLngFromDegrees(b.MinLat, b.MinLng)).
		AddPoint(s2.LatLngFromDegrees(b.MaxLat, b.MaxLng))
}

// FindInBounds returns every Location whose GPS falls within bbox. A
// coarse SQL range scan narrows the candidate set; s2.Rect containment
// gives the exact answer, correctly handling antimeridian-crossing
// boxes that a naive BETWEEN on longitude would get wrong.
func (s *Store) FindInBounds(ctx context.Context, bbox BoundingBox) ([]Location, error) {
	rows, err := s.db.QueryContext(ctx,
		locationSelectColumns+` FROM locations
		WHERE gps_lat IS NOT NULL AND gps_lng IS NOT NULL
		  AND gps_lat BETWEEN ? AND ?`,
		bbox.MinLat, bbox.MaxLat)
	if err != nil {
		return nil, errs.IO(err, "find locations in bounds")
	}
	defer rows.Close()
	candidates, err := scanLocations(rows)
	if err != nil {
		return nil, err
	}

	rect := bbox.rect()
	var out []Location
	for _, c := range candidates {
		if c.GPS == nil {
			continue
		}
		if rect.ContainsLatLng(s2.LatLngFromDegrees(c.GPS.Lat, c.GPS.Lng)) {
			out = append(out, c)
		}
	}
	return out, nil
}

// SetFavorite sets a Location's favorite flag explicitly.
func (s *Store) SetFavorite(ctx context.Context, locID string, favorite bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE locations SET favorite=?, locup=? WHERE locid=?`,
		boolToInt(favorite), nowISO(), locID)
	if err != nil {
		return errs.IO(err, "set favorite for %s", locID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound(nil, "location %s", locID)
	}
	return nil
}

// SetBagStatus records a Location's BagIt seal status and, when sealedAt
// is non-nil, the time it was last (re)sealed (spec.md §6.1 Per-location
// BagIt-style sidecar: "Four statuses are exposed: none / valid /
// incomplete / invalid").
func (s *Store) SetBagStatus(ctx context.Context, locID, status string, sealedAt *time.Time) error {
	var sealedAtStr any
	if sealedAt != nil {
		sealedAtStr = sealedAt.Format(time.RFC3339)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE locations SET bag_status=?, bag_sealed_at=?, locup=? WHERE locid=?`,
		status, sealedAtStr, nowISO(), locID)
	if err != nil {
		return errs.IO(err, "set bag status for %s", locID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound(nil, "location %s", locID)
	}
	return nil
}

// ToggleFavorite flips a Location's favorite flag and returns the new
// value.
func (s *Store) ToggleFavorite(ctx context.Context, locID string) (bool, error) {
	loc, err := s.GetLocation(ctx, locID)
	if err != nil {
		return false, err
	}
	newVal := !loc.Favorite
	if err := s.SetFavorite(ctx, locID, newVal); err != nil {
		return false, err
	}
	return newVal, nil
}

const locationSelectColumns = `SELECT
	locid, loc12, locnam, akanam, historical_name, type, stype,
	gps_lat, gps_lng, gps_accuracy_m, gps_source, gps_verified_on_map, gps_captured_at,
	geocode_tier, geocode_query,
	address_street, address_city, address_county, address_state, address_zipcode,
	address_confidence, address_geocoded_at, address_raw, address_normalized, address_parsed_json,
	census_region, census_division, state_direction, cultural_region, cultural_region_user_set,
	documentation, access, historic, favorite, project,
	doc_interior, doc_exterior, doc_drone, doc_web_history, built_year, abandoned_year,
	hero_imgsha, bag_status, bag_sealed_at, auth_imp, locadd, locup`

// rowScanner abstracts *sql.Row and *sql.Rows for scanLocation.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(row rowScanner) (Location, error) {
	var loc Location
	var akanam, historicalName, typ, stype sql.NullString
	var gpsLat, gpsLng, gpsAccuracy sql.NullFloat64
	var gpsSource, gpsCapturedAt, geocodeTier, geocodeQuery sql.NullString
	var gpsVerified int
	var street, city, county, state, zipcode, confidence, geocodedAt sql.NullString
	var addressRaw, addressNormalized, addressParsedJSON sql.NullString
	var censusRegion, censusDivision, stateDirection, culturalRegion sql.NullString
	var culturalRegionUserSet int
	var documentation, access sql.NullString
	var historic, favorite, project, docInterior, docExterior, docDrone, docWebHistory int
	var builtYear, abandonedYear sql.NullInt64
	var heroImgSHA, bagStatus, bagSealedAt, authImp sql.NullString
	var locadd, locup string

	err := row.Scan(
		&loc.LocID, &loc.Loc12, &loc.Locnam, &akanam, &historicalName, &typ, &stype,
		&gpsLat, &gpsLng, &gpsAccuracy, &gpsSource, &gpsVerified, &gpsCapturedAt,
		&geocodeTier, &geocodeQuery,
		&street, &city, &county, &state, &zipcode,
		&confidence, &geocodedAt, &addressRaw, &addressNormalized, &addressParsedJSON,
		&censusRegion, &censusDivision, &stateDirection, &culturalRegion, &culturalRegionUserSet,
		&documentation, &access, &historic, &favorite, &project,
		&docInterior, &docExterior, &docDrone, &docWebHistory, &builtYear, &abandonedYear,
		&heroImgSHA, &bagStatus, &bagSealedAt, &authImp, &locadd, &locup,
	)
	if err != nil {
		return Location{}, err
	}

	loc.Akanam, loc.HistoricalName, loc.Type, loc.Stype = akanam.String, historicalName.String, typ.String, stype.String
	loc.CensusRegion, loc.CensusDivision, loc.StateDirection, loc.CulturalRegion =
		censusRegion.String, censusDivision.String, stateDirection.String, culturalRegion.String
	loc.CulturalRegionUserSet = culturalRegionUserSet != 0
	loc.Documentation, loc.Access = documentation.String, access.String
	loc.Historic, loc.Favorite, loc.Project = historic != 0, favorite != 0, project != 0
	loc.DocInterior, loc.DocExterior, loc.DocDrone, loc.DocWebHistory = docInterior != 0, docExterior != 0, docDrone != 0, docWebHistory != 0
	if builtYear.Valid {
		v := int(builtYear.Int64)
		loc.BuiltYear = &v
	}
	if abandonedYear.Valid {
		v := int(abandonedYear.Int64)
		loc.AbandonedYear = &v
	}
	loc.HeroImgSHA = heroImgSHA.String
	loc.BagStatus = bagStatus.String
	loc.AuthImp = authImp.String
	loc.AddressRaw, loc.AddressNormalized, loc.AddressParsedJSON = addressRaw.String, addressNormalized.String, addressParsedJSON.String
	loc.LocAdd, _ = time.Parse(time.RFC3339, locadd)
	loc.LocUp, _ = time.Parse(time.RFC3339, locup)
	if bagSealedAt.Valid {
		if t, err := time.Parse(time.RFC3339, bagSealedAt.String); err == nil {
			loc.BagSealedAt = &t
		}
	}

	if gpsLat.Valid && gpsLng.Valid {
		gps := &GPS{Lat: gpsLat.Float64, Lng: gpsLng.Float64, Source: GPSSource(gpsSource.String), VerifiedOnMap: gpsVerified != 0}
		if gpsAccuracy.Valid {
			gps.AccuracyM = &gpsAccuracy.Float64
		}
		gps.GeocodeTier, gps.GeocodeQuery = geocodeTier.String, geocodeQuery.String
		if gpsCapturedAt.Valid {
			if t, err := time.Parse(time.RFC3339, gpsCapturedAt.String); err == nil {
				gps.CapturedAt = &t
			}
		}
		loc.GPS = gps
	}

	if street.Valid || city.Valid || county.Valid || state.Valid || zipcode.Valid {
		addr := &Address{
			Street: street.String, City: city.String, County: county.String,
			State: state.String, Zipcode: zipcode.String, Confidence: AddressConfidence(confidence.String),
		}
		if geocodedAt.Valid {
			if t, err := time.Parse(time.RFC3339, geocodedAt.String); err == nil {
				addr.GeocodedAt = &t
			}
		}
		loc.Address = addr
	}

	return loc, nil
}

func scanLocations(rows *sql.Rows) ([]Location, error) {
	var out []Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, errs.IO(err, "scan location row")
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}
