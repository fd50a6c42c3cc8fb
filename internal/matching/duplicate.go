package matching

// LocationCandidate is the minimal shape matching needs from a catalog
// Location to run duplicate detection; internal/catalog's Location
// satisfies this structurally without matching importing catalog.
type LocationCandidate struct {
	LocID          string
	Locnam         string
	Akanam         string
	HistoricalName string
	State          string
	Lat            float64
	Lng            float64
	HasGPS         bool
}

// names returns the non-empty name variants spec.md §4.9 checks against
// ({locnam, akanam, historical_name}).
func (c LocationCandidate) names() []string {
	var out []string
	for _, n := range []string{c.Locnam, c.Akanam, c.HistoricalName} {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// MatchType classifies how a duplicate was detected (spec.md §4.9,
// §6.4 check_duplicate result shape).
type MatchType string

const (
	MatchByGPS  MatchType = "gps"
	MatchByName MatchType = "name"
)

// DuplicateMatch is the result of CheckDuplicate finding an existing
// Location that looks like the same place.
type DuplicateMatch struct {
	MatchType  MatchType
	LocationID string
	DistanceM  float64
	Similarity float64
}

// DuplicateGPSThresholdMeters is the "within 150m" GPS-match radius
// (spec.md §4.9 "Catalogued-point purge", reused here for GPS-present
// creation-time duplicate checks per the invariant that identical
// coordinates are always a match).
const DuplicateGPSThresholdMeters = 150.0

// nameOnlyDistanceCapMeters bounds name-only matches to the same state or
// within 500m, "to avoid 'Main St' matches across the country" (spec.md
// §4.9).
const nameOnlyDistanceCapMeters = 500.0

// nameOnlyCreationThreshold is the 0.50 Jaro-Winkler bar for user-facing
// creation flows (spec.md §4.9, Open Question resolution in DESIGN.md).
const nameOnlyCreationThreshold = 0.50

// ExclusionPair identifies two Locations the user has declared are not
// duplicates of each other (spec.md §6.4 add_duplicate_exclusion).
type ExclusionPair struct {
	A, B string
}

func excluded(pairs []ExclusionPair, a, b string) bool {
	for _, p := range pairs {
		if (p.A == a && p.B == b) || (p.A == b && p.B == a) {
			return true
		}
	}
	return false
}

// CheckDuplicate implements spec.md §4.9's "Duplicate detection (name +
// GPS)": if gps is present and within 150m of an existing Location's GPS,
// it's a match (matchType=gps); else if name similarity against any of an
// existing Location's name variants is >= 0.50 AND (same state OR within
// 500m), it's a match (matchType=name). Exclusions suppress matches
// between specific pairs. candidateLocID is the id of the Location being
// created/checked, if any (empty for a brand-new candidate), so
// self-matches and excluded pairs can be filtered.
func CheckDuplicate(name string, hasGPS bool, lat, lng float64, state string, candidateLocID string, existing []LocationCandidate, exclusions []ExclusionPair) (DuplicateMatch, bool) {
	if hasGPS {
		for _, c := range existing {
			if c.LocID == candidateLocID || !c.HasGPS {
				continue
			}
			if excluded(exclusions, candidateLocID, c.LocID) {
				continue
			}
			d := Haversine(lat, lng, c.Lat, c.Lng)
			if d <= DuplicateGPSThresholdMeters {
				return DuplicateMatch{MatchType: MatchByGPS, LocationID: c.LocID, DistanceM: d}, true
			}
		}
	}

	for _, c := range existing {
		if c.LocID == candidateLocID {
			continue
		}
		if excluded(exclusions, candidateLocID, c.LocID) {
			continue
		}
		best := 0.0
		for _, n := range c.names() {
			if sim := NameSimilarity(name, n); sim > best {
				best = sim
			}
		}
		if best < nameOnlyCreationThreshold {
			continue
		}
		sameState := state != "" && c.State != "" && state == c.State
		var dist float64
		withinDistance := sameState
		if hasGPS && c.HasGPS {
			dist = Haversine(lat, lng, c.Lat, c.Lng)
			withinDistance = withinDistance || dist <= nameOnlyDistanceCapMeters
		}
		if !withinDistance {
			continue
		}
		return DuplicateMatch{MatchType: MatchByName, LocationID: c.LocID, DistanceM: dist, Similarity: best}, true
	}

	return DuplicateMatch{}, false
}

// purgeGPSThresholdMeters and purgeNameSimilarityThreshold are the 0.85
// bulk-purge/enrichment thresholds (spec.md §4.9, DESIGN.md Open Question
// resolution: 0.85 for bulk purge/enrichment vs 0.50 for creation flows).
const (
	purgeGPSThresholdMeters      = 150.0
	purgeNameSimilarityThreshold = 0.85
	purgeNameDistanceCapMeters   = 500.0
)

// IsCatalogued reports whether a reference-map point at (lat,lng) with
// name is "already catalogued" against existing Locations, per spec.md
// §4.9's "Catalogued-point purge" rule.
func IsCatalogued(name string, lat, lng float64, existing []LocationCandidate) bool {
	for _, c := range existing {
		if !c.HasGPS {
			continue
		}
		if Haversine(lat, lng, c.Lat, c.Lng) <= purgeGPSThresholdMeters {
			return true
		}
	}
	for _, c := range existing {
		if !c.HasGPS {
			continue
		}
		if Haversine(lat, lng, c.Lat, c.Lng) > purgeNameDistanceCapMeters {
			continue
		}
		for _, n := range c.names() {
			if NameSimilarity(name, n) >= purgeNameSimilarityThreshold {
				return true
			}
		}
	}
	return false
}

// EnrichmentCandidate reports whether a Location missing GPS should be
// enriched from a reference point (spec.md §4.9 "Enrichment"): the
// Location's locnam+state must match the point at similarity >= 0.85.
func EnrichmentCandidate(locName, locState string, hasLocGPS bool, pointName, pointState string) bool {
	if hasLocGPS {
		return false
	}
	if locState == "" || pointState == "" || locState != pointState {
		return false
	}
	return NameSimilarity(locName, pointName) >= purgeNameSimilarityThreshold
}
