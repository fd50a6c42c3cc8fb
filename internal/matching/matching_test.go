package matching

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineIdenticalPointsIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Haversine(40.1, -75.5, 40.1, -75.5))
}

func TestHaversineAntipodesIsHalfCircumference(t *testing.T) {
	d := Haversine(0, 0, 0, 180)
	assert.InDelta(t, math.Pi*earthRadiusMeters, d, 1.0)
}

func TestHaversineKnownDistance(t *testing.T) {
	// Scranton, PA to Philadelphia, PA is roughly 185 km.
	d := Haversine(41.4090, -75.6624, 39.9526, -75.1652)
	assert.InDelta(t, 185_000, d, 15_000)
}

func TestNameSimilarityIdenticalIsOne(t *testing.T) {
	assert.Equal(t, 1.0, NameSimilarity("Bethlehem Steel", "Bethlehem Steel"))
}

func TestNameSimilarityDisjointIsLow(t *testing.T) {
	sim := NameSimilarity("Bethlehem Steel", "Xyzzqq Plonk")
	assert.Less(t, sim, 0.5)
}

func TestNameSimilarityCoordinateLikeIsZero(t *testing.T) {
	assert.Equal(t, 0.0, NameSimilarity("40.1234,-75.5678", "Smith Hospital"))
}

func TestNameSimilarityNormalizesCase(t *testing.T) {
	assert.Greater(t, NameSimilarity("SMITH HOSPITAL", "smith hospital"), 0.99)
}

func TestCheckDuplicateGPSMatch(t *testing.T) {
	existing := []LocationCandidate{{LocID: "a", Locnam: "Bethlehem Steel Works", HasGPS: true, Lat: 40.1, Lng: -75.5}}
	match, ok := CheckDuplicate("Bethlehem Steel", true, 40.1004, -75.5, "PA", "", existing, nil)
	assert.True(t, ok)
	assert.Equal(t, MatchByGPS, match.MatchType)
	assert.Equal(t, "a", match.LocationID)
}

func TestCheckDuplicateNameMatchSameState(t *testing.T) {
	existing := []LocationCandidate{{LocID: "a", Locnam: "Main St School", State: "PA"}}
	match, ok := CheckDuplicate("Main Street School", false, 0, 0, "PA", "", existing, nil)
	assert.True(t, ok)
	assert.Equal(t, MatchByName, match.MatchType)
}

func TestCheckDuplicateNameMatchDifferentStateNoGPSRejected(t *testing.T) {
	existing := []LocationCandidate{{LocID: "a", Locnam: "Main St School", State: "CA"}}
	_, ok := CheckDuplicate("Main Street School", false, 0, 0, "PA", "", existing, nil)
	assert.False(t, ok)
}

func TestCheckDuplicateExclusionSuppressesMatch(t *testing.T) {
	existing := []LocationCandidate{{LocID: "b", Locnam: "Bethlehem Steel Works", HasGPS: true, Lat: 40.1, Lng: -75.5}}
	_, ok := CheckDuplicate("Bethlehem Steel", true, 40.1004, -75.5, "PA", "a", existing,
		[]ExclusionPair{{A: "a", B: "b"}})
	assert.False(t, ok)
}

func TestDedupReferencePointsMergesGroup(t *testing.T) {
	points := []RefPointCandidate{
		{PointID: "1", Name: "Smith Hospital", Lat: 40.1234, Lng: -75.5678},
		{PointID: "2", Name: "Smith Hosp.", Lat: 40.12341, Lng: -75.56779},
		{PointID: "3", Name: "hospital", Lat: 40.12339, Lng: -75.56781},
		{PointID: "4", Name: "40.1234,-75.5678", Lat: 40.1234, Lng: -75.5678},
	}
	groups := DedupReferencePoints(points)
	assert.Len(t, groups, 1)
	assert.Equal(t, "Smith Hospital", groups[0].Survivor.Name)
	assert.Equal(t, "Smith Hosp.|hospital", groups[0].AkaNames)
	assert.Len(t, groups[0].DeletedPointIDs, 3)
}

func TestIsCataloguedWithinGPSThreshold(t *testing.T) {
	existing := []LocationCandidate{{LocID: "a", Locnam: "Foo", HasGPS: true, Lat: 40.0, Lng: -75.0}}
	assert.True(t, IsCatalogued("Unrelated Name", 40.0009, -75.0, existing))
}

func TestEnrichmentCandidateRequiresMatchingStateAndSimilarity(t *testing.T) {
	assert.True(t, EnrichmentCandidate("Bethlehem Steel", "PA", false, "Bethlehem Steel", "PA"))
	assert.False(t, EnrichmentCandidate("Bethlehem Steel", "PA", true, "Bethlehem Steel", "PA"))
	assert.False(t, EnrichmentCandidate("Bethlehem Steel", "NY", false, "Bethlehem Steel", "PA"))
}
