package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddressIdempotent(t *testing.T) {
	a := AddressInput{Street: "123 Main St.", City: "Scranton", County: "Lackawanna", State: "Pennsylvania", Zipcode: "18503"}
	once := NormalizeAddress(a)
	twice := NormalizeAddress(once.AsInput())
	assert.Equal(t, once.Normalized, twice.Normalized)
	assert.Equal(t, once.ParsedJSON, twice.ParsedJSON)
	assert.Equal(t, once.State, twice.State)
}

func TestNormalizeAddressExpandsAbbreviations(t *testing.T) {
	n := NormalizeAddress(AddressInput{Street: "45 Oak Ave", State: "NY"})
	assert.Contains(t, n.Normalized, "oak avenue")
}

func TestNormalizeAddressCanonicalizesStateName(t *testing.T) {
	n := NormalizeAddress(AddressInput{State: "Pennsylvania"})
	assert.Equal(t, "PA", n.State)
}

func TestNormalizeAddressUnknownStatePassesThrough(t *testing.T) {
	n := NormalizeAddress(AddressInput{State: "Ruritania"})
	assert.Equal(t, "Ruritania", n.State)
}

func TestDeriveRegionsKnownState(t *testing.T) {
	region, division, direction, cultural := DeriveRegions("PA", "Luzerne")
	assert.Equal(t, "Northeast", region)
	assert.Equal(t, "Middle Atlantic", division)
	assert.Equal(t, "Northeast", direction)
	assert.Equal(t, "Rust Belt", cultural)
}

func TestDeriveRegionsFallsBackToStateCulturalRegion(t *testing.T) {
	_, _, _, cultural := DeriveRegions("WV", "Unknown County")
	assert.Equal(t, "Appalachia", cultural)
}

func TestDeriveRegionsUnknownStateLeavesBlank(t *testing.T) {
	region, division, direction, cultural := DeriveRegions("ZZ", "")
	assert.Empty(t, region)
	assert.Empty(t, division)
	assert.Empty(t, direction)
	assert.Empty(t, cultural)
}
