package refmap_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizzlechizzle/archive-core/internal/matching/refmap"
)

const sampleKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <Placemark>
      <name>Bethlehem Steel</name>
      <description>Abandoned mill</description>
      <Point><coordinates>-75.5678,40.1234,0</coordinates></Point>
    </Placemark>
    <Folder>
      <Placemark>
        <name>Carbon Plant</name>
        <Point><coordinates>-76.0,41.0,0</coordinates></Point>
      </Placemark>
    </Folder>
  </Document>
</kml>`

const sampleGPX = `<?xml version="1.0"?>
<gpx><wpt lat="40.1" lon="-75.5"><name>Old Mill</name><desc>rural</desc></wpt></gpx>`

const sampleGeoJSON = `{"type":"FeatureCollection","features":[
  {"type":"Feature","properties":{"name":"Tannery"},"geometry":{"type":"Point","coordinates":[-75.1,40.2]}}
]}`

const sampleCSV = "name,lat,lng,description\nWarehouse,40.3,-75.2,old warehouse\n"

func writeTemp(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestParseKMLWithNestedFolder(t *testing.T) {
	path := writeTemp(t, "points.kml", sampleKML)
	points, err := refmap.ParseFile(path)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "Bethlehem Steel", points[0].Name)
	assert.InDelta(t, 40.1234, points[0].Lat, 0.0001)
	assert.InDelta(t, -75.5678, points[0].Lng, 0.0001)
	assert.Equal(t, "Carbon Plant", points[1].Name)
}

func TestParseGPX(t *testing.T) {
	path := writeTemp(t, "points.gpx", sampleGPX)
	points, err := refmap.ParseFile(path)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "Old Mill", points[0].Name)
	assert.Equal(t, 40.1, points[0].Lat)
}

func TestParseGeoJSON(t *testing.T) {
	path := writeTemp(t, "points.geojson", sampleGeoJSON)
	points, err := refmap.ParseFile(path)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "Tannery", points[0].Name)
	assert.NotEmpty(t, points[0].RawMetadataJSON)
}

func TestParseCSV(t *testing.T) {
	path := writeTemp(t, "points.csv", sampleCSV)
	points, err := refmap.ParseFile(path)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "Warehouse", points[0].Name)
	assert.Equal(t, 40.3, points[0].Lat)
	assert.Equal(t, -75.2, points[0].Lng)
}

func TestParseCSVMissingLatLngColumnsErrors(t *testing.T) {
	path := writeTemp(t, "bad.csv", "name,description\nFoo,bar\n")
	_, err := refmap.ParseFile(path)
	assert.Error(t, err)
}

func TestParseFileUnsupportedExtension(t *testing.T) {
	path := writeTemp(t, "points.txt", "irrelevant")
	_, err := refmap.ParseFile(path)
	assert.Error(t, err)
}

func TestPreviewKMLRendersPlacemarks(t *testing.T) {
	out, err := refmap.PreviewKML([]refmap.ParsedPoint{{Name: "Site A", Description: "desc", Lat: 40.0, Lng: -75.0}})
	require.NoError(t, err)
	assert.Contains(t, out, "Site A")
	assert.Contains(t, out, "Placemark")
}
