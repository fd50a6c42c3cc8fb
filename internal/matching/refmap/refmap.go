// Package refmap parses reference-map point files (KML/KMZ/GPX/GeoJSON/
// CSV) into ParsedPoint values for import into the catalog (spec.md §3.1
// "ReferenceMapPoint — a point parsed from KML/KMZ/GPX/GeoJSON/CSV").
//
// KML itself is XML; this package parses it directly with encoding/xml
// rather than through twpayne/go-kml, which is a KML *construction* DSL
// (it builds documents, it does not parse arbitrary third-party KML
// input). twpayne/go-kml is used here for PreviewKML, which renders a
// parsed batch back out as a KML document for preview_import's UI
// round-trip (spec.md §6.4 preview_import(path)).
package refmap

import (
	"archive/zip"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/twpayne/go-kml"

	"github.com/bizzlechizzle/archive-core/internal/errs"
)

// ParsedPoint is one reference point extracted from a source file,
// pre-cataloging (spec.md §3.1 ReferenceMapPoint).
type ParsedPoint struct {
	Name            string
	Description     string
	Lat             float64
	Lng             float64
	Category        string
	RawMetadataJSON string
}

// ParseFile dispatches to the right parser by file extension (spec.md
// §3.1: "a point parsed from KML/KMZ/GPX/GeoJSON/CSV").
func ParseFile(path string) ([]ParsedPoint, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".kml":
		f, err := os.Open(path)
		if err != nil {
			return nil, errs.IO(err, "open %s", path)
		}
		defer f.Close()
		return parseKML(f)
	case ".kmz":
		return parseKMZ(path)
	case ".gpx":
		f, err := os.Open(path)
		if err != nil {
			return nil, errs.IO(err, "open %s", path)
		}
		defer f.Close()
		return parseGPX(f)
	case ".geojson", ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, errs.IO(err, "open %s", path)
		}
		defer f.Close()
		return parseGeoJSON(f)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, errs.IO(err, "open %s", path)
		}
		defer f.Close()
		return parseCSV(f)
	default:
		return nil, errs.Validation(nil, "unsupported reference-map file extension %q", filepath.Ext(path))
	}
}

type kmlDocument struct {
	XMLName  xml.Name      `xml:"kml"`
	Document kmlFolderBody `xml:"Document"`
}

type kmlFolderBody struct {
	Placemarks []kmlPlacemark `xml:"Placemark"`
	Folders    []kmlFolder    `xml:"Folder"`
}

type kmlFolder struct {
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlPlacemark struct {
	Name        string `xml:"name"`
	Description string `xml:"description"`
	Point       struct {
		Coordinates string `xml:"coordinates"`
	} `xml:"Point"`
}

func parseKML(r io.Reader) ([]ParsedPoint, error) {
	var doc kmlDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errs.Validation(err, "parse KML")
	}
	var placemarks []kmlPlacemark
	placemarks = append(placemarks, doc.Document.Placemarks...)
	for _, folder := range doc.Document.Folders {
		placemarks = append(placemarks, folder.Placemarks...)
	}

	var out []ParsedPoint
	for _, pm := range placemarks {
		lat, lng, ok := parseKMLCoordinates(pm.Point.Coordinates)
		if !ok {
			continue
		}
		out = append(out, ParsedPoint{Name: strings.TrimSpace(pm.Name), Description: strings.TrimSpace(pm.Description), Lat: lat, Lng: lng})
	}
	return out, nil
}

// parseKMLCoordinates parses KML's "lng,lat[,alt]" coordinate string.
func parseKMLCoordinates(raw string) (lat, lng float64, ok bool) {
	parts := strings.Split(strings.TrimSpace(raw), ",")
	if len(parts) < 2 {
		return 0, 0, false
	}
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLng != nil || errLat != nil {
		return 0, 0, false
	}
	return lat, lng, true
}

// parseKMZ unzips a KMZ archive and parses its first .kml entry (spec.md
// §3.1: KMZ is the zip-compressed container format for KML).
func parseKMZ(path string) ([]ParsedPoint, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, errs.IO(err, "open KMZ %s", path)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".kml") {
			rc, err := f.Open()
			if err != nil {
				return nil, errs.IO(err, "open %s in KMZ", f.Name)
			}
			defer rc.Close()
			return parseKML(rc)
		}
	}
	return nil, errs.Validation(nil, "KMZ %s contains no .kml entry", path)
}

type gpxDocument struct {
	Waypoints []gpxWaypoint `xml:"wpt"`
}

type gpxWaypoint struct {
	Lat  float64 `xml:"lat,attr"`
	Lng  float64 `xml:"lon,attr"`
	Name string  `xml:"name"`
	Desc string  `xml:"desc"`
}

func parseGPX(r io.Reader) ([]ParsedPoint, error) {
	var doc gpxDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errs.Validation(err, "parse GPX")
	}
	out := make([]ParsedPoint, 0, len(doc.Waypoints))
	for _, wpt := range doc.Waypoints {
		out = append(out, ParsedPoint{Name: strings.TrimSpace(wpt.Name), Description: strings.TrimSpace(wpt.Desc), Lat: wpt.Lat, Lng: wpt.Lng})
	}
	return out, nil
}

type geoJSONFeatureCollection struct {
	Features []geoJSONFeature `json:"features"`
}

type geoJSONFeature struct {
	Properties map[string]any `json:"properties"`
	Geometry   struct {
		Type        string    `json:"type"`
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
}

func parseGeoJSON(r io.Reader) ([]ParsedPoint, error) {
	var fc geoJSONFeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, errs.Validation(err, "parse GeoJSON")
	}
	var out []ParsedPoint
	for _, feature := range fc.Features {
		if feature.Geometry.Type != "Point" || len(feature.Geometry.Coordinates) < 2 {
			continue
		}
		name, _ := feature.Properties["name"].(string)
		desc, _ := feature.Properties["description"].(string)
		metaJSON, _ := json.Marshal(feature.Properties)
		out = append(out, ParsedPoint{
			Name: name, Description: desc,
			Lng: feature.Geometry.Coordinates[0], Lat: feature.Geometry.Coordinates[1],
			RawMetadataJSON: string(metaJSON),
		})
	}
	return out, nil
}

// parseCSV expects a header row with at minimum name,lat,lng columns
// (description/category optional), the common lowest-common-denominator
// reference-map export format.
func parseCSV(r io.Reader) ([]ParsedPoint, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errs.Validation(err, "parse CSV")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	header := rows[0]
	colIdx := make(map[string]int, len(header))
	for i, col := range header {
		colIdx[strings.ToLower(strings.TrimSpace(col))] = i
	}
	latIdx, hasLat := colIdx["lat"]
	lngIdx, hasLng := colIdx["lng"]
	if !hasLng {
		lngIdx, hasLng = colIdx["lon"]
	}
	if !hasLat || !hasLng {
		return nil, errs.Validation(nil, "CSV must have lat and lng (or lon) columns")
	}
	nameIdx, hasName := colIdx["name"]
	descIdx, hasDesc := colIdx["description"]
	categoryIdx, hasCategory := colIdx["category"]

	var out []ParsedPoint
	for _, row := range rows[1:] {
		if latIdx >= len(row) || lngIdx >= len(row) {
			continue
		}
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(row[latIdx]), 64)
		lng, errLng := strconv.ParseFloat(strings.TrimSpace(row[lngIdx]), 64)
		if errLat != nil || errLng != nil {
			continue
		}
		p := ParsedPoint{Lat: lat, Lng: lng}
		if hasName && nameIdx < len(row) {
			p.Name = strings.TrimSpace(row[nameIdx])
		}
		if hasDesc && descIdx < len(row) {
			p.Description = strings.TrimSpace(row[descIdx])
		}
		if hasCategory && categoryIdx < len(row) {
			p.Category = strings.TrimSpace(row[categoryIdx])
		}
		out = append(out, p)
	}
	return out, nil
}

// PreviewKML renders a batch of points back out as a KML document, the
// round-trip preview_import's UI shows before committing an import
// (spec.md §6.4 preview_import(path)).
func PreviewKML(points []ParsedPoint) (string, error) {
	var placemarks []kml.Element
	for _, p := range points {
		placemarks = append(placemarks, kml.Placemark(
			kml.Name(p.Name),
			kml.Description(p.Description),
			kml.Point(kml.Coordinates(kml.Coordinate{Lon: p.Lng, Lat: p.Lat})),
		))
	}
	doc := kml.KML(kml.Document(placemarks...))

	var sb strings.Builder
	if err := doc.WriteIndent(&sb, "", "  "); err != nil {
		return "", errs.Internal(err, "render preview KML")
	}
	return sb.String(), nil
}
