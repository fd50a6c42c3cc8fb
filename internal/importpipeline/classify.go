package importpipeline

import (
	"path/filepath"
	"strings"

	"github.com/bizzlechizzle/archive-core/internal/catalog"
	"github.com/bizzlechizzle/archive-core/internal/metadataprobe"
)

// fileClass is the Step 1 classification bucket (spec.md §4.7 Step 1:
// "Classify each by extension into {image, video, document, map, sidecar,
// skip}").
type fileClass string

const (
	classImage    fileClass = "image"
	classVideo    fileClass = "video"
	classDocument fileClass = "document"
	classMap      fileClass = "map"
	classSidecar  fileClass = "sidecar"
	classSkip     fileClass = "skip"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".tif": true, ".tiff": true,
	".bmp": true, ".gif": true, ".webp": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".m4v": true,
	".wmv": true, ".mts": true, ".m2ts": true,
}

var documentExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".txt": true, ".rtf": true,
}

// mapExtensions lists the formats internal/matching/refmap parses, apart
// from .csv and .json, which are not classified as maps here;
// reference-map files found mid-import are left for a dedicated
// import_file(path) call rather than folded into the media pipeline.
var mapExtensions = map[string]bool{
	".kml": true, ".kmz": true, ".gpx": true, ".geojson": true,
}

// sidecarExtensions are associated with their principal by filename stem
// (spec.md §4.7 Step 1).
var sidecarExtensions = map[string]bool{
	".xmp": true, ".thm": true,
}

func classify(path string) fileClass {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case sidecarExtensions[ext]:
		return classSidecar
	case imageExtensions[ext] || metadataprobe.IsRaw(ext) || metadataprobe.IsHEIC(ext):
		return classImage
	case videoExtensions[ext]:
		return classVideo
	case mapExtensions[ext]:
		return classMap
	case documentExtensions[ext]:
		return classDocument
	default:
		return classSkip
	}
}

func mediaKindOf(c fileClass) catalog.MediaKind {
	switch c {
	case classImage:
		return catalog.MediaImage
	case classVideo:
		return catalog.MediaVideo
	case classDocument:
		return catalog.MediaDocument
	default:
		return ""
	}
}

// stem returns a path's filename without extension, the key sidecar
// association groups on.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
