// Package metadataprobe implements the archive's metadata extraction
// subsystem (spec.md §4.3, component C3): EXIF/XMP/video metadata via an
// external metadata-tool process, RAW/HEIC detection, and embedded-preview
// extraction.
//
// The external-tool-as-singleton-with-request-queueing design (spec.md §5
// Shared-resource policy) generalizes the teacher's pattern of keeping one
// long-lived handle per external resource behind a small interface rather
// than a process-wide global (design note in spec.md §9: "process-wide
// singletons ... become explicit dependencies passed to the components
// that need them"); the metadata-tool handle here is constructed once by
// archive.Open and threaded into Probe explicitly.
package metadataprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/rwcarlsen/goexif/exif"
	exiftool "github.com/mostlygeek/go-exiftool"
	"github.com/sirupsen/logrus"

	"github.com/bizzlechizzle/archive-core/internal/errs"
)

// rawExtensions is the set of RAW formats spec.md §4.3 names, which get
// embedded-preview extraction instead of direct decode.
var rawExtensions = map[string]bool{
	".nef": true, ".nrw": true, ".cr2": true, ".cr3": true, ".arw": true,
	".dng": true, ".orf": true, ".raf": true, ".rw2": true, ".pef": true,
	".3fr": true, ".iiq": true, ".mrw": true, ".x3f": true, ".erf": true,
}

var heicExtensions = map[string]bool{".heic": true, ".heif": true}

// previewTagPriority is the order spec.md §4.3 mandates for embedded JPEG
// preview extraction: PreviewImage -> JpgFromRaw -> ThumbnailImage,
// choosing the largest of whichever tags are present.
var previewTagPriority = []string{"PreviewImage", "JpgFromRaw", "ThumbnailImage"}

// IsRaw reports whether ext (including the leading dot, any case) names a
// RAW format requiring embedded-preview extraction.
func IsRaw(ext string) bool { return rawExtensions[strings.ToLower(ext)] }

// IsHEIC reports whether ext names a HEIC/HEIF file.
func IsHEIC(ext string) bool { return heicExtensions[strings.ToLower(ext)] }

// ImageMeta is the normalized record for an image file (spec.md §4.3).
type ImageMeta struct {
	Width       int
	Height      int
	DateTaken   time.Time
	CameraMake  string
	CameraModel string
	GPSLat      *float64
	GPSLng      *float64
	RawEXIFJSON string
}

// VideoMeta is the normalized record for a video file (spec.md §4.3).
type VideoMeta struct {
	DurationS float64
	Width     int
	Height    int
	Codec     string
	FPS       float64
	DateTaken *time.Time
	GPSLat    *float64
	GPSLng    *float64
}

// DocumentMeta is the normalized record for a document file.
type DocumentMeta struct {
	PageCount *int
	Author    string
	Title     string
}

// Preview is an embedded JPEG preview extracted from a RAW or HEIC file,
// ready for the derivative generator (spec.md §4.3/§4.4).
type Preview struct {
	JPEGBytes []byte
	Quality   string // full | embedded | low
	SourceTag string // which tag/path produced it, for diagnostics
}

// ExifRunner is the minimal surface metadataprobe needs from the external
// metadata-tool process. The concrete implementation wraps
// mostlygeek/go-exiftool's persistent `-stay_open` process; tests provide
// a fake so probe logic doesn't require the real exiftool binary.
type ExifRunner interface {
	// ExtractMetadata returns one flat string-keyed field map per path, in
	// the same order as paths.
	ExtractMetadata(ctx context.Context, paths ...string) ([]map[string]string, error)
	// ExtractBinaryTag returns the raw bytes of tag (e.g. "PreviewImage")
	// for one file, or an error if the tag is absent.
	ExtractBinaryTag(ctx context.Context, path, tag string) ([]byte, error)
	Close() error
}

// HEICConverter is the platform-provided HEIC-to-JPEG path (spec.md §6.3).
type HEICConverter interface {
	ConvertToJPEG(ctx context.Context, path string) ([]byte, error)
}

// VideoProber runs an external video-probe CLI (ffprobe-shaped) and
// returns its JSON description (spec.md §6.3).
type VideoProber interface {
	Probe(ctx context.Context, path string) (VideoMeta, error)
}

// Probe extracts metadata for media files, caching recent results keyed
// by (path, mtime) since imports frequently re-stat sidecar-adjacent
// files during scan+validate (spec.md §4.7 steps 1 and 4).
type Probe struct {
	exif    ExifRunner
	heic    HEICConverter
	video   VideoProber
	log     *logrus.Entry
	cache   *ristretto.Cache
	timeout time.Duration
}

// New builds a Probe. exif/heic/video may be nil if that capability is
// unavailable on this platform (e.g. no HEIC converter on Linux); the
// corresponding Probe* methods then return an External-kind error rather
// than panicking.
func New(exifRunner ExifRunner, heic HEICConverter, video VideoProber, timeout time.Duration, log *logrus.Entry) (*Probe, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     32 << 20, // 32MiB of cached probe JSON/structs
		BufferItems: 64,
	})
	if err != nil {
		return nil, errs.Internal(err, "allocate metadata probe cache")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Probe{
		exif:    exifRunner,
		heic:    heic,
		video:   video,
		log:     log.WithField("component", "metadataprobe"),
		cache:   cache,
		timeout: timeout,
	}, nil
}

func cacheKey(path string, mtimeUnix int64) string {
	return fmt.Sprintf("%s@%d", path, mtimeUnix)
}

// ProbeImage extracts an image's normalized metadata (spec.md §4.3).
func (p *Probe) ProbeImage(ctx context.Context, path string, mtimeUnix int64) (ImageMeta, error) {
	key := "img:" + cacheKey(path, mtimeUnix)
	if v, ok := p.cache.Get(key); ok {
		return v.(ImageMeta), nil
	}

	if p.exif == nil {
		meta, err := p.probeImageFallback(path)
		return meta, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	fields, err := p.exif.ExtractMetadata(ctx, path)
	if err != nil || len(fields) == 0 {
		p.log.WithError(err).WithField("path", path).Warn("exiftool probe failed, falling back to goexif")
		meta, ferr := p.probeImageFallback(path)
		if ferr != nil {
			return ImageMeta{}, errs.External(err, "probe image %s", path)
		}
		return meta, nil
	}

	meta := normalizeImageFields(fields[0])
	p.cache.Set(key, meta, int64(len(meta.RawEXIFJSON)))
	p.cache.Wait()
	return meta, nil
}

// probeImageFallback uses rwcarlsen/goexif to populate the denormalized
// fast-access columns when the exiftool process is unavailable (SPEC_FULL
// §2 domain stack row: "goexif ... used only when the exiftool process is
// unavailable").
func (p *Probe) probeImageFallback(path string) (ImageMeta, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImageMeta{}, errs.External(err, "open %s for fallback exif decode", path)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return ImageMeta{}, errs.External(err, "decode exif for %s", path)
	}

	var meta ImageMeta
	if dt, err := x.DateTime(); err == nil {
		meta.DateTaken = dt.UTC()
	}
	if lat, lng, err := x.LatLong(); err == nil {
		meta.GPSLat = &lat
		meta.GPSLng = &lng
	}
	if tag, err := x.Get(exif.Make); err == nil {
		meta.CameraMake, _ = tag.StringVal()
	}
	if tag, err := x.Get(exif.Model); err == nil {
		meta.CameraModel, _ = tag.StringVal()
	}
	if tag, err := x.Get(exif.PixelXDimension); err == nil {
		if v, err := tag.Int(0); err == nil {
			meta.Width = v
		}
	}
	if tag, err := x.Get(exif.PixelYDimension); err == nil {
		if v, err := tag.Int(0); err == nil {
			meta.Height = v
		}
	}
	return meta, nil
}

func normalizeImageFields(fields map[string]string) ImageMeta {
	var meta ImageMeta
	meta.CameraMake = fields["Make"]
	meta.CameraModel = fields["Model"]
	meta.Width = atoiOr(fields["ImageWidth"], atoiOr(fields["ExifImageWidth"], 0))
	meta.Height = atoiOr(fields["ImageHeight"], atoiOr(fields["ExifImageHeight"], 0))
	if dt := firstNonEmpty(fields["DateTimeOriginal"], fields["CreateDate"], fields["ModifyDate"]); dt != "" {
		if t, err := parseExifTime(dt); err == nil {
			meta.DateTaken = t
		}
	}
	if lat, ok := parseFloatField(fields["GPSLatitude"]); ok {
		meta.GPSLat = &lat
	}
	if lng, ok := parseFloatField(fields["GPSLongitude"]); ok {
		meta.GPSLng = &lng
	}
	if enc, err := json.Marshal(fields); err == nil {
		meta.RawEXIFJSON = string(enc)
	}
	return meta
}

// exifTimeLayout is exiftool's default "YYYY:MM:DD HH:MM:SS" rendering.
const exifTimeLayout = "2006:01:02 15:04:05"

func parseExifTime(s string) (time.Time, error) {
	return time.Parse(exifTimeLayout, s)
}

func parseFloatField(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// ProbeVideo extracts a video's normalized metadata via the external
// video-probe tool (spec.md §4.3, §6.3).
func (p *Probe) ProbeVideo(ctx context.Context, path string, mtimeUnix int64) (VideoMeta, error) {
	key := "vid:" + cacheKey(path, mtimeUnix)
	if v, ok := p.cache.Get(key); ok {
		return v.(VideoMeta), nil
	}
	if p.video == nil {
		return VideoMeta{}, errs.External(nil, "no video prober configured")
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	meta, err := p.video.Probe(ctx, path)
	if err != nil {
		return VideoMeta{}, errs.External(err, "probe video %s", path)
	}
	p.cache.Set(key, meta, 1)
	return meta, nil
}

// ExtractPreview extracts the embedded-JPEG preview for a RAW file
// (priority PreviewImage -> JpgFromRaw -> ThumbnailImage, largest wins)
// or invokes the HEIC converter for a HEIC/HEIF file (spec.md §4.3).
// A path that is neither RAW nor HEIC/HEIF is a Validation error; any
// other failure is an External error: preview extraction is non-fatal
// and the caller proceeds without a browser-viewable preview.
func (p *Probe) ExtractPreview(ctx context.Context, path string) (Preview, error) {
	ext := strings.ToLower(filepath.Ext(path))

	if IsHEIC(ext) {
		if p.heic == nil {
			return Preview{}, errs.External(nil, "no HEIC converter configured for %s", path)
		}
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		jpeg, err := p.heic.ConvertToJPEG(ctx, path)
		if err != nil {
			return Preview{}, errs.External(err, "convert HEIC %s", path)
		}
		return Preview{JPEGBytes: jpeg, Quality: "full", SourceTag: "heic_converter"}, nil
	}

	if !IsRaw(ext) {
		return Preview{}, errs.Validation(nil, "%s is not a RAW/HEIC file", path)
	}
	if p.exif == nil {
		return Preview{}, errs.External(nil, "no exiftool runner configured for %s", path)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var best Preview
	for _, tag := range previewTagPriority {
		data, err := p.exif.ExtractBinaryTag(ctx, path, tag)
		if err != nil || len(data) == 0 {
			continue
		}
		if len(data) > len(best.JPEGBytes) {
			best = Preview{JPEGBytes: data, SourceTag: tag}
		}
	}
	if best.JPEGBytes == nil {
		return Preview{}, errs.External(nil, "no embedded preview tag found in %s", path)
	}
	if best.SourceTag == "PreviewImage" {
		best.Quality = "full"
	} else {
		best.Quality = "embedded"
	}
	return best, nil
}

// Close releases the probe's cache and underlying exiftool process, if
// one was configured.
func (p *Probe) Close() error {
	p.cache.Close()
	if p.exif != nil {
		return p.exif.Close()
	}
	return nil
}

// exiftoolRunner is the production ExifRunner backed by
// mostlygeek/go-exiftool's persistent `-stay_open` process (spec.md §5:
// "singleton with request queueing").
type exiftoolRunner struct {
	tool *exiftool.Exiftool
}

// NewExiftoolRunner starts one long-lived exiftool process. The caller
// owns its lifetime and must Close the returned ExifRunner on shutdown.
func NewExiftoolRunner() (ExifRunner, error) {
	tool, err := exiftool.NewExiftool()
	if err != nil {
		return nil, errs.External(err, "start exiftool process")
	}
	return &exiftoolRunner{tool: tool}, nil
}

func (r *exiftoolRunner) ExtractMetadata(ctx context.Context, paths ...string) ([]map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := r.tool.ExtractMetadata(paths...)
	out := make([]map[string]string, 0, len(results))
	for _, fm := range results {
		if fm.Err != nil {
			continue
		}
		flat := make(map[string]string, len(fm.Fields))
		for k, v := range fm.Fields {
			flat[k] = fmt.Sprintf("%v", v)
		}
		out = append(out, flat)
	}
	return out, nil
}

func (r *exiftoolRunner) ExtractBinaryTag(ctx context.Context, path, tag string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, "exiftool", "-b", "-"+tag, path)
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *exiftoolRunner) Close() error {
	r.tool.Close()
	return nil
}
