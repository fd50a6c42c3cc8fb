// Package derivative implements the archive's derivative-generation
// subsystem (spec.md §4.4, component C4): multi-tier JPEG thumbnails,
// RAW/HEIC-preview-derived thumbnails, video poster frames, and permanent
// web-playable video proxies.
//
// Thumbnail generation always writes through a temp file then renames
// into place (spec.md §4.4: "Thumbnail regeneration is always safe: the
// generator overwrites atomically"), mirroring the same temp+fsync+rename
// discipline internal/contentstore uses for primary blobs
// (backend/local/local.go's Object.Update, generalized the same way in
// both packages).
package derivative

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/dgraph-io/ristretto"
	"github.com/nfnt/resize"
	"github.com/sirupsen/logrus"

	"github.com/bizzlechizzle/archive-core/internal/contentstore"
	"github.com/bizzlechizzle/archive-core/internal/errs"
)

// Tier edge lengths in pixels (spec.md §4.4, Glossary "Thumbnail tier").
const (
	TierSmallMaxEdge = 400
	TierLargeMaxEdge = 800
)

// jpegQuality is used for every derivative JPEG written by this package.
const jpegQuality = 85

// Orientation is an EXIF orientation tag value (1-8); 1 means no
// transform is required.
type Orientation int

// Generator produces image/video derivatives and places them via the
// content store's hash-bucketed derivative layout.
type Generator struct {
	store *contentstore.Store
	log   *logrus.Entry
	cache *ristretto.Cache

	ffmpegBinary  string
	ffprobeBinary string
}

// Options configures a Generator.
type Options struct {
	FFmpegBinary  string
	FFprobeBinary string
}

// New builds a Generator writing derivatives through store.
func New(store *contentstore.Store, opts Options, log *logrus.Entry) (*Generator, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 50_000,
		MaxCost:     64 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errs.Internal(err, "allocate derivative cache")
	}
	if opts.FFmpegBinary == "" {
		opts.FFmpegBinary = "ffmpeg"
	}
	if opts.FFprobeBinary == "" {
		opts.FFprobeBinary = "ffprobe"
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Generator{
		store:         store,
		log:           log.WithField("component", "derivative"),
		cache:         cache,
		ffmpegBinary:  opts.FFmpegBinary,
		ffprobeBinary: opts.FFprobeBinary,
	}, nil
}

// Close releases the generator's in-process cache.
func (g *Generator) Close() { g.cache.Close() }

// ThumbnailResult reports the paths written for one image's tiers.
type ThumbnailResult struct {
	SmallPath string
	LargePath string
}

// GenerateImageThumbnails decodes srcPath (a JPEG-compatible image, or an
// already-extracted RAW/HEIC preview), applies orientation, and writes
// the sm/lg tiers into the content store addressed by sha (spec.md §4.4
// step 1).
func (g *Generator) GenerateImageThumbnails(ctx context.Context, sha string, srcPath string, orientation Orientation) (ThumbnailResult, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return ThumbnailResult{}, errs.IO(err, "open %s for thumbnailing", srcPath)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return ThumbnailResult{}, errs.External(err, "decode image %s", srcPath)
	}
	img = applyOrientation(img, orientation)

	return g.generateFromImage(ctx, sha, img)
}

// GenerateFromPreviewBytes is the RAW/HEIC path: the embedded preview
// bytes from metadataprobe.Preview, rather than a file on disk, become
// the thumbnail source (spec.md §4.4 step 2).
func (g *Generator) GenerateFromPreviewBytes(ctx context.Context, sha string, previewJPEG []byte, orientation Orientation) (ThumbnailResult, error) {
	img, err := jpeg.Decode(bytes.NewReader(previewJPEG))
	if err != nil {
		return ThumbnailResult{}, errs.External(err, "decode embedded preview for %s", sha)
	}
	img = applyOrientation(img, orientation)
	return g.generateFromImage(ctx, sha, img)
}

func (g *Generator) generateFromImage(ctx context.Context, sha string, img image.Image) (ThumbnailResult, error) {
	if err := ctx.Err(); err != nil {
		return ThumbnailResult{}, errs.Cancelled(err, "thumbnail generation for %s", sha)
	}

	smPath := g.store.PathOf(sha, "_sm.jpg", contentstore.KindThumb)
	lgPath := g.store.PathOf(sha, "_lg.jpg", contentstore.KindThumb)

	sm := resize.Thumbnail(TierSmallMaxEdge, TierSmallMaxEdge, img, resize.Lanczos3)
	if err := writeJPEGAtomic(smPath, sm); err != nil {
		return ThumbnailResult{}, err
	}
	lg := resize.Thumbnail(TierLargeMaxEdge, TierLargeMaxEdge, img, resize.Lanczos3)
	if err := writeJPEGAtomic(lgPath, lg); err != nil {
		return ThumbnailResult{}, err
	}

	return ThumbnailResult{SmallPath: smPath, LargePath: lgPath}, nil
}

// writeJPEGAtomic encodes img as JPEG into a temp file beside dest, then
// renames it into place, so a reader never observes a partially written
// thumbnail (spec.md §4.4: "the generator overwrites atomically").
func writeJPEGAtomic(dest string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errs.IO(err, "mkdir for %s", dest)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*.jpg")
	if err != nil {
		return errs.IO(err, "create temp file beside %s", dest)
	}
	tmpPath := tmp.Name()
	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return errs.Internal(err, "encode jpeg for %s", dest)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return errs.IO(err, "fsync %s", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errs.IO(err, "close %s", tmpPath)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return errs.IO(err, "rename %s -> %s", tmpPath, dest)
	}
	return nil
}

// applyOrientation bakes an EXIF orientation tag into the pixel data so
// downstream viewers need no further rotation (spec.md §4.4 step 1:
// "with orientation baked in (apply EXIF rotation)").
func applyOrientation(img image.Image, o Orientation) image.Image {
	switch o {
	case 2:
		return flipH(img)
	case 3:
		return rotate180(img)
	case 4:
		return flipV(img)
	case 5:
		return flipH(rotate90(img))
	case 6:
		return rotate90(img)
	case 7:
		return flipH(rotate270(img))
	case 8:
		return rotate270(img)
	default:
		return img
	}
}

func rotate90(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.Y-1-y, x, img.At(x, y))
		}
	}
	return dst
}

func rotate270(img image.Image) image.Image {
	return rotate180(rotate90(img))
}

func rotate180(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.X-1-x, b.Max.Y-1-y, img.At(x, y))
		}
	}
	return dst
}

func flipH(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.X-1-x, y, img.At(x, y))
		}
	}
	return dst
}

func flipV(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x, b.Max.Y-1-y, img.At(x, y))
		}
	}
	return dst
}

// GeneratePoster extracts the first keyframe after the first second of a
// video as a JPEG poster (spec.md §4.4 "For videos").
func (g *Generator) GeneratePoster(ctx context.Context, sha string, videoPath string) (string, error) {
	dest := g.store.PathOf(sha, ".jpg", contentstore.KindThumb)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", errs.IO(err, "mkdir for %s", dest)
	}
	tmpPath := dest + ".tmp"

	cmd := exec.CommandContext(ctx, g.ffmpegBinary,
		"-y", "-ss", "1", "-i", videoPath,
		"-frames:v", "1", "-q:v", "2", tmpPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		_ = os.Remove(tmpPath)
		return "", errs.External(err, "ffmpeg poster extraction for %s: %s", sha, truncate(out, 512))
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return "", errs.IO(err, "rename poster into place for %s", sha)
	}
	return dest, nil
}

// ProxyOptions controls the permanent web-playable transcode (spec.md
// §4.4, §6.3: "H.264 main profile, max(width,height) <= 1920, CRF 23").
type ProxyOptions struct {
	CRF       int
	MaxEdge   int
	OnProgress func(percent int)
}

// GenerateProxy transcodes videoPath into a permanent H.264 MP4 proxy
// (spec.md §4.4: "proxies are not garbage-collected; a one-time
// generation per video").
func (g *Generator) GenerateProxy(ctx context.Context, sha string, videoPath string, opts ProxyOptions) (string, error) {
	if opts.CRF <= 0 {
		opts.CRF = 23
	}
	if opts.MaxEdge <= 0 {
		opts.MaxEdge = 1920
	}
	dest := g.store.PathOf(sha, "", contentstore.KindProxy)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", errs.IO(err, "mkdir for %s", dest)
	}
	tmpPath := dest + ".tmp.mp4"

	scaleFilter := fmt.Sprintf("scale='if(gt(a,1),min(%d,iw),-2)':'if(gt(a,1),-2,min(%d,ih))'", opts.MaxEdge, opts.MaxEdge)
	cmd := exec.CommandContext(ctx, g.ffmpegBinary,
		"-y", "-i", videoPath,
		"-vf", scaleFilter,
		"-c:v", "libx264", "-profile:v", "main", "-crf", fmt.Sprint(opts.CRF),
		"-c:a", "aac", "-movflags", "+faststart",
		tmpPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		_ = os.Remove(tmpPath)
		return "", errs.External(err, "ffmpeg proxy transcode for %s: %s", sha, truncate(out, 512))
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return "", errs.IO(err, "rename proxy into place for %s", sha)
	}
	return dest, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
