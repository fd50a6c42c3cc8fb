package archive

import (
	"context"
	"os"
	"path/filepath"

	"github.com/bizzlechizzle/archive-core/internal/catalog"
	"github.com/bizzlechizzle/archive-core/internal/contentstore"
	"github.com/bizzlechizzle/archive-core/internal/derivative"
	"github.com/bizzlechizzle/archive-core/internal/errs"
)

// RegenerationSummary counts outcomes across a regeneration sweep
// (spec.md §6.4 Derivatives group).
type RegenerationSummary struct {
	Considered  int
	Regenerated int
	Skipped     int
	Failed      int
	Errors      []string
}

func (s *RegenerationSummary) fail(hash string, err error) {
	s.Failed++
	s.Errors = append(s.Errors, hash+": "+err.Error())
}

// writePreviewAtomic places extracted preview bytes the same way the
// content store places copied originals: write to a sibling temp file,
// then rename into place.
func writePreviewAtomic(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errs.IO(err, "create preview directory for %s", dest)
	}
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.IO(err, "write preview %s", dest)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return errs.IO(err, "place preview %s", dest)
	}
	return nil
}

// RegenerateAllThumbnails rebuilds small/large thumbnails for every image
// row, skipping rows that already have both paths unless force is set
// (spec.md §6.4 regenerate_all_thumbnails).
func (h *Handle) RegenerateAllThumbnails(ctx context.Context, force bool) (RegenerationSummary, error) {
	var summary RegenerationSummary
	images, err := h.Catalog.ListAllMedia(ctx, catalog.MediaImage)
	if err != nil {
		return summary, err
	}
	for _, m := range images {
		summary.Considered++
		if ctx.Err() != nil {
			summary.fail(m.Hash, ctx.Err())
			continue
		}
		if !force && m.ThumbPathSm != "" && m.ThumbPathLg != "" {
			summary.Skipped++
			continue
		}
		result, err := h.Derive.GenerateImageThumbnails(ctx, m.Hash, m.ArchivedPath, derivative.Orientation(1))
		if err != nil {
			summary.fail(m.Hash, err)
			continue
		}
		if err := h.Catalog.UpdateMediaThumbnails(ctx, catalog.MediaImage, m.Hash, result.SmallPath, result.LargePath); err != nil {
			summary.fail(m.Hash, err)
			continue
		}
		summary.Regenerated++
	}
	return summary, nil
}

// RegenerateVideoPosters rebuilds the poster frame for every video row,
// skipping rows already marked extracted unless force is set (spec.md
// §6.4 regenerate_video_posters).
func (h *Handle) RegenerateVideoPosters(ctx context.Context, force bool) (RegenerationSummary, error) {
	var summary RegenerationSummary
	videos, err := h.Catalog.ListAllMedia(ctx, catalog.MediaVideo)
	if err != nil {
		return summary, err
	}
	for _, m := range videos {
		summary.Considered++
		if ctx.Err() != nil {
			summary.fail(m.Hash, ctx.Err())
			continue
		}
		if !force && m.PosterExtracted {
			summary.Skipped++
			continue
		}
		posterPath, err := h.Derive.GeneratePoster(ctx, m.Hash, m.ArchivedPath)
		if err != nil {
			summary.fail(m.Hash, err)
			continue
		}
		if err := h.Catalog.UpdateMediaPoster(ctx, m.Hash, posterPath); err != nil {
			summary.fail(m.Hash, err)
			continue
		}
		summary.Regenerated++
	}
	return summary, nil
}

// RegenerateDNGPreviews re-extracts the embedded JPEG preview for every
// RAW image row, rebuilding thumbnails from the fresh preview bytes
// (spec.md §6.4 regenerate_dng_previews, §4.3 RAW/HEIC handling).
func (h *Handle) RegenerateDNGPreviews(ctx context.Context) (RegenerationSummary, error) {
	var summary RegenerationSummary
	images, err := h.Catalog.ListAllMedia(ctx, catalog.MediaImage)
	if err != nil {
		return summary, err
	}
	for _, m := range images {
		if ctx.Err() != nil {
			summary.fail(m.Hash, ctx.Err())
			continue
		}
		preview, err := h.Probe.ExtractPreview(ctx, m.ArchivedPath)
		if err != nil {
			continue
		}
		summary.Considered++
		previewPath := h.Store.PathOf(m.Hash, "", contentstore.KindPreview)
		if err := writePreviewAtomic(previewPath, preview.JPEGBytes); err != nil {
			summary.fail(m.Hash, err)
			continue
		}
		if err := h.Catalog.UpdateMediaPreview(ctx, m.Hash, previewPath, preview.Quality); err != nil {
			summary.fail(m.Hash, err)
			continue
		}
		result, err := h.Derive.GenerateFromPreviewBytes(ctx, m.Hash, preview.JPEGBytes, derivative.Orientation(1))
		if err != nil {
			summary.fail(m.Hash, err)
			continue
		}
		if err := h.Catalog.UpdateMediaThumbnails(ctx, catalog.MediaImage, m.Hash, result.SmallPath, result.LargePath); err != nil {
			summary.fail(m.Hash, err)
			continue
		}
		summary.Regenerated++
	}
	return summary, nil
}
