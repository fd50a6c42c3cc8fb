package archive

import (
	"context"
	"encoding/json"

	"github.com/bizzlechizzle/archive-core/internal/catalog"
	"github.com/bizzlechizzle/archive-core/internal/derivative"
	"github.com/bizzlechizzle/archive-core/internal/importpipeline"
	"github.com/bizzlechizzle/archive-core/internal/jobqueue"
)

// ThumbnailHandler decodes a DerivativeJob and generates image
// thumbnails or a video poster, persisting the result paths back to the
// catalog. Pass this to StartBackgroundWork for the thumbnail queue
// (spec.md §4.6 worker pools).
func (h *Handle) ThumbnailHandler(ctx context.Context, job jobqueue.Job) error {
	var payload importpipeline.DerivativeJob
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return err
	}
	switch payload.Kind {
	case catalog.MediaImage:
		result, err := h.Derive.GenerateImageThumbnails(ctx, payload.Hash, payload.ArchivedPath, derivative.Orientation(1))
		if err != nil {
			return err
		}
		return h.Catalog.UpdateMediaThumbnails(ctx, catalog.MediaImage, payload.Hash, result.SmallPath, result.LargePath)
	case catalog.MediaVideo:
		posterPath, err := h.Derive.GeneratePoster(ctx, payload.Hash, payload.ArchivedPath)
		if err != nil {
			return err
		}
		return h.Catalog.UpdateMediaPoster(ctx, payload.Hash, posterPath)
	default:
		return nil
	}
}

// ProxyHandler decodes a DerivativeJob and generates a permanent
// web-playable proxy for a video (spec.md §4.4). Pass this to
// StartBackgroundWork for the proxy queue.
func (h *Handle) ProxyHandler(ctx context.Context, job jobqueue.Job) error {
	var payload importpipeline.DerivativeJob
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return err
	}
	if payload.Kind != catalog.MediaVideo {
		return nil
	}
	proxyPath, err := h.Derive.GenerateProxy(ctx, payload.Hash, payload.ArchivedPath, derivative.ProxyOptions{})
	if err != nil {
		return err
	}
	return h.Catalog.UpdateMediaProxy(ctx, payload.Hash, proxyPath)
}
