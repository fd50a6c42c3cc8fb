package archive

import (
	"context"
	"path/filepath"

	"github.com/bizzlechizzle/archive-core/internal/catalog"
	"github.com/bizzlechizzle/archive-core/internal/contentstore"
	"github.com/bizzlechizzle/archive-core/internal/errs"
	"github.com/bizzlechizzle/archive-core/internal/importpipeline"
)

// DefaultImportOptions returns the configured import defaults (spec.md
// §6.5 import.*), for callers to start from and override per session.
func (h *Handle) DefaultImportOptions() importpipeline.Options {
	return importpipeline.Options{
		DeleteOriginals: h.cfg.Import.DeleteOriginals,
		UseHardlinks:    h.cfg.Import.UseHardlinks,
		VerifyChecksums: h.cfg.Import.VerifyChecksums,
	}
}

// Import starts a new import session (spec.md §6.4 Media: import).
func (h *Handle) Import(ctx context.Context, opts importpipeline.Options) (*importpipeline.Result, error) {
	return h.Pipeline.Run(ctx, opts)
}

// ResumeImport continues a session left in a non-terminal state
// (spec.md §4.7 Resumability).
func (h *Handle) ResumeImport(ctx context.Context, importID string, opts importpipeline.Options) (*importpipeline.Result, error) {
	return h.Pipeline.Resume(ctx, importID, opts)
}

// CancelImport requests cooperative cancellation (spec.md §6.4 Media:
// cancel_import).
func (h *Handle) CancelImport(ctx context.Context, importID string) error {
	return h.Pipeline.Cancel(ctx, importID)
}

// StatusImport reports a session's durable and (if still running) live
// status (spec.md §6.4 Media: status_import).
func (h *Handle) StatusImport(ctx context.Context, importID string) (importpipeline.SessionStatus, error) {
	return h.Pipeline.Status(ctx, importID)
}

// ResumableSessions lists every import left in a non-terminal state
// (spec.md §6.4 Media: resumable_sessions).
func (h *Handle) ResumableSessions(ctx context.Context) ([]catalog.Import, error) {
	return h.Pipeline.ResumableSessions(ctx)
}

// FindMediaByLocation lists all media rows (across kinds) bound to a
// Location (spec.md §6.4 Media: find_by_location).
func (h *Handle) FindMediaByLocation(ctx context.Context, locID string) ([]catalog.Media, error) {
	return h.Catalog.ListMediaForLocation(ctx, locID)
}

// DeleteMedia removes a media row, clears any stale hero pointer to it
// (handled transactionally by catalog.DeleteMedia), and destroys the
// underlying blob once no other media row references the hash (spec.md
// §6.4 Media: delete; spec.md:102 Blob lifecycle "Reference-counted
// delete").
func (h *Handle) DeleteMedia(ctx context.Context, kind catalog.MediaKind, hash string) error {
	archivedPath, err := h.Catalog.ArchivedPathForKind(ctx, kind, hash)
	if err != nil {
		return err
	}

	if err := h.Catalog.DeleteMedia(ctx, kind, hash); err != nil {
		return err
	}

	stillReferenced, err := h.Catalog.ExistsMediaHash(ctx, hash)
	if err != nil {
		return err
	}
	if stillReferenced {
		return nil
	}

	csKind, err := contentstoreKindFor(kind)
	if err != nil {
		return err
	}
	return h.Store.Delete(hash, filepath.Ext(archivedPath), csKind)
}

// contentstoreKindFor maps a catalog media kind to the content store's
// directory kind (spec.md §6.1 storage layout).
func contentstoreKindFor(kind catalog.MediaKind) (contentstore.Kind, error) {
	switch kind {
	case catalog.MediaImage:
		return contentstore.KindImage, nil
	case catalog.MediaVideo:
		return contentstore.KindVideo, nil
	case catalog.MediaDocument:
		return contentstore.KindDocument, nil
	default:
		return "", errs.Validation(nil, "unknown media kind %q", kind)
	}
}

// MoveMediaToSubLocation reassigns a media row's Location/SubLocation
// (spec.md §6.4 Media: move_to_sublocation).
func (h *Handle) MoveMediaToSubLocation(ctx context.Context, kind catalog.MediaKind, hash, locID, subID string) error {
	return h.Catalog.MoveMedia(ctx, kind, hash, locID, subID)
}

// SetMediaHidden toggles a media row's visibility (spec.md §6.4 Media:
// set_hidden).
func (h *Handle) SetMediaHidden(ctx context.Context, kind catalog.MediaKind, hash string, hidden bool, reason string) error {
	return h.Catalog.SetMediaHidden(ctx, kind, hash, hidden, reason)
}
