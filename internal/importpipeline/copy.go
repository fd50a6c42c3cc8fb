package importpipeline

import (
	"context"
	"path/filepath"

	"github.com/bizzlechizzle/archive-core/internal/catalog"
	"github.com/bizzlechizzle/archive-core/internal/contentstore"
	"github.com/bizzlechizzle/archive-core/internal/errs"
	"github.com/bizzlechizzle/archive-core/internal/hashing"
)

func storeKindOf(k catalog.MediaKind) contentstore.Kind {
	switch k {
	case catalog.MediaImage:
		return contentstore.KindImage
	case catalog.MediaVideo:
		return contentstore.KindVideo
	default:
		return contentstore.KindDocument
	}
}

// copyPlannedFiles places every hashed, non-duplicate file into the
// content store: hardlink (if use_hardlinks and same device), else
// reflink/atomic-copy, with an optional extra re-hash-and-compare pass
// (spec.md §4.7 Step 3).
func (p *Pipeline) copyPlannedFiles(ctx context.Context, importID string, opts Options) error {
	hashed, err := p.catalog.ListPlannedFiles(ctx, importID, catalog.PlannedFileHashed)
	if err != nil {
		return err
	}

	ctx = contentstore.WithPlaceOptions(ctx, contentstore.PlaceOptions{UseHardlinks: opts.UseHardlinks})

	var totalBytes, bytesDone int64
	for _, pf := range hashed {
		totalBytes += pf.SizeBytes
	}

	for i, pf := range hashed {
		if cancelled, cerr := p.checkCancel(ctx, importID); cerr != nil {
			return cerr
		} else if cancelled {
			return errs.Cancelled(nil, "import %s cancelled during copy", importID)
		}

		ext := filepath.Ext(pf.SourcePath)
		result, placeErr := p.store.Place(ctx, pf.SourcePath, pf.SHA256, ext, storeKindOf(pf.MediaKind))
		if placeErr != nil {
			if errs.IsCancelled(placeErr) {
				return placeErr
			}
			pf.State = catalog.PlannedFileError
			pf.ErrorMessage = placeErr.Error()
			if err := p.catalog.UpsertPlannedFile(ctx, pf); err != nil {
				return err
			}
			continue
		}

		if opts.VerifyChecksums {
			actual, _, verifyErr := hashing.HashFile(result.Path)
			if verifyErr != nil || actual != pf.SHA256 {
				pf.State = catalog.PlannedFileError
				pf.ErrorMessage = "post-copy checksum verification failed"
				if err := p.catalog.UpsertPlannedFile(ctx, pf); err != nil {
					return err
				}
				continue
			}
		}

		pf.PlacedPath = result.Path
		pf.State = catalog.PlannedFilePlaced
		if err := p.catalog.UpsertPlannedFile(ctx, pf); err != nil {
			return err
		}

		bytesDone += pf.SizeBytes
		p.emitProgress(Progress{
			ImportID: importID, Step: "copying",
			FilesDone: i + 1, FilesTotal: len(hashed),
			BytesDone: bytesDone, BytesTotal: totalBytes,
		})
	}
	return nil
}
