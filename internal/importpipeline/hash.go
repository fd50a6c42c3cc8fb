package importpipeline

import (
	"context"

	"github.com/bizzlechizzle/archive-core/internal/catalog"
	"github.com/bizzlechizzle/archive-core/internal/errs"
	"github.com/bizzlechizzle/archive-core/internal/hashing"
)

// hashPlannedFiles stream-hashes every still-planned media file, marking
// in-session and cross-session duplicates before any bytes are copied
// (spec.md §4.7 Step 2). When two source paths in this session hash the
// same, the first one seen wins; later ones are in-session duplicates
// (spec.md §4.7 Ordering & tie-breaks).
func (p *Pipeline) hashPlannedFiles(ctx context.Context, importID string) error {
	planned, err := p.catalog.ListPlannedFiles(ctx, importID, catalog.PlannedFilePlanned)
	if err != nil {
		return err
	}

	var totalBytes int64
	for _, pf := range planned {
		if pf.MediaKind == "" {
			continue
		}
		if info, statErr := osStat(pf.SourcePath); statErr == nil {
			totalBytes += info.Size()
		}
	}

	seen := make(map[string]string, len(planned))
	var bytesDone int64
	var filesDone int
	mediaCount := countMediaPlanned(planned)

	for _, pf := range planned {
		if pf.MediaKind == "" {
			// map/sidecar/skip rows carry no media kind and never reach
			// the hash step.
			continue
		}
		if cancelled, cerr := p.checkCancel(ctx, importID); cerr != nil {
			return cerr
		} else if cancelled {
			return errs.Cancelled(nil, "import %s cancelled during hashing", importID)
		}

		sha, size, hashErr := hashing.HashFile(pf.SourcePath)
		if hashErr != nil {
			pf.State = catalog.PlannedFileError
			pf.ErrorMessage = hashErr.Error()
			if err := p.catalog.UpsertPlannedFile(ctx, pf); err != nil {
				return err
			}
			filesDone++
			continue
		}
		pf.SHA256 = sha
		pf.SizeBytes = size
		bytesDone += size
		filesDone++

		if _, dup := seen[sha]; dup {
			pf.State = catalog.PlannedFileDuplicate
		} else {
			seen[sha] = pf.SourcePath
			exists, existsErr := p.catalog.ExistsMediaHash(ctx, sha)
			if existsErr != nil {
				return existsErr
			}
			if exists {
				pf.State = catalog.PlannedFileDuplicate
			} else {
				pf.State = catalog.PlannedFileHashed
			}
		}
		if err := p.catalog.UpsertPlannedFile(ctx, pf); err != nil {
			return err
		}

		p.emitProgress(Progress{
			ImportID: importID, Step: "hashing",
			FilesDone: filesDone, FilesTotal: mediaCount,
			BytesDone: bytesDone, BytesTotal: totalBytes,
		})
	}
	return nil
}

func countMediaPlanned(files []catalog.PlannedFile) int {
	n := 0
	for _, pf := range files {
		if pf.MediaKind != "" {
			n++
		}
	}
	return n
}
