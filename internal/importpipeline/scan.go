package importpipeline

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bizzlechizzle/archive-core/internal/catalog"
	"github.com/bizzlechizzle/archive-core/internal/errs"
)

type scannedFile struct {
	path  string
	class fileClass
}

// scan recursively enumerates sourcePaths, skipping hidden files and
// directories, classifies every file, and records the full set as
// planned-file rows, associating sidecars with their principal by filename
// stem (spec.md §4.7 Step 1).
func (p *Pipeline) scan(ctx context.Context, importID string, sourcePaths []string) error {
	var all []scannedFile

	for _, root := range sourcePaths {
		if err := ctx.Err(); err != nil {
			return errs.Cancelled(err, "scan cancelled")
		}
		info, err := os.Stat(root)
		if err != nil {
			return errs.IO(err, "stat source path %s", root)
		}
		if !info.IsDir() {
			if !isHidden(root) {
				all = append(all, scannedFile{path: root, class: classify(root)})
			}
			continue
		}
		walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, werr error) error {
			if werr != nil {
				return werr
			}
			if d.IsDir() {
				if path != root && isHidden(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if isHidden(path) {
				return nil
			}
			all = append(all, scannedFile{path: path, class: classify(path)})
			return nil
		})
		if walkErr != nil {
			return errs.IO(walkErr, "walk source path %s", root)
		}
	}

	// First pass: index every non-sidecar file by (dir, stem) so sidecars
	// can be associated regardless of walk order.
	principalByStem := make(map[string]string, len(all))
	for _, f := range all {
		if f.class == classSidecar || f.class == classSkip || f.class == classMap {
			continue
		}
		principalByStem[filepath.Join(filepath.Dir(f.path), stem(f.path))] = f.path
	}

	for _, f := range all {
		if err := ctx.Err(); err != nil {
			return errs.Cancelled(err, "scan cancelled")
		}
		pf := catalog.PlannedFile{
			ImportID:   importID,
			SourcePath: f.path,
			State:      catalog.PlannedFilePlanned,
		}
		switch f.class {
		case classImage, classVideo, classDocument:
			pf.MediaKind = mediaKindOf(f.class)
		case classSidecar:
			key := filepath.Join(filepath.Dir(f.path), stem(f.path))
			if principal, ok := principalByStem[key]; ok {
				pf.SidecarOf = principal
			}
			pf.State = catalog.PlannedFileSkipped
		case classMap:
			// Reference-map files go through catalog.CreateReferenceMap /
			// refmap.ParseFile, not the media pipeline.
			pf.State = catalog.PlannedFileSkipped
		case classSkip:
			pf.State = catalog.PlannedFileSkipped
		}
		if err := p.catalog.UpsertPlannedFile(ctx, pf); err != nil {
			return err
		}
	}
	return nil
}
