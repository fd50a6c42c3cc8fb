package importpipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bizzlechizzle/archive-core/internal/catalog"
	"github.com/bizzlechizzle/archive-core/internal/errs"
	"github.com/bizzlechizzle/archive-core/internal/jobqueue"
	"github.com/bizzlechizzle/archive-core/internal/matching"
	"github.com/bizzlechizzle/archive-core/internal/metadataprobe"
)

const (
	gpsMismatchMinorM = 100.0
	gpsMismatchMajorM = 500.0
)

// DerivativeJob is the payload enqueued for the thumbnail/proxy worker
// pools once a media row commits (spec.md §4.7 Step 5, §4.6).
type DerivativeJob struct {
	Hash         string            `json:"hash"`
	Kind         catalog.MediaKind `json:"kind"`
	ArchivedPath string            `json:"archived_path"`
}

// finalizePlannedFiles probes metadata (spec.md §4.7 Step 4) and commits
// the media row for every placed file (Step 5), in one pass per file since
// the planned_files state machine only distinguishes "placed" from
// "rowed" — resuming a crashed session re-probes (cheap; the probe caches
// by path+mtime) rather than tracking a separate validated state.
func (p *Pipeline) finalizePlannedFiles(ctx context.Context, importID string, loc catalog.Location, opts Options, warnings map[string][]Warning) error {
	placed, err := p.catalog.ListPlannedFiles(ctx, importID, catalog.PlannedFilePlaced)
	if err != nil {
		return err
	}

	for _, pf := range placed {
		if cancelled, cerr := p.checkCancel(ctx, importID); cerr != nil {
			return cerr
		} else if cancelled {
			return errs.Cancelled(nil, "import %s cancelled during finalize", importID)
		}

		media := catalog.Media{
			Hash:          pf.SHA256,
			Kind:          pf.MediaKind,
			OriginalName:  filepath.Base(pf.SourcePath),
			OriginalPath:  pf.SourcePath,
			ArchivedPath:  pf.PlacedPath,
			LocID:         opts.LocID,
			SubID:         opts.SubID,
			ImportID:      importID,
			FileSizeBytes: pf.SizeBytes,
		}

		mtime := fileMtime(pf.SourcePath)
		switch pf.MediaKind {
		case catalog.MediaImage:
			if meta, perr := p.probe.ProbeImage(ctx, pf.SourcePath, mtime); perr != nil {
				p.log.WithError(perr).WithField("path", pf.SourcePath).Warn("metadata probe failed, continuing without it")
			} else {
				applyImageMeta(&media, meta)
				if w := gpsMismatchWarning(loc, meta.GPSLat, meta.GPSLng); w != nil {
					warnings[pf.SourcePath] = append(warnings[pf.SourcePath], *w)
				}
			}
		case catalog.MediaVideo:
			if meta, perr := p.probe.ProbeVideo(ctx, pf.SourcePath, mtime); perr != nil {
				p.log.WithError(perr).WithField("path", pf.SourcePath).Warn("video probe failed, continuing without it")
			} else {
				applyVideoMeta(&media, meta)
				if w := gpsMismatchWarning(loc, meta.GPSLat, meta.GPSLng); w != nil {
					warnings[pf.SourcePath] = append(warnings[pf.SourcePath], *w)
				}
			}
		}

		if err := p.catalog.InsertMedia(ctx, media); err != nil {
			if !errs.IsConflict(err) {
				pf.State = catalog.PlannedFileError
				pf.ErrorMessage = err.Error()
				if uerr := p.catalog.UpsertPlannedFile(ctx, pf); uerr != nil {
					return uerr
				}
				continue
			}
			// Another session inserted this hash between our hash and
			// finalize steps; treat as a duplicate rather than a failure.
			pf.State = catalog.PlannedFileDuplicate
			if uerr := p.catalog.UpsertPlannedFile(ctx, pf); uerr != nil {
				return uerr
			}
			continue
		}

		pf.State = catalog.PlannedFileRowed
		if err := p.catalog.UpsertPlannedFile(ctx, pf); err != nil {
			return err
		}

		p.enqueueDerivativeJobs(media)

		if opts.DeleteOriginals {
			if err := os.Remove(pf.SourcePath); err != nil && !os.IsNotExist(err) {
				p.log.WithError(err).WithField("path", pf.SourcePath).Warn("failed to delete original after import")
			}
		}
	}
	return nil
}

func (p *Pipeline) enqueueDerivativeJobs(m catalog.Media) {
	if p.jobs == nil {
		return
	}
	switch m.Kind {
	case catalog.MediaImage:
		if _, err := p.jobs.Enqueue(jobqueue.QueueThumbnail, DerivativeJob{Hash: m.Hash, Kind: m.Kind, ArchivedPath: m.ArchivedPath}); err != nil {
			p.log.WithError(err).Warn("failed to enqueue thumbnail job")
		}
	case catalog.MediaVideo:
		if _, err := p.jobs.Enqueue(jobqueue.QueueProxy, DerivativeJob{Hash: m.Hash, Kind: m.Kind, ArchivedPath: m.ArchivedPath}); err != nil {
			p.log.WithError(err).Warn("failed to enqueue proxy/poster job")
		}
	}
}

func applyImageMeta(m *catalog.Media, meta metadataprobe.ImageMeta) {
	m.Width, m.Height = meta.Width, meta.Height
	m.CameraMake, m.CameraModel = meta.CameraMake, meta.CameraModel
	m.RawEXIFJSON = meta.RawEXIFJSON
	m.GPSLat, m.GPSLng = meta.GPSLat, meta.GPSLng
	if !meta.DateTaken.IsZero() {
		t := meta.DateTaken
		m.DateTaken = &t
	}
}

func applyVideoMeta(m *catalog.Media, meta metadataprobe.VideoMeta) {
	m.Width, m.Height = meta.Width, meta.Height
	m.DurationS, m.Codec, m.FPS = meta.DurationS, meta.Codec, meta.FPS
	m.GPSLat, m.GPSLng = meta.GPSLat, meta.GPSLng
	m.DateTaken = meta.DateTaken
}

// gpsMismatchWarning flags when a file's EXIF GPS disagrees with its
// Location's GPS beyond the spec's thresholds; the Location GPS remains
// authoritative and is never mutated by this (spec.md §4.7 Ordering &
// tie-breaks).
func gpsMismatchWarning(loc catalog.Location, fileLat, fileLng *float64) *Warning {
	if loc.GPS == nil || fileLat == nil || fileLng == nil {
		return nil
	}
	dist := matching.Haversine(loc.GPS.Lat, loc.GPS.Lng, *fileLat, *fileLng)
	if dist <= gpsMismatchMinorM {
		return nil
	}
	severity := "minor"
	if dist > gpsMismatchMajorM {
		severity = "major"
	}
	return &Warning{
		Kind:     "gps_mismatch",
		Severity: severity,
		Message:  fmt.Sprintf("file GPS is %.0fm from location GPS", dist),
	}
}
