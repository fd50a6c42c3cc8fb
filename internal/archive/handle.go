// Package archive binds the archive's components into one "handle"
// object exposing the public API surface the UI/CLI consumes (spec.md
// §6.4, component C10). It owns the lifecycle of every subordinate
// component: one Open constructs the catalog, content store, metadata
// probe, derivative generator, job queue, import pipeline, and fixity
// service, and one Close releases them all.
//
// Collecting process-wide singletons into one explicit, owned struct
// instead of reaching for package-level globals follows spec.md §9's
// redesign guidance directly; the shape itself is grounded on the
// teacher's `fs.NewFs`/`cache.NewFs` constructors, which likewise wire a
// backend's storage layer, HTTP transport, and pacer into a single
// returned object with its own Shutdown.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/bizzlechizzle/archive-core/internal/catalog"
	"github.com/bizzlechizzle/archive-core/internal/config"
	"github.com/bizzlechizzle/archive-core/internal/contentstore"
	"github.com/bizzlechizzle/archive-core/internal/derivative"
	"github.com/bizzlechizzle/archive-core/internal/fixity"
	"github.com/bizzlechizzle/archive-core/internal/importpipeline"
	"github.com/bizzlechizzle/archive-core/internal/jobqueue"
	"github.com/bizzlechizzle/archive-core/internal/metadataprobe"
)

// Handle owns every component backing one archive (spec.md §9:
// "initialization and teardown are scoped to one archive handle object
// with a guaranteed release on all exit paths").
type Handle struct {
	cfg config.Config
	log *logrus.Entry

	Catalog  *catalog.Store
	Store    *contentstore.Store
	Probe    *metadataprobe.Probe
	Derive   *derivative.Generator
	Jobs     *jobqueue.Queue
	Pipeline *importpipeline.Pipeline
	Fixity   *fixity.Service

	cancelWorkers context.CancelFunc

	fixityOnce sync.Once
	fixityLast *fixityResult
}

// Open wires every component from cfg. The job queue always lives at
// <archive_path>/.jobs/queue.db.
func Open(cfg config.Config, log *logrus.Entry) (*Handle, error) {
	if cfg.ArchivePath == "" {
		return nil, fmt.Errorf("archive_path is required")
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	store, err := contentstore.New(cfg.ArchivePath, log)
	if err != nil {
		return nil, fmt.Errorf("open content store: %w", err)
	}

	cat, err := catalog.Open(cfg.CatalogPath, log)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	exifRunner, err := metadataprobe.NewExiftoolRunner()
	if err != nil {
		log.WithError(err).Warn("exiftool unavailable, EXIF extraction falls back to goexif")
		exifRunner = nil
	}
	videoProber := metadataprobe.NewFFProbeVideoProber("")
	probe, err := metadataprobe.New(exifRunner, nil, videoProber, cfg.MetadataToolTimeout, log)
	if err != nil {
		_ = cat.Close()
		return nil, fmt.Errorf("open metadata probe: %w", err)
	}

	derive, err := derivative.New(store, derivative.Options{}, log)
	if err != nil {
		_ = cat.Close()
		probe.Close()
		return nil, fmt.Errorf("open derivative generator: %w", err)
	}

	jobsPath := filepath.Join(cfg.ArchivePath, ".jobs", "queue.db")
	if err := os.MkdirAll(filepath.Dir(jobsPath), 0o755); err != nil {
		_ = cat.Close()
		probe.Close()
		derive.Close()
		return nil, fmt.Errorf("create job queue directory: %w", err)
	}
	jobs, err := jobqueue.Open(jobsPath, jobqueue.Options{})
	if err != nil {
		_ = cat.Close()
		probe.Close()
		derive.Close()
		return nil, fmt.Errorf("open job queue: %w", err)
	}

	pipeline := importpipeline.New(cat, store, probe, jobs, log)
	fixitySvc := fixity.New(cat, store, cfg.Fixity.IntervalDays, cfg.Fixity.OnStartup, log)

	h := &Handle{
		cfg: cfg, log: log.WithField("component", "archive"),
		Catalog: cat, Store: store, Probe: probe, Derive: derive,
		Jobs: jobs, Pipeline: pipeline, Fixity: fixitySvc,
	}
	return h, nil
}

// StartBackgroundWork launches the derivative job worker pools and the
// fixity scheduler, all tied to one cancellable context (spec.md §5
// Scheduling model). Call Close to stop them.
func (h *Handle) StartBackgroundWork(ctx context.Context, thumbnailHandler, proxyHandler jobqueue.Handler) {
	ctx, cancel := context.WithCancel(ctx)
	h.cancelWorkers = cancel

	if thumbnailHandler != nil {
		jobqueue.NewPool(ctx, h.Jobs, jobqueue.QueueThumbnail, 0, "thumbnail-worker", thumbnailHandler, h.log)
	}
	if proxyHandler != nil {
		jobqueue.NewPool(ctx, h.Jobs, jobqueue.QueueProxy, 1, "proxy-worker", proxyHandler, h.log)
	}
	h.Fixity.StartScheduler(ctx, 50)
}

// Close releases every component in reverse of acquisition order,
// guaranteed to run on all exit paths (spec.md §9).
func (h *Handle) Close() error {
	if h.cancelWorkers != nil {
		h.cancelWorkers()
	}
	var firstErr error
	if err := h.Jobs.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	h.Derive.Close()
	h.Probe.Close()
	if err := h.Catalog.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
