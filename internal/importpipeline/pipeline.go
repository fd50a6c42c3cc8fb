// Package importpipeline implements the archive's resumable import
// pipeline (spec.md §4.7, component C7 — "the hardest subsystem"): a
// five-step staged session (scan, hash, copy, validate, finalize) whose
// durable per-file state lets it resume cleanly after a crash instead of
// redoing completed work.
//
// The session-with-durable-checkpoints shape is grounded on the teacher's
// own resumable transfer model: backend/cache's storage_persistent.go
// tracks pending uploads across restarts the same way import_planned_files
// tracks files across an interrupted import, and the teacher's "stats"
// accounting (accounting.go's mutex-guarded Stats struct) is the model for
// Result, which must be safely readable from a status-polling caller while
// Run is still writing to it on another goroutine.
package importpipeline

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/bizzlechizzle/archive-core/internal/catalog"
	"github.com/bizzlechizzle/archive-core/internal/contentstore"
	"github.com/bizzlechizzle/archive-core/internal/errs"
	"github.com/bizzlechizzle/archive-core/internal/jobqueue"
	"github.com/bizzlechizzle/archive-core/internal/metadataprobe"
)

// Options configures one import session (spec.md §4.7 Inputs).
type Options struct {
	LocID           string
	SubID           string
	SourcePaths     []string
	DeleteOriginals bool
	UseHardlinks    bool
	VerifyChecksums bool
	Actor           string
}

// Outcome classifies one file's final disposition within a session
// (spec.md §7 User-visible failure).
type Outcome string

const (
	OutcomeImported    Outcome = "imported"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeSidecarOnly Outcome = "sidecar_only"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeError       Outcome = "error"
)

// Warning is a non-blocking per-file diagnostic surfaced to the UI
// (spec.md §4.7 Step 4).
type Warning struct {
	Kind     string
	Severity string
	Message  string
}

// FileResult is one file's outcome within a session (spec.md §7).
type FileResult struct {
	SourcePath string
	Hash       string
	Kind       catalog.MediaKind
	Outcome    Outcome
	Warnings   []Warning
	Error      string
}

// Result is a session's aggregate outcome. It is safe for concurrent
// reads while a session is still running, since status_import can be
// polled from a different goroutine than the one driving Run.
type Result struct {
	mu       sync.RWMutex
	ImportID string
	files    []FileResult
	counts   map[Outcome]int
}

func newResult(importID string) *Result {
	return &Result{ImportID: importID, counts: make(map[Outcome]int)}
}

func (r *Result) set(files []FileResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = files
	r.counts = make(map[Outcome]int, len(files))
	for _, f := range files {
		r.counts[f.Outcome]++
	}
}

// Files returns a copy of the current per-file results.
func (r *Result) Files() []FileResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]FileResult, len(r.files))
	copy(out, r.files)
	return out
}

// Counts returns a copy of the per-outcome totals.
func (r *Result) Counts() map[Outcome]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[Outcome]int, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}

// Progress reports byte/file counters during the hashing and copying
// steps (spec.md §4.7 Step 2: "Emit progress by byte count").
type Progress struct {
	ImportID   string
	Step       string
	FilesDone  int
	FilesTotal int
	BytesDone  int64
	BytesTotal int64
}

// Pipeline runs import sessions against one archive's components (spec.md
// §4.7, component C7).
type Pipeline struct {
	catalog *catalog.Store
	store   *contentstore.Store
	probe   *metadataprobe.Probe
	jobs    *jobqueue.Queue
	log     *logrus.Entry

	onProgress func(Progress)

	mu     sync.RWMutex
	active map[string]*Result
}

// New builds a Pipeline. jobs may be nil: derivative jobs are then simply
// not enqueued, which is useful for tests and dry runs.
func New(cat *catalog.Store, store *contentstore.Store, probe *metadataprobe.Probe, jobs *jobqueue.Queue, log *logrus.Entry) *Pipeline {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Pipeline{
		catalog: cat, store: store, probe: probe, jobs: jobs,
		log:    log.WithField("component", "importpipeline"),
		active: make(map[string]*Result),
	}
}

// OnProgress registers a callback invoked as the hash/copy steps make
// progress. Optional; at most one callback is supported at a time.
func (p *Pipeline) OnProgress(fn func(Progress)) { p.onProgress = fn }

func (p *Pipeline) emitProgress(pr Progress) {
	if p.onProgress != nil {
		p.onProgress(pr)
	}
}

// LiveResult returns the in-memory Result for a session still tracked by
// this Pipeline instance (running or just completed), for status_import
// polling without a full catalog round-trip.
func (p *Pipeline) LiveResult(importID string) (*Result, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.active[importID]
	return r, ok
}

// Run starts and drives a brand-new import session end to end (spec.md
// §4.7: scan -> hash -> copy -> validate -> finalize).
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.LocID == "" {
		return nil, errs.Validation(nil, "locid is required")
	}
	if len(opts.SourcePaths) == 0 {
		return nil, errs.Validation(nil, "at least one source path is required")
	}

	imp, err := p.catalog.CreateImport(ctx, opts.LocID, opts.Actor)
	if err != nil {
		return nil, err
	}
	return p.runFrom(ctx, imp.ImportID, opts, catalog.ImportPending)
}

// Resume continues an import session left in a non-terminal state,
// picking up from its planned-file states instead of re-scanning
// (spec.md §4.7 Resumability).
func (p *Pipeline) Resume(ctx context.Context, importID string, opts Options) (*Result, error) {
	imp, err := p.catalog.GetImport(ctx, importID)
	if err != nil {
		return nil, err
	}
	if opts.LocID == "" {
		opts.LocID = imp.LocID
	}
	return p.runFrom(ctx, importID, opts, imp.Status)
}

// stepOrder fixes the sequence resumability skips into (spec.md §4.7
// States).
var stepOrder = []catalog.ImportStatus{
	catalog.ImportPending,
	catalog.ImportScanning,
	catalog.ImportHashing,
	catalog.ImportCopying,
	catalog.ImportValidating,
	catalog.ImportFinalizing,
}

func stepIndex(status catalog.ImportStatus) int {
	for i, s := range stepOrder {
		if s == status {
			return i
		}
	}
	return 0
}

// shouldRun reports whether a step at or after startStatus needs to run.
func shouldRun(startStatus, step catalog.ImportStatus) bool {
	return stepIndex(step) >= stepIndex(startStatus)
}

// runFrom drives the session's state machine starting at startStatus,
// skipping steps already durably completed by an earlier run (spec.md
// §4.7 Resumability). A terminal startStatus (completed/cancelled/failed,
// or the zero value) means "start from scratch".
func (p *Pipeline) runFrom(ctx context.Context, importID string, opts Options, startStatus catalog.ImportStatus) (*Result, error) {
	switch startStatus {
	case catalog.ImportCompleted, catalog.ImportCancelled, catalog.ImportFailed, "":
		startStatus = catalog.ImportPending
	}

	result := newResult(importID)
	p.mu.Lock()
	p.active[importID] = result
	p.mu.Unlock()

	warnings := make(map[string][]Warning)

	fail := func(err error) (*Result, error) {
		if errs.IsCancelled(err) {
			_ = p.catalog.UpdateImportStatus(ctx, importID, catalog.ImportCancelled)
			p.refreshResult(ctx, importID, result, warnings)
			return result, err
		}
		_ = p.catalog.UpdateImportStatus(ctx, importID, catalog.ImportFailed)
		return nil, err
	}

	if shouldRun(startStatus, catalog.ImportScanning) {
		if err := p.catalog.UpdateImportStatus(ctx, importID, catalog.ImportScanning); err != nil {
			return nil, err
		}
		if err := p.scan(ctx, importID, opts.SourcePaths); err != nil {
			return fail(err)
		}
	}

	if shouldRun(startStatus, catalog.ImportHashing) {
		if err := p.catalog.UpdateImportStatus(ctx, importID, catalog.ImportHashing); err != nil {
			return nil, err
		}
		if err := p.hashPlannedFiles(ctx, importID); err != nil {
			return fail(err)
		}
		p.refreshResult(ctx, importID, result, warnings)
	}

	if shouldRun(startStatus, catalog.ImportCopying) {
		if err := p.catalog.UpdateImportStatus(ctx, importID, catalog.ImportCopying); err != nil {
			return nil, err
		}
		if err := p.copyPlannedFiles(ctx, importID, opts); err != nil {
			return fail(err)
		}
		p.refreshResult(ctx, importID, result, warnings)
	}

	loc, err := p.catalog.GetLocation(ctx, opts.LocID)
	if err != nil {
		return fail(err)
	}

	if shouldRun(startStatus, catalog.ImportValidating) {
		if err := p.catalog.UpdateImportStatus(ctx, importID, catalog.ImportValidating); err != nil {
			return nil, err
		}
	}
	if err := p.catalog.UpdateImportStatus(ctx, importID, catalog.ImportFinalizing); err != nil {
		return nil, err
	}
	if err := p.finalizePlannedFiles(ctx, importID, loc, opts, warnings); err != nil {
		return fail(err)
	}

	if err := p.catalog.UpdateImportStatus(ctx, importID, catalog.ImportCompleted); err != nil {
		return nil, err
	}
	p.refreshResult(ctx, importID, result, warnings)

	counts := result.Counts()
	images, videos, documents := 0, 0, 0
	for _, fr := range result.Files() {
		switch fr.Kind {
		case catalog.MediaImage:
			images++
		case catalog.MediaVideo:
			videos++
		case catalog.MediaDocument:
			documents++
		}
	}
	if err := p.catalog.UpdateImportCounts(ctx, importID, images, videos, documents, counts[OutcomeDuplicate], counts[OutcomeError]); err != nil {
		return nil, err
	}
	return result, nil
}

// refreshResult rebuilds a session's Result from the durable planned_files
// table plus the in-memory warnings gathered during finalize, so
// LiveResult reflects real progress while Run is still executing.
func (p *Pipeline) refreshResult(ctx context.Context, importID string, result *Result, warnings map[string][]Warning) {
	files, err := p.buildFileResults(ctx, importID, warnings)
	if err != nil {
		p.log.WithError(err).WithField("import_id", importID).Warn("failed to refresh import result")
		return
	}
	result.set(files)
}

func (p *Pipeline) buildFileResults(ctx context.Context, importID string, warnings map[string][]Warning) ([]FileResult, error) {
	rows, err := p.catalog.ListPlannedFiles(ctx, importID, "")
	if err != nil {
		return nil, err
	}
	out := make([]FileResult, 0, len(rows))
	for _, pf := range rows {
		fr := FileResult{
			SourcePath: pf.SourcePath,
			Hash:       pf.SHA256,
			Kind:       pf.MediaKind,
			Warnings:   warnings[pf.SourcePath],
			Error:      pf.ErrorMessage,
		}
		switch pf.State {
		case catalog.PlannedFileRowed:
			fr.Outcome = OutcomeImported
		case catalog.PlannedFileDuplicate:
			fr.Outcome = OutcomeDuplicate
		case catalog.PlannedFileError:
			fr.Outcome = OutcomeError
		case catalog.PlannedFileSkipped:
			if pf.SidecarOf != "" {
				fr.Outcome = OutcomeSidecarOnly
			} else {
				fr.Outcome = OutcomeSkipped
			}
		default:
			// planned/hashed/placed: still in flight.
			continue
		}
		out = append(out, fr)
	}
	return out, nil
}
