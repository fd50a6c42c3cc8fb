package importpipeline

import (
	"context"

	"github.com/bizzlechizzle/archive-core/internal/catalog"
)

// ResumableSessions lists every import left in a non-terminal state
// across all locations, for an API/daemon-startup sweep that offers to
// resume them (spec.md §6.4 resumable_sessions()).
func (p *Pipeline) ResumableSessions(ctx context.Context) ([]catalog.Import, error) {
	return p.catalog.ListResumableImports(ctx)
}

// Cancel requests cooperative cancellation of a running or resumable
// import session. The session observes the request at its next
// planned-file boundary (spec.md §5 Cancellation semantics).
func (p *Pipeline) Cancel(ctx context.Context, importID string) error {
	return p.catalog.RequestImportCancel(ctx, importID)
}

// SessionStatus is the status_import() response shape: the durable
// Import row plus a live in-memory snapshot when this Pipeline instance
// is the one driving the session (spec.md §6.4 status_import()).
type SessionStatus struct {
	Import        catalog.Import
	StateCounts   map[catalog.PlannedFileState]int
	Live          *Result
	LiveAvailable bool
}

// Status reports an import session's durable state and, if this process
// is currently running it, a live in-progress Result.
func (p *Pipeline) Status(ctx context.Context, importID string) (SessionStatus, error) {
	imp, err := p.catalog.GetImport(ctx, importID)
	if err != nil {
		return SessionStatus{}, err
	}
	counts, err := p.catalog.CountPlannedFilesByState(ctx, importID)
	if err != nil {
		return SessionStatus{}, err
	}
	status := SessionStatus{Import: imp, StateCounts: counts}
	if live, ok := p.LiveResult(importID); ok {
		status.Live = live
		status.LiveAvailable = true
	}
	return status, nil
}
