package archive

import (
	"context"
	"sync"

	"github.com/bizzlechizzle/archive-core/internal/fixity"
)

// fixityResult tracks the most recently completed Run, guarded
// separately from the Service itself since Handle, not Service, owns
// the "last result" concept spec.md's Fixity group exposes.
type fixityResult struct {
	mu  sync.Mutex
	val *fixity.Summary
}

func (r *fixityResult) set(s fixity.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.val = &s
}

func (r *fixityResult) get() (fixity.Summary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.val == nil {
		return fixity.Summary{}, false
	}
	return *r.val, true
}

// Verify runs a fixity pass over an arbitrary scope (spec.md §6.4
// Fixity: verify).
func (h *Handle) Verify(ctx context.Context, scope fixity.Scope, checkedBy string) (fixity.Summary, error) {
	summary, err := h.Fixity.Run(ctx, scope, checkedBy)
	if err == nil {
		h.lastFixity().set(summary)
	}
	return summary, err
}

// VerifyLocation runs a fixity pass scoped to one Location (spec.md
// §6.4 Fixity: verify_location).
func (h *Handle) VerifyLocation(ctx context.Context, locID, checkedBy string) (fixity.Summary, error) {
	return h.Verify(ctx, fixity.LocationScope(locID), checkedBy)
}

// VerifyAll runs a fixity pass over every catalogued hash (spec.md §6.4
// Fixity: verify_all).
func (h *Handle) VerifyAll(ctx context.Context, checkedBy string) (fixity.Summary, error) {
	return h.Verify(ctx, fixity.AllScope(), checkedBy)
}

// LastResult returns the most recently completed Run's Summary, for the
// status dashboard (spec.md §6.4 Fixity: last_result).
func (h *Handle) LastResult() (fixity.Summary, bool) {
	return h.lastFixity().get()
}

func (h *Handle) lastFixity() *fixityResult {
	h.fixityOnce.Do(func() { h.fixityLast = &fixityResult{} })
	return h.fixityLast
}
