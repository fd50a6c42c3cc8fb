package errs_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bizzlechizzle/archive-core/internal/errs"
)

func TestKindPredicates(t *testing.T) {
	cases := []struct {
		name string
		err  error
		is   func(error) bool
	}{
		{"validation", errs.Validation(nil, "bad state"), errs.IsValidation},
		{"not_found", errs.NotFound(nil, "location %s", "abc"), errs.IsNotFound},
		{"conflict", errs.Conflict(nil, "loc12 taken"), errs.IsConflict},
		{"io", errs.IO(fmt.Errorf("disk full"), "place"), errs.IsIO},
		{"integrity", errs.Integrity(nil, "hash mismatch"), errs.IsIntegrity},
		{"external", errs.External(nil, "exiftool failed"), errs.IsExternal},
		{"cancelled", errs.Cancelled(nil, "aborted"), errs.IsCancelled},
		{"internal", errs.Internal(nil, "unreachable"), errs.IsInternal},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.True(t, c.is(c.err))
			wrapped := fmt.Errorf("context: %w", c.err)
			assert.True(t, c.is(wrapped))
			doubleWrapped := fmt.Errorf("outer: %w", wrapped)
			assert.True(t, c.is(doubleWrapped))
		})
	}
}

func TestKindPredicatesRejectOtherKinds(t *testing.T) {
	err := errs.NotFound(nil, "missing")
	assert.False(t, errs.IsConflict(err))
	assert.False(t, errs.IsIO(err))
	assert.False(t, errs.IsValidation(fmt.Errorf("plain error")))
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("wrap: %w", errs.Integrity(nil, "corrupt"))
	kind, ok := errs.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, errs.KindIntegrity, kind)
	assert.Equal(t, "integrity", kind.String())

	_, ok = errs.KindOf(fmt.Errorf("plain"))
	assert.False(t, ok)
}
