// Package errs implements the archive's error taxonomy: a closed set of
// kinds that every component surfaces instead of ad-hoc error strings.
//
// The detection pattern mirrors moby/moby's errdefs package: each kind is
// an unexported wrapper type implementing a marker method, and callers
// test for a kind with an Is* predicate that walks the error chain
// (Unwrap/Cause) and type-asserts each link to the kind's marker
// interface rather than to the concrete wrapper.
package errs

import "fmt"

// Kind identifies one of the taxonomy's error classes.
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindConflict
	KindIO
	KindIntegrity
	KindExternal
	KindCancelled
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindIO:
		return "io"
	case KindIntegrity:
		return "integrity"
	case KindExternal:
		return "external"
	case KindCancelled:
		return "cancelled"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

type causer interface {
	Cause() error
}

type unwrapper interface {
	Unwrap() error
}

// wrapped is the concrete error type for every kind. Kind-specific marker
// methods below let errors.As pick it out of a chain without exposing the
// concrete type to callers.
type wrapped struct {
	kind Kind
	msg  string
	err  error
}

func (w *wrapped) Error() string {
	if w.err == nil {
		return w.msg
	}
	if w.msg == "" {
		return w.err.Error()
	}
	return w.msg + ": " + w.err.Error()
}

func (w *wrapped) Unwrap() error { return w.err }

func (w *wrapped) Validation() bool { return w.kind == KindValidation }
func (w *wrapped) NotFound() bool   { return w.kind == KindNotFound }
func (w *wrapped) Conflict() bool   { return w.kind == KindConflict }
func (w *wrapped) IO() bool         { return w.kind == KindIO }
func (w *wrapped) Integrity() bool  { return w.kind == KindIntegrity }
func (w *wrapped) External() bool   { return w.kind == KindExternal }
func (w *wrapped) Cancelled() bool  { return w.kind == KindCancelled }
func (w *wrapped) Internal() bool   { return w.kind == KindInternal }

func newKind(kind Kind, err error, format string, args ...any) *wrapped {
	return &wrapped{kind: kind, err: err, msg: fmt.Sprintf(format, args...)}
}

// Validation wraps err (may be nil) as a Validation-kind error.
func Validation(err error, format string, args ...any) error {
	return newKind(KindValidation, err, format, args...)
}

// NotFound wraps err (may be nil) as a NotFound-kind error.
func NotFound(err error, format string, args ...any) error {
	return newKind(KindNotFound, err, format, args...)
}

// Conflict wraps err (may be nil) as a Conflict-kind error.
func Conflict(err error, format string, args ...any) error {
	return newKind(KindConflict, err, format, args...)
}

// IO wraps err as an IO-kind error.
func IO(err error, format string, args ...any) error {
	return newKind(KindIO, err, format, args...)
}

// Integrity wraps err as an Integrity-kind error: fatal for the file, but
// the session/caller must continue with the rest of the batch.
func Integrity(err error, format string, args ...any) error {
	return newKind(KindIntegrity, err, format, args...)
}

// External wraps err as an External-kind error: non-fatal, logged, the
// caller proceeds without the derived data.
func External(err error, format string, args ...any) error {
	return newKind(KindExternal, err, format, args...)
}

// Cancelled marks err (may be nil) as a Cancelled outcome, not a failure.
func Cancelled(err error, format string, args ...any) error {
	return newKind(KindCancelled, err, format, args...)
}

// Internal wraps err as an Internal-kind error: a bug or unexpected state.
func Internal(err error, format string, args ...any) error {
	return newKind(KindInternal, err, format, args...)
}

type hasValidation interface{ Validation() bool }
type hasNotFound interface{ NotFound() bool }
type hasConflict interface{ Conflict() bool }
type hasIO interface{ IO() bool }
type hasIntegrity interface{ Integrity() bool }
type hasExternal interface{ External() bool }
type hasCancelled interface{ Cancelled() bool }
type hasInternal interface{ Internal() bool }

// IsValidation reports whether err (or anything it wraps) is Validation-kind.
func IsValidation(err error) bool { return matches[hasValidation](err, func(m hasValidation) bool { return m.Validation() }) }

// IsNotFound reports whether err (or anything it wraps) is NotFound-kind.
func IsNotFound(err error) bool { return matches[hasNotFound](err, func(m hasNotFound) bool { return m.NotFound() }) }

// IsConflict reports whether err (or anything it wraps) is Conflict-kind.
func IsConflict(err error) bool { return matches[hasConflict](err, func(m hasConflict) bool { return m.Conflict() }) }

// IsIO reports whether err (or anything it wraps) is IO-kind.
func IsIO(err error) bool { return matches[hasIO](err, func(m hasIO) bool { return m.IO() }) }

// IsIntegrity reports whether err (or anything it wraps) is Integrity-kind.
func IsIntegrity(err error) bool { return matches[hasIntegrity](err, func(m hasIntegrity) bool { return m.Integrity() }) }

// IsExternal reports whether err (or anything it wraps) is External-kind.
func IsExternal(err error) bool { return matches[hasExternal](err, func(m hasExternal) bool { return m.External() }) }

// IsCancelled reports whether err (or anything it wraps) is Cancelled-kind.
func IsCancelled(err error) bool { return matches[hasCancelled](err, func(m hasCancelled) bool { return m.Cancelled() }) }

// IsInternal reports whether err (or anything it wraps) is Internal-kind.
func IsInternal(err error) bool { return matches[hasInternal](err, func(m hasInternal) bool { return m.Internal() }) }

// matches walks err's Unwrap()/Cause() chain looking for something
// implementing I, then applies pred to it.
func matches[I any](err error, pred func(I) bool) bool {
	for err != nil {
		if m, ok := err.(I); ok {
			if pred(m) {
				return true
			}
		}
		switch x := err.(type) {
		case unwrapper:
			err = x.Unwrap()
		case causer:
			err = x.Cause()
		default:
			return false
		}
	}
	return false
}

// KindOf returns the taxonomy kind of err if it (or anything it wraps) is one
// of ours, and ok=true. Useful for structured logging and API responses.
func KindOf(err error) (kind Kind, ok bool) {
	for err != nil {
		if w, isOurs := err.(*wrapped); isOurs {
			return w.kind, true
		}
		switch x := err.(type) {
		case unwrapper:
			err = x.Unwrap()
		case causer:
			err = x.Cause()
		default:
			return 0, false
		}
	}
	return 0, false
}
