// Package hashing implements the archive's content-identity hasher
// (spec.md §4.2, component C2): streaming SHA-256 over arbitrary files,
// plus an optional cheap BLAKE3 pre-check fingerprint for duplicate
// triage. The streaming-chunk, never-load-the-whole-file discipline and
// the separation between a cheap optimization hash and the canonical
// identity hash mirror the teacher's hasher backend
// (backend/hasher/hasher.go), which layers an optional fast hash
// (fingerprint) over an authoritative one without ever treating the
// former as identity.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"lukechampine.com/blake3"

	"github.com/bizzlechizzle/archive-core/internal/errs"
)

// chunkSize bounds how much of a file is buffered at once; streaming in
// this range keeps memory flat regardless of file size while still
// yielding at a granularity coarse enough to be cheap (spec.md §4.2,
// §5 Suspension points).
const chunkSize = 256 * 1024

// HashFile streams path through SHA-256 and returns its lowercase hex
// digest and the number of bytes read.
func HashFile(path string) (sha256Hex string, bytesRead int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, errs.IO(err, "open %s for hashing", path)
	}
	defer f.Close()
	return HashReader(f)
}

// HashReader streams r through SHA-256, reading in chunkSize-sized
// buffers so large files never need to be loaded whole (spec.md §4.2
// contract).
func HashReader(r io.Reader) (sha256Hex string, bytesRead int64, err error) {
	h := sha256.New()
	buf := make([]byte, chunkSize)
	n, err := io.CopyBuffer(h, r, buf)
	if err != nil {
		return "", n, errs.IO(err, "read while hashing")
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Fingerprint computes a cheap BLAKE3 pre-check over the first n bytes of
// path plus its total size. It exists purely to cut down expensive
// SHA-256 passes when triaging likely-duplicate candidates; it must never
// be used as a blob's canonical identity (spec.md §4.2).
func Fingerprint(path string, n int64) (fp string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, errs.IO(err, "open %s for fingerprint", path)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return "", 0, errs.IO(err, "stat %s", path)
	}

	h := blake3.New(32, nil)
	if _, err := io.CopyN(h, f, n); err != nil && err != io.EOF {
		return "", 0, errs.IO(err, "read prefix of %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), st.Size(), nil
}

// Bucket returns the two hex-character directory bucket for a SHA-256
// hex digest (spec.md §4.1 layout). Callers with a malformed sha get back
// "00" rather than panicking; PathOf callers are expected to have already
// validated the hash came out of this package.
func Bucket(sha string) string {
	if len(sha) < 2 {
		return "00"
	}
	return sha[:2]
}

// CheckConsistentSize flags the impossible case from spec.md §4.2's
// correctness tie-break: two files whose SHA-256 matches but whose sizes
// differ, which can only mean storage corruption or truncation, never a
// genuine hash collision.
func CheckConsistentSize(sha string, knownSize, observedSize int64) error {
	if knownSize != observedSize {
		return errs.Integrity(nil,
			"sha %s: size mismatch (known %d, observed %d) — not a hash collision, storage corruption or truncation",
			sha, knownSize, observedSize)
	}
	return nil
}
