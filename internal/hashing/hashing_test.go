package hashing_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizzlechizzle/archive-core/internal/errs"
	"github.com/bizzlechizzle/archive-core/internal/hashing"
)

func TestHashFileKnownVector(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	sum, n, err := hashing.HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", sum)
}

func TestHashReaderLargeInput(t *testing.T) {
	data := strings.Repeat("x", 1<<20+17) // not a multiple of the chunk size
	sum, n, err := hashing.HashReader(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)
	assert.Len(t, sum, 64)
}

func TestFingerprintDoesNotReadWholeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	require.NoError(t, os.WriteFile(path, strings.Repeat([]byte{0xAB}, 10000), 0o644))

	fp, size, err := hashing.Fingerprint(path, 16)
	require.NoError(t, err)
	assert.Len(t, fp, 64)
	assert.Equal(t, int64(10000), size)
}

func TestBucket(t *testing.T) {
	assert.Equal(t, "ab", hashing.Bucket("abcdef0123456789"))
	assert.Equal(t, "00", hashing.Bucket(""))
}

func TestCheckConsistentSizeFlagsIntegrity(t *testing.T) {
	err := hashing.CheckConsistentSize("deadbeef", 100, 50)
	require.Error(t, err)
	assert.True(t, errs.IsIntegrity(err))

	assert.NoError(t, hashing.CheckConsistentSize("deadbeef", 100, 100))
}
