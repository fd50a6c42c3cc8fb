package derivative_test

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizzlechizzle/archive-core/internal/contentstore"
	"github.com/bizzlechizzle/archive-core/internal/derivative"
)

func writeTestJPEG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 100, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "src.jpg")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, nil))
	return path
}

func newGenerator(t *testing.T) (*derivative.Generator, *contentstore.Store) {
	t.Helper()
	store, err := contentstore.New(t.TempDir(), nil)
	require.NoError(t, err)
	gen, err := derivative.New(store, derivative.Options{}, nil)
	require.NoError(t, err)
	t.Cleanup(gen.Close)
	return gen, store
}

func TestGenerateImageThumbnailsWritesBothTiers(t *testing.T) {
	gen, _ := newGenerator(t)
	src := writeTestJPEG(t, 1600, 1200)

	result, err := gen.GenerateImageThumbnails(context.Background(), "deadbeef", src, 1)
	require.NoError(t, err)

	assertValidJPEGWithMaxEdge(t, result.SmallPath, derivative.TierSmallMaxEdge)
	assertValidJPEGWithMaxEdge(t, result.LargePath, derivative.TierLargeMaxEdge)

	// No leftover temp files beside the atomically-renamed tiers.
	entries, err := os.ReadDir(filepath.Dir(result.SmallPath))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-")
	}
}

func assertValidJPEGWithMaxEdge(t *testing.T, path string, maxEdge int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := jpeg.Decode(f)
	require.NoError(t, err)
	b := img.Bounds()
	assert.LessOrEqual(t, b.Dx(), maxEdge)
	assert.LessOrEqual(t, b.Dy(), maxEdge)
}

func TestGenerateImageThumbnailsIsIdempotentOverwrite(t *testing.T) {
	gen, _ := newGenerator(t)
	src := writeTestJPEG(t, 800, 600)

	r1, err := gen.GenerateImageThumbnails(context.Background(), "abc123", src, 1)
	require.NoError(t, err)
	r2, err := gen.GenerateImageThumbnails(context.Background(), "abc123", src, 1)
	require.NoError(t, err)
	assert.Equal(t, r1.SmallPath, r2.SmallPath)
	assert.Equal(t, r1.LargePath, r2.LargePath)
}

func TestGenerateFromPreviewBytes(t *testing.T) {
	gen, _ := newGenerator(t)
	src := writeTestJPEG(t, 1000, 1000)
	data, err := os.ReadFile(src)
	require.NoError(t, err)

	result, err := gen.GenerateFromPreviewBytes(context.Background(), "rawsha", data, 6)
	require.NoError(t, err)
	assertValidJPEGWithMaxEdge(t, result.SmallPath, derivative.TierSmallMaxEdge)
}

func TestGeneratePosterRejectsNonVideoInput(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed in this environment")
	}
	gen, _ := newGenerator(t)
	src := writeTestJPEG(t, 320, 240) // not a real video, but exercises the error path
	_, err := gen.GeneratePoster(context.Background(), "videosha", src)
	assert.Error(t, err, "ffmpeg should reject a non-video input")
}
