package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizzlechizzle/archive-core/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ARCHIVE_ARCHIVE_PATH", filepath.Join(dir, "archive"))

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "archive"), cfg.ArchivePath)
	assert.Equal(t, filepath.Join(dir, "archive", ".catalog", "archive.db"), cfg.CatalogPath)
	assert.False(t, cfg.Import.DeleteOriginals)
	assert.False(t, cfg.Import.UseHardlinks)
	assert.True(t, cfg.Import.VerifyChecksums)
	assert.Equal(t, 30, cfg.Fixity.IntervalDays)
	assert.False(t, cfg.Fixity.OnStartup)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	confPath := filepath.Join(dir, "archive.toml")
	err := os.WriteFile(confPath, []byte(`
archive_path = "/from/file"

[import]
use_hardlinks = true
`), 0o644)
	require.NoError(t, err)

	t.Setenv("ARCHIVE_ARCHIVE_PATH", "/from/env")

	cfg, err := config.Load(confPath)
	require.NoError(t, err)

	assert.Equal(t, "/from/env", cfg.ArchivePath)
	assert.True(t, cfg.Import.UseHardlinks, "file value should survive when env doesn't override it")
}
