// Package config loads the archive's configuration from, in priority
// order, ARCHIVE_-prefixed environment variables, a TOML file discovered
// at a conventional location, and built-in defaults (spec.md §6.5).
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

// Import holds the default behavior of import sessions; individual
// sessions may still override these per-call (spec.md §4.7 Inputs).
type Import struct {
	DeleteOriginals bool `toml:"delete_originals"`
	UseHardlinks    bool `toml:"use_hardlinks"`
	VerifyChecksums bool `toml:"verify_checksums"`
}

// Fixity holds the fixity service's scheduling defaults.
type Fixity struct {
	IntervalDays int  `toml:"interval_days"`
	OnStartup    bool `toml:"on_startup"`
}

// Config is the archive's fully resolved configuration.
type Config struct {
	ArchivePath string `toml:"archive_path"`
	CatalogPath string `toml:"catalog_path"`

	Import Import `toml:"import"`
	Fixity Fixity `toml:"fixity"`

	// MetadataToolTimeout bounds a single exiftool/ffprobe invocation
	// (spec.md §5 Timeouts).
	MetadataToolTimeout time.Duration `toml:"metadata_tool_timeout" envconfig:"default=30s"`

	// JobConcurrency sets the per-queue worker pool size; zero means the
	// component picks a default (NumCPU for thumbnail/metadata, 1 for
	// proxy, per spec.md §4.6).
	JobConcurrency map[string]int `toml:"-"`
}

// envConfig mirrors Config but with envconfig-friendly flattened fields;
// envconfig doesn't descend into structs with a `toml`-only tag set, so we
// keep its prefix scan on a dedicated struct and merge the result in.
type envConfig struct {
	ArchivePath           string `split_words:"true"`
	CatalogPath           string `split_words:"true"`
	ImportDeleteOriginals bool   `split_words:"true"`
	ImportUseHardlinks    bool   `split_words:"true"`
	ImportVerifyChecksums bool   `split_words:"true"`
	FixityIntervalDays    int    `split_words:"true"`
	FixityOnStartup       bool   `split_words:"true"`
}

const envPrefix = "archive"

// defaults returns the built-in configuration, lowest priority.
func defaults() Config {
	return Config{
		Import: Import{
			DeleteOriginals: false,
			UseHardlinks:    false,
			VerifyChecksums: true,
		},
		Fixity: Fixity{
			IntervalDays: 30,
			OnStartup:    false,
		},
		MetadataToolTimeout: 30 * time.Second,
	}
}

// searchPaths returns, in order, the conventional locations an archive.toml
// might live, cheapest/most-specific first.
func searchPaths() []string {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, "archive.toml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "archive", "archive.toml"))
	}
	paths = append(paths, "/etc/archive/archive.toml")
	return paths
}

// Load resolves a Config from env vars, then a discovered config file,
// then defaults. explicitPath, if non-empty, is tried before the
// conventional search locations and is an error if missing.
func Load(explicitPath string) (Config, error) {
	cfg := defaults()

	// File layer: lowest-priority override of defaults, highest-priority
	// source for values env vars don't set.
	path := explicitPath
	if path == "" {
		for _, p := range searchPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !(explicitPath == "" && os.IsNotExist(err)) {
				return Config{}, err
			}
		}
	}

	var ec envConfig
	ec.ArchivePath = cfg.ArchivePath
	ec.CatalogPath = cfg.CatalogPath
	ec.ImportDeleteOriginals = cfg.Import.DeleteOriginals
	ec.ImportUseHardlinks = cfg.Import.UseHardlinks
	ec.ImportVerifyChecksums = cfg.Import.VerifyChecksums
	ec.FixityIntervalDays = cfg.Fixity.IntervalDays
	ec.FixityOnStartup = cfg.Fixity.OnStartup

	if err := envconfig.Process(envPrefix, &ec); err != nil {
		return Config{}, err
	}

	cfg.ArchivePath = ec.ArchivePath
	cfg.CatalogPath = ec.CatalogPath
	cfg.Import.DeleteOriginals = ec.ImportDeleteOriginals
	cfg.Import.UseHardlinks = ec.ImportUseHardlinks
	cfg.Import.VerifyChecksums = ec.ImportVerifyChecksums
	cfg.Fixity.IntervalDays = ec.FixityIntervalDays
	cfg.Fixity.OnStartup = ec.FixityOnStartup

	if cfg.CatalogPath == "" && cfg.ArchivePath != "" {
		cfg.CatalogPath = filepath.Join(cfg.ArchivePath, ".catalog", "archive.db")
	}
	return cfg, nil
}
