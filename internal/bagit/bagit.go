// Package bagit writes and verifies the per-location BagIt-style sidecar
// spec.md §6.1 describes: a `bag-info.txt` and `manifest-sha256.txt`
// alongside a Location's blobs, exposing one of four seal statuses
// (none/valid/incomplete/invalid).
//
// No example repo in the retrieved pack implements BagIt (RFC 8493) or
// ships a manifest/sidecar library for it, so this package is stdlib
// only (crypto/sha256, bufio, os) — see DESIGN.md for the justification
// this is the one C10-adjacent component without a third-party grounding.
package bagit

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bizzlechizzle/archive-core/internal/catalog"
	"github.com/bizzlechizzle/archive-core/internal/contentstore"
	"github.com/bizzlechizzle/archive-core/internal/errs"
	"github.com/bizzlechizzle/archive-core/internal/hashing"
)

// Status is one of the four seal states spec.md §6.1 exposes.
type Status string

const (
	StatusNone       Status = "none"
	StatusValid      Status = "valid"
	StatusIncomplete Status = "incomplete"
	StatusInvalid    Status = "invalid"
)

func sidecarDir(storeRoot, locID string) string {
	return filepath.Join(storeRoot, ".bags", locID)
}

func manifestEntries(media []catalog.Media) []manifestEntry {
	entries := make([]manifestEntry, 0, len(media))
	for _, m := range media {
		entries = append(entries, manifestEntry{Hash: m.Hash, Path: m.ArchivedPath, Size: m.FileSizeBytes})
	}
	return entries
}

type manifestEntry struct {
	Hash string
	Path string
	Size int64
}

// Seal writes bag-info.txt and manifest-sha256.txt for every media row
// currently bound to locID and records the resulting status on the
// Location (spec.md §6.1, §6.4 is silent on an explicit seal operation,
// but §6.1 assumes one exists to produce the sidecar).
func Seal(ctx context.Context, cat *catalog.Store, store *contentstore.Store, locID string) (Status, error) {
	media, err := cat.ListMediaForLocation(ctx, locID)
	if err != nil {
		return StatusNone, err
	}
	entries := manifestEntries(media)

	dir := sidecarDir(store.Root(), locID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return StatusNone, errs.IO(err, "create bag sidecar dir for %s", locID)
	}

	var totalBytes int64
	manifestPath := filepath.Join(dir, "manifest-sha256.txt")
	f, err := os.Create(manifestPath)
	if err != nil {
		return StatusNone, errs.IO(err, "create manifest for %s", locID)
	}
	w := bufio.NewWriter(f)
	for _, e := range entries {
		totalBytes += e.Size
		if _, err := fmt.Fprintf(w, "%s  %s\n", e.Hash, e.Path); err != nil {
			f.Close()
			return StatusNone, errs.IO(err, "write manifest entry for %s", locID)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return StatusNone, errs.IO(err, "flush manifest for %s", locID)
	}
	if err := f.Close(); err != nil {
		return StatusNone, errs.IO(err, "close manifest for %s", locID)
	}

	infoPath := filepath.Join(dir, "bag-info.txt")
	info := fmt.Sprintf("Bagging-Date: %s\nPayload-Oxum: %d.%d\n",
		time.Now().UTC().Format(time.RFC3339), totalBytes, len(entries))
	if err := os.WriteFile(infoPath, []byte(info), 0o644); err != nil {
		return StatusNone, errs.IO(err, "write bag-info for %s", locID)
	}

	status, err := Verify(ctx, cat, store, locID)
	if err != nil {
		return StatusNone, err
	}
	sealedAt := time.Now().UTC()
	if err := cat.SetBagStatus(ctx, locID, string(status), &sealedAt); err != nil {
		return StatusNone, err
	}
	return status, nil
}

// Verify re-derives a Location's seal status by reconciling its sidecar
// against the blobs on disk, without rewriting the sidecar (spec.md
// §6.1: "valid requires (a) every expected file present, (b) every hash
// matches, (c) payload-oxum matches").
func Verify(ctx context.Context, cat *catalog.Store, store *contentstore.Store, locID string) (Status, error) {
	dir := sidecarDir(store.Root(), locID)
	manifestPath := filepath.Join(dir, "manifest-sha256.txt")
	infoPath := filepath.Join(dir, "bag-info.txt")

	manifestEntries, err := readManifest(manifestPath)
	if os.IsNotExist(err) {
		return StatusNone, nil
	}
	if err != nil {
		return StatusInvalid, err
	}
	expectedBytes, expectedCount, err := readPayloadOxum(infoPath)
	if err != nil {
		return StatusInvalid, nil
	}

	var actualBytes int64
	for _, e := range manifestEntries {
		stat, err := store.Stat(e.Path)
		if err != nil {
			return StatusIncomplete, nil
		}
		actualHash, _, err := hashing.HashFile(e.Path)
		if err != nil {
			return StatusIncomplete, nil
		}
		if actualHash != e.Hash {
			return StatusInvalid, nil
		}
		actualBytes += stat.Size
	}
	if int64(len(manifestEntries)) != expectedCount || actualBytes != expectedBytes {
		return StatusInvalid, nil
	}
	return StatusValid, nil
}

func readManifest(path string) ([]manifestEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []manifestEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "  ", 2)
		if len(fields) != 2 {
			continue
		}
		entries = append(entries, manifestEntry{Hash: fields[0], Path: fields[1]})
	}
	return entries, scanner.Err()
}

func readPayloadOxum(path string) (bytes int64, count int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		rest, ok := strings.CutPrefix(line, "Payload-Oxum:")
		if !ok {
			continue
		}
		parts := strings.SplitN(strings.TrimSpace(rest), ".", 2)
		if len(parts) != 2 {
			continue
		}
		bytes, _ = strconv.ParseInt(parts[0], 10, 64)
		count, _ = strconv.ParseInt(parts[1], 10, 64)
		return bytes, count, nil
	}
	return 0, 0, fmt.Errorf("bag-info.txt missing Payload-Oxum")
}
