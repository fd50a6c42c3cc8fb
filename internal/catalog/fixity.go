package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/bizzlechizzle/archive-core/internal/errs"
)

// RecordFixityCheck writes one immutable verification result (spec.md
// §3.1 FixityRecord, §4.8 scheduled re-verification). Fixity records are
// append-only; there is no UpdateFixityRecord.
func (s *Store) RecordFixityCheck(ctx context.Context, rec FixityRecord) (FixityRecord, error) {
	if rec.CheckID == "" {
		rec.CheckID = uuid.NewString()
	}
	if rec.CheckedAt.IsZero() {
		rec.CheckedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fixity_records (check_id, media_sha, media_type, file_path, checked_at, checked_by, expected_hash, actual_hash, status, actual_size, error_message)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		rec.CheckID, rec.MediaSHA, string(rec.MediaType), rec.FilePath, rec.CheckedAt.Format(time.RFC3339),
		nullableString(rec.CheckedBy), rec.ExpectedHash, nullableString(rec.ActualHash), string(rec.Status),
		nullablePtrInt64(rec.ActualSize), nullableString(rec.ErrorMessage),
	)
	if err != nil {
		return FixityRecord{}, errs.IO(err, "record fixity check for %s", rec.MediaSHA)
	}
	return rec, nil
}

func nullablePtrInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

// LatestFixityForHash returns the most recent FixityRecord for a given
// media hash, if any.
func (s *Store) LatestFixityForHash(ctx context.Context, mediaSHA string) (FixityRecord, error) {
	row := s.db.QueryRowContext(ctx, fixitySelectColumns+`
		FROM fixity_records WHERE media_sha = ? ORDER BY checked_at DESC LIMIT 1`, mediaSHA)
	rec, err := scanFixityRecord(row)
	if err == sql.ErrNoRows {
		return FixityRecord{}, errs.NotFound(err, "no fixity record for %s", mediaSHA)
	}
	if err != nil {
		return FixityRecord{}, errs.IO(err, "get latest fixity for %s", mediaSHA)
	}
	return rec, nil
}

// NotVerifiedSince returns every media hash across all three kinds whose
// most recent fixity check (or complete absence of one) predates cutoff
// (spec.md §4.8 scope: not_verified_since(date)).
func (s *Store) NotVerifiedSince(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT imghash FROM (
			SELECT imghash FROM media_images
			UNION SELECT imghash FROM media_videos
			UNION SELECT imghash FROM media_documents
		) all_media
		WHERE imghash NOT IN (
			SELECT media_sha FROM fixity_records WHERE checked_at >= ?
		)`, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, errs.IO(err, "query not-verified-since")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, errs.IO(err, "scan not-verified-since row")
		}
		out = append(out, hash)
	}
	return out, rows.Err()
}

// RandomSampleHashes returns up to n random media hashes across all
// kinds, for the random_sample(n) fixity scope (spec.md §4.8).
func (s *Store) RandomSampleHashes(ctx context.Context, n int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT imghash FROM (
			SELECT imghash FROM media_images
			UNION SELECT imghash FROM media_videos
			UNION SELECT imghash FROM media_documents
		) all_media ORDER BY RANDOM() LIMIT ?`, n)
	if err != nil {
		return nil, errs.IO(err, "random sample hashes")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, errs.IO(err, "scan random sample row")
		}
		out = append(out, hash)
	}
	return out, rows.Err()
}

// AllMediaHashes returns every media hash across all kinds, for the
// "all" fixity scope (spec.md §4.8).
func (s *Store) AllMediaHashes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT imghash FROM media_images
		UNION SELECT imghash FROM media_videos
		UNION SELECT imghash FROM media_documents`)
	if err != nil {
		return nil, errs.IO(err, "list all media hashes")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, errs.IO(err, "scan all-hashes row")
		}
		out = append(out, hash)
	}
	return out, rows.Err()
}

const fixitySelectColumns = `SELECT check_id, media_sha, media_type, file_path, checked_at, checked_by, expected_hash, actual_hash, status, actual_size, error_message`

func scanFixityRecord(row rowScanner) (FixityRecord, error) {
	var rec FixityRecord
	var checkedBy, actualHash, errorMessage sql.NullString
	var actualSize sql.NullInt64
	var mediaType, status, checkedAt string

	err := row.Scan(&rec.CheckID, &rec.MediaSHA, &mediaType, &rec.FilePath, &checkedAt, &checkedBy,
		&rec.ExpectedHash, &actualHash, &status, &actualSize, &errorMessage)
	if err != nil {
		return FixityRecord{}, err
	}
	rec.MediaType = MediaKind(mediaType)
	rec.Status = FixityStatus(status)
	rec.CheckedAt, _ = time.Parse(time.RFC3339, checkedAt)
	rec.CheckedBy, rec.ActualHash, rec.ErrorMessage = checkedBy.String, actualHash.String, errorMessage.String
	if actualSize.Valid {
		rec.ActualSize = &actualSize.Int64
	}
	return rec, nil
}
