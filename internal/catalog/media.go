package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/bizzlechizzle/archive-core/internal/errs"
)

// tableForKind maps a MediaKind to its backing table (spec.md §9: "typed
// sum variants per media kind").
func tableForKind(kind MediaKind) (string, error) {
	switch kind {
	case MediaImage:
		return "media_images", nil
	case MediaVideo:
		return "media_videos", nil
	case MediaDocument:
		return "media_documents", nil
	default:
		return "", errs.Validation(nil, "unknown media kind %q", kind)
	}
}

// InsertMedia writes one new media row, keyed by its content hash
// (spec.md §3.2 invariant 2: the hash exists at most once).
func (s *Store) InsertMedia(ctx context.Context, m Media) error {
	table, err := tableForKind(m.Kind)
	if err != nil {
		return err
	}
	if m.Hash == "" {
		return errs.Validation(nil, "hash is required")
	}
	if m.Imgadd.IsZero() {
		m.Imgadd = time.Now().UTC()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var execErr error
		switch m.Kind {
		case MediaImage:
			_, execErr = tx.ExecContext(ctx, `
				INSERT INTO media_images (
					imghash, original_name, original_path, archived_path, locid, subid, import_id, imgadd,
					width, height, date_taken, camera_make, camera_model, gps_lat, gps_lng, raw_exif_json,
					thumb_path_sm, thumb_path_lg, preview_path, preview_quality,
					xmp_synced, hidden, hidden_reason, is_live_photo, file_size_bytes
				) VALUES (?,?,?,?,?,?,?,?, ?,?,?,?,?,?,?,?, ?,?,?,?, ?,?,?,?,?)`,
				m.Hash, m.OriginalName, m.OriginalPath, m.ArchivedPath, nullableString(m.LocID), nullableString(m.SubID), nullableString(m.ImportID), m.Imgadd.Format(time.RFC3339),
				nullableInt(m.Width), nullableInt(m.Height), nullableTime(m.DateTaken), nullableString(m.CameraMake), nullableString(m.CameraModel), m.GPSLat, m.GPSLng, nullableString(m.RawEXIFJSON),
				nullableString(m.ThumbPathSm), nullableString(m.ThumbPathLg), nullableString(m.PreviewPath), nullableString(m.PreviewQuality),
				boolToInt(m.XMPSynced), boolToInt(m.Hidden), nullableString(m.HiddenReason), boolToInt(m.IsLivePhoto), m.FileSizeBytes,
			)
		case MediaVideo:
			_, execErr = tx.ExecContext(ctx, `
				INSERT INTO media_videos (
					imghash, original_name, original_path, archived_path, locid, subid, import_id, imgadd,
					width, height, date_taken, gps_lat, gps_lng, raw_exif_json,
					duration_s, codec, fps, poster_extracted, proxy_path,
					thumb_path_sm, thumb_path_lg, hidden, hidden_reason, file_size_bytes
				) VALUES (?,?,?,?,?,?,?,?, ?,?,?,?,?,?, ?,?,?,?,?, ?,?,?,?,?)`,
				m.Hash, m.OriginalName, m.OriginalPath, m.ArchivedPath, nullableString(m.LocID), nullableString(m.SubID), nullableString(m.ImportID), m.Imgadd.Format(time.RFC3339),
				nullableInt(m.Width), nullableInt(m.Height), nullableTime(m.DateTaken), m.GPSLat, m.GPSLng, nullableString(m.RawEXIFJSON),
				m.DurationS, nullableString(m.Codec), m.FPS, boolToInt(m.PosterExtracted), nullableString(m.ProxyPath),
				nullableString(m.ThumbPathSm), nullableString(m.ThumbPathLg), boolToInt(m.Hidden), nullableString(m.HiddenReason), m.FileSizeBytes,
			)
		case MediaDocument:
			_, execErr = tx.ExecContext(ctx, `
				INSERT INTO media_documents (
					imghash, original_name, original_path, archived_path, locid, subid, import_id, imgadd,
					page_count, author, title, hidden, hidden_reason, file_size_bytes
				) VALUES (?,?,?,?,?,?,?,?, ?,?,?,?,?,?)`,
				m.Hash, m.OriginalName, m.OriginalPath, m.ArchivedPath, nullableString(m.LocID), nullableString(m.SubID), nullableString(m.ImportID), m.Imgadd.Format(time.RFC3339),
				nullablePtrInt(m.PageCount), nullableString(m.Author), nullableString(m.Title), boolToInt(m.Hidden), nullableString(m.HiddenReason), m.FileSizeBytes,
			)
		}
		if execErr != nil {
			if isUniqueViolation(execErr) {
				return errs.Conflict(execErr, "media %s already exists in %s", m.Hash, table)
			}
			return errs.IO(execErr, "insert media %s into %s", m.Hash, table)
		}
		return nil
	})
}

func nullableInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullablePtrInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

// ExistsMediaHash reports whether hash is already present in any media
// table, the cross-session duplicate check spec.md §4.7 Step 2 requires.
func (s *Store) ExistsMediaHash(ctx context.Context, hash string) (bool, error) {
	for _, table := range []string{"media_images", "media_videos", "media_documents"} {
		var n int
		err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+` WHERE imghash = ?`, hash).Scan(&n)
		if err != nil {
			return false, errs.IO(err, "check media hash %s in %s", hash, table)
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

// LocateMediaByHash finds which kind table holds a hash and returns its
// archived path, for fixity checks that must re-hash the blob on disk
// without caring which kind it is (spec.md §4.8).
func (s *Store) LocateMediaByHash(ctx context.Context, hash string) (MediaKind, string, error) {
	tables := map[MediaKind]string{
		MediaImage:    "media_images",
		MediaVideo:    "media_videos",
		MediaDocument: "media_documents",
	}
	for kind, table := range tables {
		var archivedPath string
		err := s.db.QueryRowContext(ctx, `SELECT archived_path FROM `+table+` WHERE imghash = ?`, hash).Scan(&archivedPath)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return "", "", errs.IO(err, "locate media %s in %s", hash, table)
		}
		return kind, archivedPath, nil
	}
	return "", "", errs.NotFound(nil, "media %s", hash)
}

// ArchivedPathForKind returns the archived_path of one specific kind+hash
// row, for callers (like media deletion) that already know which table a
// hash lives in and must not guess across kinds the way LocateMediaByHash
// does.
func (s *Store) ArchivedPathForKind(ctx context.Context, kind MediaKind, hash string) (string, error) {
	table, err := tableForKind(kind)
	if err != nil {
		return "", err
	}
	var archivedPath string
	err = s.db.QueryRowContext(ctx, `SELECT archived_path FROM `+table+` WHERE imghash = ?`, hash).Scan(&archivedPath)
	if err == sql.ErrNoRows {
		return "", errs.NotFound(nil, "media %s in %s", hash, table)
	}
	if err != nil {
		return "", errs.IO(err, "locate media %s in %s", hash, table)
	}
	return archivedPath, nil
}

// GetMediaImage fetches one image media row by hash.
func (s *Store) GetMediaImage(ctx context.Context, hash string) (Media, error) {
	row := s.db.QueryRowContext(ctx, imageSelectColumns+` FROM media_images WHERE imghash = ?`, hash)
	m, err := scanMediaImage(row)
	if err == sql.ErrNoRows {
		return Media{}, errs.NotFound(err, "image %s", hash)
	}
	if err != nil {
		return Media{}, errs.IO(err, "get image %s", hash)
	}
	return m, nil
}

// ListMediaForLocation returns all media rows (across kinds) currently
// bound to a Location.
func (s *Store) ListMediaForLocation(ctx context.Context, locID string) ([]Media, error) {
	var out []Media
	rows, err := s.db.QueryContext(ctx, imageSelectColumns+` FROM media_images WHERE locid = ?`, locID)
	if err != nil {
		return nil, errs.IO(err, "list images for %s", locID)
	}
	for rows.Next() {
		m, err := scanMediaImage(rows)
		if err != nil {
			rows.Close()
			return nil, errs.IO(err, "scan image row")
		}
		out = append(out, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errs.IO(err, "list images for %s", locID)
	}

	vrows, err := s.db.QueryContext(ctx, videoSelectColumns+` FROM media_videos WHERE locid = ?`, locID)
	if err != nil {
		return nil, errs.IO(err, "list videos for %s", locID)
	}
	for vrows.Next() {
		m, err := scanMediaVideo(vrows)
		if err != nil {
			vrows.Close()
			return nil, errs.IO(err, "scan video row")
		}
		out = append(out, m)
	}
	vrows.Close()
	if err := vrows.Err(); err != nil {
		return nil, errs.IO(err, "list videos for %s", locID)
	}

	drows, err := s.db.QueryContext(ctx, documentSelectColumns+` FROM media_documents WHERE locid = ?`, locID)
	if err != nil {
		return nil, errs.IO(err, "list documents for %s", locID)
	}
	defer drows.Close()
	for drows.Next() {
		m, err := scanMediaDocument(drows)
		if err != nil {
			return nil, errs.IO(err, "scan document row")
		}
		out = append(out, m)
	}
	return out, drows.Err()
}

// ListAllMedia returns every row of one kind across all locations, for
// archive-wide derivative regeneration sweeps (spec.md §6.4 Derivatives).
func (s *Store) ListAllMedia(ctx context.Context, kind MediaKind) ([]Media, error) {
	var (
		columns, table string
		scan           func(rowScanner) (Media, error)
	)
	switch kind {
	case MediaImage:
		columns, table, scan = imageSelectColumns, "media_images", scanMediaImage
	case MediaVideo:
		columns, table, scan = videoSelectColumns, "media_videos", scanMediaVideo
	case MediaDocument:
		columns, table, scan = documentSelectColumns, "media_documents", scanMediaDocument
	default:
		return nil, errs.Validation(nil, "unknown media kind %q", kind)
	}
	rows, err := s.db.QueryContext(ctx, columns+` FROM `+table)
	if err != nil {
		return nil, errs.IO(err, "list all %s", table)
	}
	defer rows.Close()

	var out []Media
	for rows.Next() {
		m, err := scan(rows)
		if err != nil {
			return nil, errs.IO(err, "scan %s row", table)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MoveMedia rebinds a media row (any kind) to a different Location and
// optional SubLocation (spec.md §3.2 invariant 1: "does not duplicate the
// blob").
func (s *Store) MoveMedia(ctx context.Context, kind MediaKind, hash, locID, subID string) error {
	table, err := tableForKind(kind)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE `+table+` SET locid=?, subid=? WHERE imghash=?`, nullableString(locID), nullableString(subID), hash)
	if err != nil {
		return errs.IO(err, "move media %s", hash)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound(nil, "media %s in %s", hash, table)
	}
	return nil
}

// SetMediaHidden toggles a media row's hidden flag with an optional
// reason.
func (s *Store) SetMediaHidden(ctx context.Context, kind MediaKind, hash string, hidden bool, reason string) error {
	table, err := tableForKind(kind)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE `+table+` SET hidden=?, hidden_reason=? WHERE imghash=?`, boolToInt(hidden), nullableString(reason), hash)
	if err != nil {
		return errs.IO(err, "set hidden for media %s", hash)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound(nil, "media %s in %s", hash, table)
	}
	return nil
}

// UpdateMediaThumbnails records newly (re)generated sm/lg thumbnail
// paths for an image or video row (spec.md §6.4 Derivatives:
// regenerate_all_thumbnails). Documents have no thumbnail columns.
func (s *Store) UpdateMediaThumbnails(ctx context.Context, kind MediaKind, hash, smPath, lgPath string) error {
	table, err := tableForKind(kind)
	if err != nil {
		return err
	}
	if kind == MediaDocument {
		return errs.Validation(nil, "documents have no thumbnail columns")
	}
	res, err := s.db.ExecContext(ctx, `UPDATE `+table+` SET thumb_path_sm=?, thumb_path_lg=? WHERE imghash=?`,
		nullableString(smPath), nullableString(lgPath), hash)
	if err != nil {
		return errs.IO(err, "update thumbnails for media %s", hash)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound(nil, "media %s in %s", hash, table)
	}
	return nil
}

// UpdateMediaPreview records a RAW/HEIC preview path on an image row
// (spec.md §6.4 Derivatives: regenerate_dng_previews).
func (s *Store) UpdateMediaPreview(ctx context.Context, hash, previewPath, quality string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE media_images SET preview_path=?, preview_quality=? WHERE imghash=?`,
		nullableString(previewPath), nullableString(quality), hash)
	if err != nil {
		return errs.IO(err, "update preview for media %s", hash)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound(nil, "image %s", hash)
	}
	return nil
}

// UpdateMediaPoster records a video's extracted poster frame (spec.md
// §6.4 Derivatives: regenerate_video_posters). The poster itself lives
// in the content store under the same path convention as an image's
// small thumbnail; poster_extracted flips once it succeeds.
func (s *Store) UpdateMediaPoster(ctx context.Context, hash, posterPath string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE media_videos SET thumb_path_sm=?, poster_extracted=1 WHERE imghash=?`,
		nullableString(posterPath), hash)
	if err != nil {
		return errs.IO(err, "update poster for media %s", hash)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound(nil, "video %s", hash)
	}
	return nil
}

// UpdateMediaProxy records a video's permanent web-playable proxy path
// (spec.md §4.4: "proxies are not garbage-collected").
func (s *Store) UpdateMediaProxy(ctx context.Context, hash, proxyPath string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE media_videos SET proxy_path=? WHERE imghash=?`,
		nullableString(proxyPath), hash)
	if err != nil {
		return errs.IO(err, "update proxy for media %s", hash)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound(nil, "video %s", hash)
	}
	return nil
}

// DeleteMedia removes a media row by kind+hash and clears any Location
// or SubLocation hero_imgsha pointing at it (spec.md:367: "on image
// deletion, the Location's hero_imgsha is cleared"; hero_imgsha is a
// bare TEXT column with no FK or trigger to do this automatically). It
// does not remove the underlying blob; callers coordinate with the
// content store separately since a blob is identity-keyed and may still
// be referenced by another media row even after this one's gone.
func (s *Store) DeleteMedia(ctx context.Context, kind MediaKind, hash string) error {
	table, err := tableForKind(kind)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE imghash=?`, hash)
		if err != nil {
			return errs.IO(err, "delete media %s", hash)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errs.NotFound(nil, "media %s in %s", hash, table)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE locations SET hero_imgsha = NULL WHERE hero_imgsha = ?`, hash); err != nil {
			return errs.IO(err, "clear hero_imgsha on locations for %s", hash)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE sublocations SET hero_imgsha = NULL WHERE hero_imgsha = ?`, hash); err != nil {
			return errs.IO(err, "clear hero_imgsha on sublocations for %s", hash)
		}
		return nil
	})
}

const imageSelectColumns = `SELECT
	imghash, original_name, original_path, archived_path, locid, subid, import_id, imgadd,
	width, height, date_taken, camera_make, camera_model, gps_lat, gps_lng, raw_exif_json,
	thumb_path_sm, thumb_path_lg, preview_path, preview_quality,
	xmp_synced, hidden, hidden_reason, is_live_photo, file_size_bytes`

const videoSelectColumns = `SELECT
	imghash, original_name, original_path, archived_path, locid, subid, import_id, imgadd,
	width, height, date_taken, gps_lat, gps_lng, raw_exif_json,
	duration_s, codec, fps, poster_extracted, proxy_path,
	thumb_path_sm, thumb_path_lg, hidden, hidden_reason, file_size_bytes`

const documentSelectColumns = `SELECT
	imghash, original_name, original_path, archived_path, locid, subid, import_id, imgadd,
	page_count, author, title, hidden, hidden_reason, file_size_bytes`

func scanMediaImage(row rowScanner) (Media, error) {
	var m Media
	var locID, subID, importID sql.NullString
	var width, height sql.NullInt64
	var dateTaken sql.NullString
	var cameraMake, cameraModel sql.NullString
	var gpsLat, gpsLng sql.NullFloat64
	var rawEXIF sql.NullString
	var thumbSm, thumbLg, previewPath, previewQuality sql.NullString
	var xmpSynced, hidden, isLivePhoto int
	var hiddenReason sql.NullString
	var imgadd string

	err := row.Scan(&m.Hash, &m.OriginalName, &m.OriginalPath, &m.ArchivedPath, &locID, &subID, &importID, &imgadd,
		&width, &height, &dateTaken, &cameraMake, &cameraModel, &gpsLat, &gpsLng, &rawEXIF,
		&thumbSm, &thumbLg, &previewPath, &previewQuality,
		&xmpSynced, &hidden, &hiddenReason, &isLivePhoto, &m.FileSizeBytes)
	if err != nil {
		return Media{}, err
	}
	m.Kind = MediaImage
	m.LocID, m.SubID, m.ImportID = locID.String, subID.String, importID.String
	m.Width, m.Height = int(width.Int64), int(height.Int64)
	m.CameraMake, m.CameraModel, m.RawEXIFJSON = cameraMake.String, cameraModel.String, rawEXIF.String
	m.ThumbPathSm, m.ThumbPathLg, m.PreviewPath, m.PreviewQuality = thumbSm.String, thumbLg.String, previewPath.String, previewQuality.String
	m.XMPSynced, m.Hidden, m.IsLivePhoto = xmpSynced != 0, hidden != 0, isLivePhoto != 0
	m.HiddenReason = hiddenReason.String
	if gpsLat.Valid {
		m.GPSLat = &gpsLat.Float64
	}
	if gpsLng.Valid {
		m.GPSLng = &gpsLng.Float64
	}
	if dateTaken.Valid {
		if t, err := time.Parse(time.RFC3339, dateTaken.String); err == nil {
			m.DateTaken = &t
		}
	}
	m.Imgadd, _ = time.Parse(time.RFC3339, imgadd)
	return m, nil
}

func scanMediaVideo(row rowScanner) (Media, error) {
	var m Media
	var locID, subID, importID sql.NullString
	var width, height sql.NullInt64
	var dateTaken sql.NullString
	var gpsLat, gpsLng sql.NullFloat64
	var rawEXIF sql.NullString
	var codec, proxyPath, thumbSm, thumbLg sql.NullString
	var posterExtracted, hidden int
	var hiddenReason sql.NullString
	var imgadd string

	err := row.Scan(&m.Hash, &m.OriginalName, &m.OriginalPath, &m.ArchivedPath, &locID, &subID, &importID, &imgadd,
		&width, &height, &dateTaken, &gpsLat, &gpsLng, &rawEXIF,
		&m.DurationS, &codec, &m.FPS, &posterExtracted, &proxyPath,
		&thumbSm, &thumbLg, &hidden, &hiddenReason, &m.FileSizeBytes)
	if err != nil {
		return Media{}, err
	}
	m.Kind = MediaVideo
	m.LocID, m.SubID, m.ImportID = locID.String, subID.String, importID.String
	m.Width, m.Height = int(width.Int64), int(height.Int64)
	m.RawEXIFJSON = rawEXIF.String
	m.Codec, m.ProxyPath = codec.String, proxyPath.String
	m.ThumbPathSm, m.ThumbPathLg = thumbSm.String, thumbLg.String
	m.PosterExtracted, m.Hidden = posterExtracted != 0, hidden != 0
	m.HiddenReason = hiddenReason.String
	if gpsLat.Valid {
		m.GPSLat = &gpsLat.Float64
	}
	if gpsLng.Valid {
		m.GPSLng = &gpsLng.Float64
	}
	if dateTaken.Valid {
		if t, err := time.Parse(time.RFC3339, dateTaken.String); err == nil {
			m.DateTaken = &t
		}
	}
	m.Imgadd, _ = time.Parse(time.RFC3339, imgadd)
	return m, nil
}

func scanMediaDocument(row rowScanner) (Media, error) {
	var m Media
	var locID, subID, importID sql.NullString
	var pageCount sql.NullInt64
	var author, title, hiddenReason sql.NullString
	var hidden int
	var imgadd string

	err := row.Scan(&m.Hash, &m.OriginalName, &m.OriginalPath, &m.ArchivedPath, &locID, &subID, &importID, &imgadd,
		&pageCount, &author, &title, &hidden, &hiddenReason, &m.FileSizeBytes)
	if err != nil {
		return Media{}, err
	}
	m.Kind = MediaDocument
	m.LocID, m.SubID, m.ImportID = locID.String, subID.String, importID.String
	if pageCount.Valid {
		v := int(pageCount.Int64)
		m.PageCount = &v
	}
	m.Author, m.Title, m.Hidden = author.String, title.String, hidden != 0
	m.HiddenReason = hiddenReason.String
	m.Imgadd, _ = time.Parse(time.RFC3339, imgadd)
	return m, nil
}
